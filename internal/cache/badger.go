// file: internal/cache/badger.go
// version: 1.0.0
// guid: d4a18f6b-2c95-4e07-9b3a-71f0e5c8a2d6

package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/models"
)

// BadgerStore is the alternate persistent Store.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens or creates a badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: badger cache needs a path", failure.ErrInvalidConfig)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, unavailable("open badger "+dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, id models.FileIdentity) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, unavailable("get", err)
	}
	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id.Path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			e, derr = decode(val)
			return derr
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return Entry{}, false, nil
	case errors.Is(err, failure.ErrCacheUnavailable):
		return Entry{}, false, err
	case err != nil:
		return Entry{}, false, unavailable("get "+id.Path, err)
	}
	if !fresh(e, id) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *BadgerStore) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", err)
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = now()
	}
	b, err := encode(e)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(e.Identity.Path), b)
	}); err != nil {
		return unavailable("put "+e.Identity.Path, err)
	}
	return nil
}

func (s *BadgerStore) Delete(_ context.Context, path string) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(path))
	}); err != nil {
		return unavailable("delete "+path, err)
	}
	return nil
}

func (s *BadgerStore) scan(ctx context.Context, fn func(k []byte, e Entry, ok bool)) error {
	prefix := []byte(keyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var e Entry
			derr := item.Value(func(val []byte) error {
				var err error
				e, err = decode(val)
				return err
			})
			fn(item.KeyCopy(nil), e, derr == nil)
		}
		return nil
	})
}

// Prune deletes stale entries and entries that no longer decode.
func (s *BadgerStore) Prune(ctx context.Context, stale func(Entry) bool) (int, error) {
	var doomed [][]byte
	err := s.scan(ctx, func(k []byte, e Entry, ok bool) {
		if !ok || stale(e) {
			doomed = append(doomed, k)
		}
	})
	if err != nil {
		return 0, unavailable("prune", err)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range doomed {
		if err := wb.Delete(k); err != nil {
			return 0, unavailable("prune", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, unavailable("prune", err)
	}
	return len(doomed), nil
}

func (s *BadgerStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func([]byte, Entry, bool) { n++ })
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
