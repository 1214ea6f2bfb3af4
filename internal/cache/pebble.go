// file: internal/cache/pebble.go
// version: 1.0.0
// guid: 3e9a5c21-7b80-4d6f-8f15-c04a2be7d963

package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/models"
)

// PebbleStore is the default persistent Store.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens or creates a pebble database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: pebble cache needs a path", failure.ErrInvalidConfig)
	}
	db, err := pebble.Open(path, &pebble.Options{
		FormatMajorVersion: pebble.FormatNewest,
	})
	if err != nil {
		return nil, unavailable("open pebble "+path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(ctx context.Context, id models.FileIdentity) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, unavailable("get", err)
	}
	val, closer, err := s.db.Get(key(id.Path))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, unavailable("get "+id.Path, err)
	}
	defer closer.Close()

	e, err := decode(val)
	if err != nil {
		return Entry{}, false, err
	}
	if !fresh(e, id) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *PebbleStore) Put(ctx context.Context, e Entry) error {
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
	if err := s.db.Set(key(e.Identity.Path), b, pebble.Sync); err != nil {
		return unavailable("put "+e.Identity.Path, err)
	}
	return nil
}

func (s *PebbleStore) Delete(_ context.Context, path string) error {
	if err := s.db.Delete(key(path), pebble.Sync); err != nil {
		return unavailable("delete "+path, err)
	}
	return nil
}

// scan visits every entry in key order; ok is false when the value no
// longer decodes.
func (s *PebbleStore) scan(ctx context.Context, fn func(k []byte, e Entry, ok bool) error) error {
	prefix := []byte(keyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: append(prefix, 0xFF)})
	if err != nil {
		return unavailable("iterate", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, derr := decode(iter.Value())
		k := append([]byte(nil), iter.Key()...)
		if err := fn(k, e, derr == nil); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return unavailable("iterate", err)
	}
	return nil
}

// Prune deletes stale entries in one batch. Entries that no longer decode
// are always removed.
func (s *PebbleStore) Prune(ctx context.Context, stale func(Entry) bool) (int, error) {
	batch := s.db.NewBatch()
	defer batch.Close()

	removed := 0
	err := s.scan(ctx, func(k []byte, e Entry, ok bool) error {
		if ok && !stale(e) {
			return nil
		}
		removed++
		return batch.Delete(k, nil)
	})
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, unavailable("prune", err)
	}
	return removed, nil
}

func (s *PebbleStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func([]byte, Entry, bool) error {
		n++
		return nil
	})
	return n, err
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
