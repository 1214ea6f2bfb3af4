// file: internal/cache/memory.go
// version: 1.0.0
// guid: 8c27e3f9-0d44-4b1f-a7c3-59e26f1d8b70

package cache

import (
	"context"
	"time"

	"github.com/jdfalk/beat-organizer/internal/models"
)

// Memory is a process-local Store.
type Memory struct {
	items *Cache[Entry]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: NewTTL[Entry](0)}
}

func (m *Memory) Get(ctx context.Context, id models.FileIdentity) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, unavailable("get", err)
	}
	e, ok := m.items.Get(id.Path)
	if !ok || !fresh(e, id) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return unavailable("put", err)
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = now()
	}
	m.items.Set(e.Identity.Path, e)
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.items.Invalidate(path)
	return nil
}

func (m *Memory) Prune(_ context.Context, stale func(Entry) bool) (int, error) {
	return m.items.Sweep(func(_ string, e Entry) bool { return stale(e) }), nil
}

func (m *Memory) Len(context.Context) (int, error) {
	return m.items.Len(), nil
}

func (m *Memory) Close() error { return nil }

// Layered serves repeated lookups from a TTL memory front and falls back to
// a persistent store. Writes go to both.
type Layered struct {
	front *Cache[Entry]
	back  Store
}

// NewLayered puts a memory front with the given TTL over back.
func NewLayered(back Store, ttl time.Duration) *Layered {
	return &Layered{front: NewTTL[Entry](ttl), back: back}
}

func (l *Layered) Get(ctx context.Context, id models.FileIdentity) (Entry, bool, error) {
	if e, ok := l.front.Get(id.Path); ok && fresh(e, id) {
		return e, true, nil
	}
	e, ok, err := l.back.Get(ctx, id)
	if err != nil || !ok {
		return e, ok, err
	}
	l.front.Set(id.Path, e)
	return e, true, nil
}

func (l *Layered) Put(ctx context.Context, e Entry) error {
	if e.SavedAt.IsZero() {
		e.SavedAt = now()
	}
	if err := l.back.Put(ctx, e); err != nil {
		l.front.Invalidate(e.Identity.Path)
		return err
	}
	l.front.Set(e.Identity.Path, e)
	return nil
}

func (l *Layered) Delete(ctx context.Context, path string) error {
	l.front.Invalidate(path)
	return l.back.Delete(ctx, path)
}

func (l *Layered) Prune(ctx context.Context, stale func(Entry) bool) (int, error) {
	l.front.InvalidateAll()
	return l.back.Prune(ctx, stale)
}

func (l *Layered) Len(ctx context.Context) (int, error) {
	return l.back.Len(ctx)
}

func (l *Layered) Close() error {
	l.front.InvalidateAll()
	return l.back.Close()
}
