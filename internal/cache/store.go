// file: internal/cache/store.go
// version: 1.1.0
// guid: 5b3f7d0e-9a61-4f8e-bb2c-6e1d0c7a9f34

// Package cache persists per-file analysis results so unchanged files are
// not decoded again. Entries are keyed by path and are only returned while
// the file's size and modification time still match.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/mediainfo"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/jdfalk/beat-organizer/internal/quality"
)

// Entry is everything cached about one file version. Any of the analysis
// fields may be nil when that step failed or has not run.
type Entry struct {
	Identity    models.FileIdentity      `json:"identity"`
	Fingerprint *fingerprint.Fingerprint `json:"fingerprint,omitempty"`
	Metrics     *quality.Metrics         `json:"metrics,omitempty"`
	Media       *mediainfo.MediaInfo     `json:"media,omitempty"`
	Envelope    []float32                `json:"envelope,omitempty"`
	SavedAt     time.Time                `json:"saved_at"`
}

// Store is a concurrent-safe analysis cache. Put replaces the whole entry
// for a path atomically. Backend failures wrap failure.ErrCacheUnavailable.
type Store interface {
	// Get returns the entry for id.Path if it was saved for the same file
	// version.
	Get(ctx context.Context, id models.FileIdentity) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, path string) error
	// Prune removes every entry for which stale returns true and reports
	// how many were removed.
	Prune(ctx context.Context, stale func(Entry) bool) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendPebble Backend = "pebble"
	BackendBadger Backend = "badger"
	BackendMemory Backend = "memory"
	BackendNone   Backend = "none"
)

// Options selects and tunes a store. A positive MemoryTTL puts an in-memory
// front on the persistent backends.
type Options struct {
	Backend   Backend       `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl"`
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	var back Store
	var err error
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendPebble, "":
		back, err = OpenPebble(opts.Path)
	case BackendBadger:
		back, err = OpenBadger(opts.Path)
	case BackendMemory:
		return NewMemory(), nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", failure.ErrInvalidConfig, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if opts.MemoryTTL > 0 {
		return NewLayered(back, opts.MemoryTTL), nil
	}
	return back, nil
}

const keyPrefix = "entry:"

var now = time.Now

func key(path string) []byte {
	return []byte(keyPrefix + path)
}

func encode(e Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", failure.ErrCacheUnavailable, e.Identity.Path, err)
	}
	return b, nil
}

func decode(b []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: corrupt entry: %v", failure.ErrCacheUnavailable, err)
	}
	return e, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", failure.ErrCacheUnavailable, op, err)
}

// fresh validates a stored entry against the identity being looked up.
func fresh(e Entry, id models.FileIdentity) bool {
	return e.Identity.Same(id)
}

// Nop is a Store that never holds anything.
type Nop struct{}

func (Nop) Get(context.Context, models.FileIdentity) (Entry, bool, error) { return Entry{}, false, nil }
func (Nop) Put(context.Context, Entry) error                              { return nil }
func (Nop) Delete(context.Context, string) error                          { return nil }
func (Nop) Prune(context.Context, func(Entry) bool) (int, error)          { return 0, nil }
func (Nop) Len(context.Context) (int, error)                              { return 0, nil }
func (Nop) Close() error                                                  { return nil }
