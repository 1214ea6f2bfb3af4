// file: internal/scanner/scanner.go
// version: 2.0.0
// guid: 3c4d5e6f-7a8b-9c0d-1e2f-3a4b5c6d7e8f

// Package scanner discovers audio files under a directory tree.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/rs/zerolog"
)

// Options controls discovery.
type Options struct {
	// Extensions are lower-case and include the leading dot.
	Extensions []string
	Workers    int
	// IncludeHidden descends into dot-directories and returns dot-files.
	IncludeHidden bool
	Logger        zerolog.Logger
}

// Discover returns the absolute paths of every file under root whose
// extension is in opts.Extensions, sorted. A root that is itself a matching
// file is returned alone. Unreadable subdirectories are logged and skipped.
func Discover(ctx context.Context, root string, opts Options) ([]string, error) {
	workers := max(opts.Workers, 1)
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", failure.ErrInvalidConfig, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() && Supported(abs, opts.Extensions) {
			return []string{abs}, nil
		}
		return nil, nil
	}

	// Collect all directories first
	var dirs []string
	err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			opts.Logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			return filepath.SkipDir
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && !opts.IncludeHidden && hidden(d.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Parallel scan of directories
	var mu sync.Mutex
	var files []string
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for _, dir := range dirs {
		wg.Add(1)
		go func(scanDir string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release
			if ctx.Err() != nil {
				return
			}

			entries, err := os.ReadDir(scanDir)
			if err != nil {
				opts.Logger.Warn().Err(err).Str("dir", scanDir).Msg("cannot list directory")
				return
			}

			var local []string
			for _, entry := range entries {
				if !entry.Type().IsRegular() {
					continue
				}
				if !opts.IncludeHidden && hidden(entry.Name()) {
					continue
				}
				path := filepath.Join(scanDir, entry.Name())
				if Supported(path, opts.Extensions) {
					local = append(local, path)
				}
			}

			if len(local) > 0 {
				mu.Lock()
				files = append(files, local...)
				mu.Unlock()
			}
		}(dir)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// Supported reports whether path has one of the given extensions.
func Supported(path string, extensions []string) bool {
	return slices.Contains(extensions, strings.ToLower(filepath.Ext(path)))
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
