// file: cmd/app.go
// version: 1.0.0
// guid: 3f1d8a6e-7c25-4b90-8e14-a5d2c9f07b63

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/cache"
	"github.com/jdfalk/beat-organizer/internal/config"
	"github.com/jdfalk/beat-organizer/internal/ffmpeg"
	"github.com/jdfalk/beat-organizer/internal/logging"
	"github.com/jdfalk/beat-organizer/internal/metrics"
	"github.com/jdfalk/beat-organizer/internal/scanner"
	"github.com/rs/zerolog"
)

// app wires the configured collaborators for one command invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	runner   *ffmpeg.Runner
	store    cache.Store
	analyzer *analyzer.Analyzer
}

// toolsCheck is swapped in tests that run without ffmpeg installed.
var toolsCheck = func(ctx context.Context, r *ffmpeg.Runner) error { return r.Check(ctx) }

func openApp(ctx context.Context) (*app, error) {
	cfg := &config.AppConfig
	runner := ffmpeg.New(cfg.FFmpeg)
	if err := toolsCheck(ctx, runner); err != nil {
		return nil, err
	}

	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}

	deps := analyzer.Deps{
		Extractor: runner,
		Prober:    runner,
		Cache:     store,
		Logger:    logger,
	}
	if !cfg.Analysis.SkipQuality {
		deps.Meter = runner
	}
	a, err := analyzer.New(deps)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: logger, runner: runner, store: store, analyzer: a}, nil
}

func openCache(cfg *config.Config) (cache.Store, error) {
	opts := cfg.Cache
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	store, err := cache.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", opts.Backend, err)
	}
	logger.Debug().Str("backend", string(opts.Backend)).Str("path", opts.Path).Msg("cache opened")
	return store, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// discover expands every argument into the audio files it names.
func (a *app) discover(ctx context.Context, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		found, err := scanner.Discover(ctx, arg, scanner.Options{
			Extensions: a.cfg.Scan.Extensions,
			Workers:    a.cfg.Scan.Workers,
			Logger:     a.log,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// runBatch analyzes paths as one tracked operation.
func (a *app) runBatch(ctx context.Context, paths []string, opts analyzer.Options) (*analyzer.Result, error) {
	const op = "analyze_batch"
	metrics.IncOperationStarted(op)
	ol := logging.Operation(a.log, op)
	start := time.Now()

	res, err := a.analyzer.AnalyzeBatch(ctx, paths, opts)
	metrics.ObserveOperationDuration(op, time.Since(start))
	switch {
	case err != nil && ctx.Err() != nil:
		metrics.IncOperationCanceled(op)
		ol.Failure(err)
		return nil, err
	case err != nil:
		metrics.IncOperationFailed(op)
		ol.Failure(err)
		return nil, err
	}
	metrics.IncOperationCompleted(op)
	ol.Success(map[string]any{
		"files":    len(paths),
		"groups":   len(res.Groups),
		"failures": len(res.Failures),
	})
	return res, nil
}

// colorEnabled resolves --color; auto follows NO_COLOR and whether stdout
// is a terminal.
func colorEnabled(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		return !color.NoColor, nil
	}
	return false, fmt.Errorf("--color must be auto, always or never, got %q", mode)
}
