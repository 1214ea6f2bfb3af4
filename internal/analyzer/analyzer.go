// file: internal/analyzer/analyzer.go
// version: 1.1.0
// guid: 4b8d2f63-9e1a-4c75-a3f0-6d2e8b5c1a97

// Package analyzer runs the duplicate detection pipeline over a batch of
// files: decode, fingerprint, measure, cluster and resolve.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jdfalk/beat-organizer/internal/cache"
	"github.com/jdfalk/beat-organizer/internal/cluster"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fileops"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/mediainfo"
	"github.com/jdfalk/beat-organizer/internal/metrics"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/jdfalk/beat-organizer/internal/quality"
	"github.com/jdfalk/beat-organizer/internal/resolver"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// PCMExtractor decodes the leading window of a file to mono float samples.
type PCMExtractor interface {
	Extract(ctx context.Context, path string, req fingerprint.DecodeRequest) ([]float32, error)
}

// LoudnessMeter measures a whole file.
type LoudnessMeter interface {
	MeasureLoudness(ctx context.Context, path string) (quality.Loudness, error)
}

// Prober reads stream parameters the native container readers could not.
type Prober interface {
	Probe(ctx context.Context, path string) (mediainfo.MediaInfo, error)
}

// Deps are the collaborators of an Analyzer. Meter, Prober and Cache are
// optional.
type Deps struct {
	Extractor PCMExtractor
	Meter     LoudnessMeter
	Prober    Prober
	Cache     cache.Store
	Logger    zerolog.Logger
	// Identify stats a path; fileops.Identify when nil.
	Identify func(path string) (models.FileIdentity, error)
	// ReadMedia reads container metadata; mediainfo.Extract when nil.
	ReadMedia func(path string) (*mediainfo.MediaInfo, error)
}

// Analyzer holds only its collaborators, so one instance can serve any
// number of concurrent batches.
type Analyzer struct {
	deps Deps
}

// New creates an Analyzer.
func New(deps Deps) (*Analyzer, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("%w: analyzer needs a PCM extractor", failure.ErrInvalidConfig)
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Identify == nil {
		deps.Identify = fileops.Identify
	}
	if deps.ReadMedia == nil {
		deps.ReadMedia = mediainfo.Extract
	}
	return &Analyzer{deps: deps}, nil
}

// FileRecord is everything learned about one successfully fingerprinted
// file. Envelope, the RMS waveform of the analysed window, is only kept for
// members of a duplicate group.
type FileRecord struct {
	Identity    models.FileIdentity     `json:"identity" yaml:"identity"`
	Fingerprint fingerprint.Fingerprint `json:"-" yaml:"-"`
	Media       *mediainfo.MediaInfo    `json:"media,omitempty" yaml:"media,omitempty"`
	Metrics     *quality.Metrics        `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Score       int                     `json:"score" yaml:"score"`
	Label       quality.Label           `json:"label,omitempty" yaml:"label,omitempty"`
	Findings    []quality.Finding       `json:"findings,omitempty" yaml:"findings,omitempty"`
	Envelope    []float32               `json:"envelope,omitempty" yaml:"envelope,omitempty,flow"`
	ScoreError  string                  `json:"score_error,omitempty" yaml:"score_error,omitempty"`
	Cached      bool                    `json:"cached" yaml:"cached"`
	GroupID     string                  `json:"group_id,omitempty" yaml:"group_id,omitempty"`
}

// Scored reports whether quality metrics are available.
func (r FileRecord) Scored() bool { return r.Metrics != nil }

// FailureDetail explains why a file was left out of clustering.
type FailureDetail struct {
	Kind    failure.Kind `json:"kind" yaml:"kind"`
	Message string       `json:"message" yaml:"message"`
}

// Result is the outcome of one batch.
type Result struct {
	BatchID     string                   `json:"batch_id" yaml:"batch_id"`
	Threshold   float64                  `json:"threshold" yaml:"threshold"`
	Groups      []models.DuplicateGroup  `json:"groups" yaml:"groups"`
	Singletons  []models.FileIdentity    `json:"singletons" yaml:"singletons"`
	Files       map[string]FileRecord    `json:"files" yaml:"files"`
	Failures    map[string]FailureDetail `json:"failures" yaml:"failures"`
	Stats       quality.Stats            `json:"stats" yaml:"stats"`
	Comparisons int                      `json:"comparisons" yaml:"comparisons"`
	CacheErrors int                      `json:"cache_errors" yaml:"cache_errors"`
	Elapsed     time.Duration            `json:"elapsed" yaml:"elapsed"`
}

// WastedBytes sums the reclaimable bytes of every group.
func (r *Result) WastedBytes() int64 {
	var n int64
	for _, g := range r.Groups {
		n += g.WastedBytes
	}
	return n
}

type outcome struct {
	path        string
	record      FileRecord
	err         error
	cacheErrors int
}

// AnalyzeBatch analyzes paths and groups the duplicates among them. A file
// that cannot be analyzed is reported in Result.Failures and never aborts
// the batch. Only invalid options, a broken clustering invariant or
// cancellation fail the call.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, paths []string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &Result{
		BatchID:   ulid.Make().String(),
		Threshold: opts.Threshold,
		Files:     make(map[string]FileRecord),
		Failures:  make(map[string]FailureDetail),
	}
	log := a.deps.Logger.With().Str("batch", res.BatchID).Logger()

	paths = uniquePaths(paths)
	total := len(paths)
	log.Info().Int("files", total).Float64("threshold", opts.Threshold).Msg("batch started")

	jobs := make(chan string)
	results := make(chan outcome)
	sem := semaphore.NewWeighted(int64(opts.MaxExtractions))

	var wg sync.WaitGroup
	for i := 0; i < min(opts.MaxConcurrency, max(total, 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- a.analyzeFile(ctx, path, opts, sem, log)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, p := range paths {
			// cancellation is honored between files, never mid-file
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for out := range results {
		completed++
		res.CacheErrors += out.cacheErrors
		if out.err != nil {
			kind := failure.KindOf(out.err)
			res.Failures[out.path] = FailureDetail{Kind: kind, Message: out.err.Error()}
			metrics.IncFileOutcome("failed")
			metrics.IncFailure(string(kind))
			log.Warn().Err(out.err).Str("path", out.path).Str("kind", string(kind)).Msg("file excluded from clustering")
		} else {
			res.Files[out.record.Identity.Path] = out.record
			if out.record.Cached {
				metrics.IncFileOutcome("cached")
			} else {
				metrics.IncFileOutcome("fingerprinted")
			}
		}
		if opts.Progress != nil {
			opts.Progress(completed, total, out.path)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch %s canceled after %d of %d files: %w", res.BatchID, completed, total, err)
	}

	if err := a.group(res, opts); err != nil {
		return nil, err
	}

	res.Elapsed = time.Since(start)
	metrics.SetDuplicateGroups(len(res.Groups))
	metrics.SetWastedBytes(res.WastedBytes())
	log.Info().
		Int("analyzed", len(res.Files)).
		Int("failed", len(res.Failures)).
		Int("groups", len(res.Groups)).
		Int("comparisons", res.Comparisons).
		Int64("wasted_bytes", res.WastedBytes()).
		Dur("elapsed", res.Elapsed).
		Msg("batch finished")
	return res, nil
}

// group clusters the fingerprinted files and resolves every group.
func (a *Analyzer) group(res *Result, opts Options) error {
	paths := make([]string, 0, len(res.Files))
	for path := range res.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	fps := make([]fingerprint.Fingerprint, 0, len(paths))
	evidence := make(map[string]resolver.Evidence, len(paths))
	var measured []quality.Metrics
	for _, path := range paths {
		rec := res.Files[path]
		fps = append(fps, rec.Fingerprint)
		evidence[path] = resolver.Evidence{Metrics: rec.Metrics, Media: rec.Media}
		if rec.Metrics != nil {
			measured = append(measured, *rec.Metrics)
		}
	}

	clusters, err := cluster.Cluster(fps, cluster.Options{Threshold: opts.Threshold})
	if err != nil {
		// every fingerprint in a batch shares one parameter set, so this is
		// a programming error and not a per-file failure
		return fmt.Errorf("batch %s: clustering failed: %w", res.BatchID, err)
	}
	metrics.AddComparisons(clusters.Comparisons)

	res.Comparisons = clusters.Comparisons
	res.Singletons = clusters.Singletons
	for _, id := range res.Singletons {
		rec := res.Files[id.Path]
		rec.Envelope = nil
		res.Files[id.Path] = rec
	}
	res.Groups = make([]models.DuplicateGroup, len(clusters.Groups))
	for i, g := range clusters.Groups {
		res.Groups[i] = resolver.Resolve(g, evidence)
		for _, m := range g.Members {
			rec := res.Files[m.Path]
			rec.GroupID = g.ID
			res.Files[m.Path] = rec
		}
	}
	res.Stats = quality.Summarize(measured)
	return nil
}

// analyzeFile produces the record of one file, consulting the cache first.
func (a *Analyzer) analyzeFile(ctx context.Context, path string, opts Options, sem *semaphore.Weighted, log zerolog.Logger) outcome {
	out := outcome{path: path}
	id, err := a.deps.Identify(path)
	if err != nil {
		out.err = err
		return out
	}
	out.path = id.Path
	flog := log.With().Str("path", id.Path).Logger()

	entry, hit := a.lookup(ctx, id, opts, &out, flog)
	rec := FileRecord{Identity: id}
	dirty := !hit

	if hit && entry.Fingerprint != nil {
		rec.Fingerprint = *entry.Fingerprint
		rec.Envelope = entry.Envelope
		rec.Cached = true
	} else {
		fp, env, err := a.fingerprint(ctx, id, opts, sem)
		if err != nil {
			out.err = err
			return out
		}
		rec.Fingerprint = fp
		rec.Envelope = env
		dirty = true
	}

	rec.Media = entry.Media
	if rec.Media == nil {
		rec.Media = a.media(ctx, id.Path, opts, sem, flog)
		dirty = dirty || rec.Media != nil
	}

	rec.Metrics = entry.Metrics
	if rec.Metrics == nil && !opts.SkipQuality {
		m, err := a.measure(ctx, id.Path, rec.Media, opts, sem)
		if err != nil {
			rec.ScoreError = err.Error()
			flog.Warn().Err(err).Msg("loudness measurement failed; file stays unscored")
		} else {
			rec.Metrics = &m
			dirty = true
		}
	}
	if rec.Metrics != nil {
		rec.Score, rec.Label = quality.Score(*rec.Metrics)
		rec.Findings = quality.Diagnose(*rec.Metrics)
	}

	if dirty {
		fp := rec.Fingerprint
		a.store(ctx, cache.Entry{Identity: id, Fingerprint: &fp, Metrics: rec.Metrics, Media: rec.Media, Envelope: rec.Envelope}, opts, &out, flog)
	}
	out.record = rec
	return out
}

// lookup returns a cache entry usable with the batch's params. Cache trouble
// only costs time.
func (a *Analyzer) lookup(ctx context.Context, id models.FileIdentity, opts Options, out *outcome, log zerolog.Logger) (cache.Entry, bool) {
	cctx, cancel := context.WithTimeout(ctx, opts.Timeouts.Cache)
	defer cancel()

	type got struct {
		entry cache.Entry
		ok    bool
	}
	r, err := withDeadline(cctx, func() (got, error) {
		e, ok, err := a.deps.Cache.Get(cctx, id)
		return got{e, ok}, err
	})
	entry, ok := r.entry, r.ok
	switch {
	case err != nil:
		out.cacheErrors++
		metrics.IncCacheLookup("error")
		log.Warn().Err(err).Msg("cache lookup failed; recomputing")
		return cache.Entry{}, false
	case !ok:
		metrics.IncCacheLookup("miss")
		return cache.Entry{}, false
	}
	if entry.Fingerprint != nil && entry.Fingerprint.Params != opts.Params {
		// fingerprinted under other settings; metrics and media still apply
		entry.Fingerprint = nil
	}
	if entry.Fingerprint != nil && len(entry.Envelope) != opts.EnvelopeWidth {
		entry.Fingerprint, entry.Envelope = nil, nil
	}
	metrics.IncCacheLookup("hit")
	return entry, true
}

func (a *Analyzer) store(ctx context.Context, e cache.Entry, opts Options, out *outcome, log zerolog.Logger) {
	cctx, cancel := context.WithTimeout(ctx, opts.Timeouts.Cache)
	defer cancel()
	_, err := withDeadline(cctx, func() (struct{}, error) {
		return struct{}{}, a.deps.Cache.Put(cctx, e)
	})
	if err != nil {
		out.cacheErrors++
		metrics.IncCacheLookup("error")
		log.Warn().Err(err).Msg("cache write failed")
	}
}

// fingerprint decodes the file once for both its fingerprint and its
// comparison envelope.
func (a *Analyzer) fingerprint(ctx context.Context, id models.FileIdentity, opts Options, sem *semaphore.Weighted) (fingerprint.Fingerprint, []float32, error) {
	req := opts.Params.DecodeRequest()
	samples, err := bounded(ctx, sem, opts.Timeouts.Extract, "extract", func(ctx context.Context) ([]float32, error) {
		return a.deps.Extractor.Extract(ctx, id.Path, req)
	})
	if err != nil {
		return fingerprint.Fingerprint{}, nil, err
	}
	fp, err := fingerprint.Generate(id, samples, req.SampleRate, opts.Params)
	if err != nil {
		return fingerprint.Fingerprint{}, nil, err
	}
	return fp, fingerprint.Envelope(samples[:fp.WindowSeconds*req.SampleRate], opts.EnvelopeWidth), nil
}

// media reads container metadata natively and asks the prober for what is
// still missing. It never fails the file.
func (a *Analyzer) media(ctx context.Context, path string, opts Options, sem *semaphore.Weighted, log zerolog.Logger) *mediainfo.MediaInfo {
	info, err := a.deps.ReadMedia(path)
	if err != nil {
		log.Debug().Err(err).Msg("native metadata read failed")
		info = &mediainfo.MediaInfo{}
	}
	if info.Complete() {
		return info
	}
	if a.deps.Prober == nil {
		if *info == (mediainfo.MediaInfo{}) {
			return nil
		}
		return info
	}
	probed, err := bounded(ctx, sem, opts.Timeouts.Probe, "probe", func(ctx context.Context) (mediainfo.MediaInfo, error) {
		return a.deps.Prober.Probe(ctx, path)
	})
	if err != nil {
		log.Debug().Err(err).Msg("probe failed")
	} else {
		info.Merge(&probed)
	}
	if *info == (mediainfo.MediaInfo{}) {
		return nil
	}
	return info
}

func (a *Analyzer) measure(ctx context.Context, path string, media *mediainfo.MediaInfo, opts Options, sem *semaphore.Weighted) (quality.Metrics, error) {
	if a.deps.Meter == nil {
		return quality.Metrics{}, errors.New("no loudness meter configured")
	}
	l, err := bounded(ctx, sem, opts.Timeouts.Loudness, "loudness", func(ctx context.Context) (quality.Loudness, error) {
		return a.deps.Meter.MeasureLoudness(ctx, path)
	})
	if err != nil {
		return quality.Metrics{}, err
	}
	var f quality.Format
	if media != nil {
		f = quality.Format{BitDepth: media.BitDepth, SampleRate: media.SampleRate, DurationSeconds: media.DurationSeconds}
	}
	return quality.NewMetrics(l, f), nil
}

// bounded runs an external call under the subprocess semaphore and its own
// timeout. A call that times out is retried once.
func bounded[T any](ctx context.Context, sem *semaphore.Weighted, timeout time.Duration, tool string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return zero, err
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		v, err := call(cctx)
		metrics.ObserveTool(tool, time.Since(start))
		if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, failure.ErrExternalToolTimeout) {
			err = fmt.Errorf("%w: %s exceeded %s: %v", failure.ErrExternalToolTimeout, tool, timeout, err)
		}
		cancel()
		sem.Release(1)

		if err == nil {
			return v, nil
		}
		if attempt > 1 || !failure.Retryable(err) || ctx.Err() != nil {
			return zero, err
		}
	}
}

// withDeadline runs a cache call and gives up when ctx ends, even if the
// backend never returns. An abandoned call finishes in the background.
func withDeadline[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type reply struct {
		v   T
		err error
	}
	done := make(chan reply, 1)
	go func() {
		v, err := call()
		done <- reply{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", failure.ErrCacheUnavailable, ctx.Err())
	}
}

// uniquePaths drops repeated paths, keeping first occurrences.
func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
