// file: internal/analyzer/analyzer_test.go
// version: 1.1.0
// guid: 8e3a6c15-2f9d-4b70-a1e4-5c7b9d2f0e83

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jdfalk/beat-organizer/internal/cache"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/mediainfo"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/jdfalk/beat-organizer/internal/quality"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synth renders a deterministic collage of tones; equal seeds give equal
// audio, different seeds give unrelated audio.
func synth(seed uint64, seconds float64, gain float64) []float32 {
	const sampleRate = 22050
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := int(seconds * sampleRate)
	out := make([]float32, n)
	seg := sampleRate / 4
	for start := 0; start < n; start += seg {
		var freqs, amps [3]float64
		for i := range freqs {
			freqs[i] = 200 * math.Pow(20, rng.Float64())
			amps[i] = 0.05 + rng.Float64()*0.25
		}
		for j := start; j < min(start+seg, n); j++ {
			t := float64(j) / sampleRate
			var v float64
			for i := range freqs {
				v += amps[i] * math.Sin(2*math.Pi*freqs[i]*t)
			}
			out[j] = float32(v * gain)
		}
	}
	return out
}

type track struct {
	seed    uint64
	seconds float64
	gain    float64
	size    int64
	err     error
	// hangs is how many extract calls block until their deadline.
	hangs    int
	loudness *quality.Loudness
	media    *mediainfo.MediaInfo
}

type fakeTools struct {
	mu       sync.Mutex
	tracks   map[string]*track
	calls    map[string]int
	active   atomic.Int32
	maxSeen  atomic.Int32
	extracts atomic.Int32
}

func newFakeTools(tracks map[string]*track) *fakeTools {
	for _, tr := range tracks {
		if tr.seconds == 0 {
			tr.seconds = 30
		}
		if tr.gain == 0 {
			tr.gain = 1
		}
		if tr.size == 0 {
			tr.size = 10_000_000
		}
	}
	return &fakeTools{tracks: tracks, calls: make(map[string]int)}
}

func (f *fakeTools) Extract(ctx context.Context, path string, req fingerprint.DecodeRequest) ([]float32, error) {
	f.extracts.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	tr := f.tracks[path]
	f.calls[path]++
	call := f.calls[path]
	f.mu.Unlock()

	if tr == nil {
		return nil, fmt.Errorf("%w: %s: no such track", failure.ErrDecodeFailure, path)
	}
	if call <= tr.hangs {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if tr.err != nil {
		return nil, tr.err
	}
	time.Sleep(time.Millisecond)
	return synth(tr.seed, min(tr.seconds, float64(req.MaxSeconds)), tr.gain), nil
}

func (f *fakeTools) MeasureLoudness(_ context.Context, path string) (quality.Loudness, error) {
	tr := f.tracks[path]
	if tr == nil || tr.loudness == nil {
		return quality.Loudness{}, fmt.Errorf("%w: no ebur128 summary", failure.ErrDecodeFailure)
	}
	return *tr.loudness, nil
}

func (f *fakeTools) identify(path string) (models.FileIdentity, error) {
	tr := f.tracks[path]
	if tr == nil {
		return models.FileIdentity{}, fmt.Errorf("%w: stat %s: no such file", failure.ErrDecodeFailure, path)
	}
	return models.FileIdentity{Path: path, Size: tr.size, ModTime: time.Unix(1700000000, 0)}, nil
}

func (f *fakeTools) readMedia(path string) (*mediainfo.MediaInfo, error) {
	tr := f.tracks[path]
	if tr == nil || tr.media == nil {
		return nil, errors.New("unknown container")
	}
	m := *tr.media
	return &m, nil
}

func (f *fakeTools) analyzer(t *testing.T, store cache.Store) *Analyzer {
	t.Helper()
	a, err := New(Deps{
		Extractor: f,
		Meter:     f,
		Cache:     store,
		Logger:    zerolog.Nop(),
		Identify:  f.identify,
		ReadMedia: f.readMedia,
	})
	require.NoError(t, err)
	return a
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxConcurrency = 4
	opts.MaxExtractions = 2
	return opts
}

func lufs(i, peak, lra float64) *quality.Loudness {
	return &quality.Loudness{Integrated: i, TruePeak: peak, Range: lra}
}

func pcm(bitDepth, sampleRate int) *mediainfo.MediaInfo {
	return &mediainfo.MediaInfo{Format: "wav", Codec: "PCM", Lossless: true, BitDepth: bitDepth, SampleRate: sampleRate, Channels: 2, DurationSeconds: 30}
}

func TestAnalyzeBatch_PrefersTwentyFourBitCopy(t *testing.T) {
	tools := newFakeTools(map[string]*track{
		"/lib/a.wav": {seed: 1, size: 31_752_044, loudness: lufs(-14, -1, 9), media: pcm(24, 44100)},
		"/lib/b.wav": {seed: 1, gain: 0.8, size: 21_168_044, loudness: lufs(-14, -1, 9), media: pcm(16, 44100)},
		"/lib/c.wav": {seed: 2, loudness: lufs(-14, -1, 9), media: pcm(16, 44100)},
	})

	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), []string{"/lib/c.wav", "/lib/b.wav", "/lib/a.wav"}, testOptions())
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	require.Len(t, g.Members, 2)
	require.NotNil(t, g.RecommendedKeep)
	assert.Equal(t, "/lib/a.wav", g.RecommendedKeep.Path)
	assert.Equal(t, "/lib/a.wav", g.Members[0].Path)
	assert.Equal(t, int64(21_168_044), g.WastedBytes)
	assert.Equal(t, models.VerdictBest, g.Ranking[0].Verdict)

	require.Len(t, res.Singletons, 1)
	assert.Equal(t, "/lib/c.wav", res.Singletons[0].Path)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Files, 3)
	assert.Equal(t, g.ID, res.Files["/lib/b.wav"].GroupID)
	assert.Empty(t, res.Files["/lib/c.wav"].GroupID)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 3, res.Stats.Files)
}

func TestAnalyzeBatch_CorruptFileDoesNotAbort(t *testing.T) {
	tracks := map[string]*track{}
	var paths []string
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf("/lib/%02d.flac", i)
		tracks[p] = &track{seed: uint64(100 + i), loudness: lufs(-14, -1, 8)}
		paths = append(paths, p)
	}
	tracks["/lib/04.flac"].err = fmt.Errorf("%w: ffmpeg exited with 1: Invalid data found", failure.ErrDecodeFailure)
	tools := newFakeTools(tracks)

	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)

	assert.Len(t, res.Files, 9)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, failure.KindDecodeFailure, res.Failures["/lib/04.flac"].Kind)
	assert.Contains(t, res.Failures["/lib/04.flac"].Message, "Invalid data")
	assert.NotContains(t, res.Files, "/lib/04.flac")
	assert.Len(t, res.Singletons, 9)
	for _, rec := range res.Files {
		assert.True(t, rec.Scored())
	}
}

func TestAnalyzeBatch_FailureKinds(t *testing.T) {
	tools := newFakeTools(map[string]*track{
		"/short.wav":  {seed: 3, seconds: 3},
		"/silent.wav": {seed: 4, gain: 1e-9},
		"/ok.wav":     {seed: 5},
	})
	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), []string{"/short.wav", "/silent.wav", "/ok.wav", "/missing.wav"}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, failure.KindInsufficientSamples, res.Failures["/short.wav"].Kind)
	assert.Equal(t, failure.KindInsufficientSamples, res.Failures["/silent.wav"].Kind)
	assert.Equal(t, failure.KindDecodeFailure, res.Failures["/missing.wav"].Kind)
	assert.Len(t, res.Files, 1)
}

func TestAnalyzeBatch_LoudnessFailureLeavesFileUnscored(t *testing.T) {
	tools := newFakeTools(map[string]*track{
		"/big.wav":   {seed: 7, size: 90_000_000, media: pcm(24, 96000)},
		"/small.mp3": {seed: 7, size: 5_000_000, loudness: lufs(-16, -1.5, 7), media: &mediainfo.MediaInfo{Codec: "MP3", Bitrate: 192, SampleRate: 44100}},
	})
	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), []string{"/big.wav", "/small.mp3"}, testOptions())
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	big := res.Files["/big.wav"]
	assert.False(t, big.Scored())
	assert.NotEmpty(t, big.ScoreError)
	assert.Equal(t, "/small.mp3", res.Groups[0].RecommendedKeep.Path)
	assert.Equal(t, models.VerdictPoor, res.Groups[0].Ranking[1].Verdict)
	assert.Equal(t, 1, res.Stats.Files)
}

func TestAnalyzeBatch_TimeoutRetriedOnce(t *testing.T) {
	tools := newFakeTools(map[string]*track{
		"/flaky.wav": {seed: 8, hangs: 1},
		"/stuck.wav": {seed: 9, hangs: 5},
	})
	opts := testOptions()
	opts.Timeouts.Extract = 50 * time.Millisecond

	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), []string{"/flaky.wav", "/stuck.wav"}, opts)
	require.NoError(t, err)

	assert.Contains(t, res.Files, "/flaky.wav")
	assert.Equal(t, failure.KindExternalToolTimeout, res.Failures["/stuck.wav"].Kind)
	assert.Equal(t, 2, tools.calls["/flaky.wav"])
	assert.Equal(t, 2, tools.calls["/stuck.wav"])
}

func TestAnalyzeBatch_UsesCache(t *testing.T) {
	tools := newFakeTools(map[string]*track{
		"/a.wav": {seed: 11, loudness: lufs(-14, -1, 9), media: pcm(16, 44100)},
		"/b.wav": {seed: 11, loudness: lufs(-15, -1, 9), media: pcm(16, 44100)},
	})
	store := cache.NewMemory()
	a := tools.analyzer(t, store)
	paths := []string{"/a.wav", "/b.wav"}

	first, err := a.AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)
	assert.Equal(t, int32(2), tools.extracts.Load())
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second, err := a.AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)
	assert.Equal(t, int32(2), tools.extracts.Load(), "cached files must not be decoded again")
	assert.True(t, second.Files["/a.wav"].Cached)
	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Files["/a.wav"].Metrics, second.Files["/a.wav"].Metrics)

	// a new file version invalidates its entry
	tools.tracks["/a.wav"].size++
	_, err = a.AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)
	assert.Equal(t, int32(3), tools.extracts.Load())
}

func TestAnalyzeBatch_CachedFingerprintUnderOtherParamsIsRecomputed(t *testing.T) {
	tools := newFakeTools(map[string]*track{"/a.wav": {seed: 12, loudness: lufs(-14, -1, 9)}})
	store := cache.NewMemory()
	a := tools.analyzer(t, store)

	_, err := a.AnalyzeBatch(context.Background(), []string{"/a.wav"}, testOptions())
	require.NoError(t, err)

	opts := testOptions()
	opts.Params.WindowSeconds = 20
	res, err := a.AnalyzeBatch(context.Background(), []string{"/a.wav"}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), tools.extracts.Load())
	assert.Equal(t, 20, res.Files["/a.wav"].Fingerprint.WindowSeconds)
}

type brokenStore struct{ cache.Nop }

func (brokenStore) Get(context.Context, models.FileIdentity) (cache.Entry, bool, error) {
	return cache.Entry{}, false, fmt.Errorf("%w: disk full", failure.ErrCacheUnavailable)
}

func (brokenStore) Put(context.Context, cache.Entry) error {
	return fmt.Errorf("%w: disk full", failure.ErrCacheUnavailable)
}

func TestAnalyzeBatch_CacheUnavailableIsNotFatal(t *testing.T) {
	tracks := map[string]*track{
		"/a.wav": {seed: 13, loudness: lufs(-14, -1, 9)},
		"/b.wav": {seed: 13, loudness: lufs(-14, -1, 9)},
	}
	paths := []string{"/a.wav", "/b.wav"}

	healthy, err := newFakeTools(tracks).analyzer(t, nil).AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)
	broken, err := newFakeTools(tracks).analyzer(t, brokenStore{}).AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)

	assert.Equal(t, healthy.Groups, broken.Groups)
	assert.Empty(t, broken.Failures)
	assert.Equal(t, 4, broken.CacheErrors)
}

// stalledStore never answers and ignores its context.
type stalledStore struct {
	cache.Nop
	release chan struct{}
}

func (s stalledStore) Get(context.Context, models.FileIdentity) (cache.Entry, bool, error) {
	<-s.release
	return cache.Entry{}, false, nil
}

func (s stalledStore) Put(context.Context, cache.Entry) error {
	<-s.release
	return nil
}

func TestAnalyzeBatch_StalledCacheIsBounded(t *testing.T) {
	store := stalledStore{release: make(chan struct{})}
	t.Cleanup(func() { close(store.release) })
	tools := newFakeTools(map[string]*track{
		"/a.wav": {seed: 14, loudness: lufs(-14, -1, 9)},
		"/b.wav": {seed: 14, loudness: lufs(-14, -1, 9)},
	})
	opts := testOptions()
	opts.Timeouts.Cache = 20 * time.Millisecond

	a := tools.analyzer(t, store)
	done := make(chan struct{})
	var res *Result
	var err error
	go func() {
		defer close(done)
		res, err = a.AnalyzeBatch(context.Background(), []string{"/a.wav", "/b.wav"}, opts)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("batch blocked on a stalled cache")
	}
	require.NoError(t, err)
	assert.Len(t, res.Groups, 1)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 4, res.CacheErrors)
}

func TestAnalyzeBatch_EnvelopeForGroupMembers(t *testing.T) {
	tools := newFakeTools(map[string]*track{
		"/a.wav": {seed: 15, loudness: lufs(-14, -1, 9)},
		"/b.wav": {seed: 15, gain: 0.5, loudness: lufs(-14, -1, 9)},
		"/c.wav": {seed: 16, loudness: lufs(-14, -1, 9)},
	})
	store := cache.NewMemory()
	a := tools.analyzer(t, store)
	paths := []string{"/a.wav", "/b.wav", "/c.wav"}
	opts := testOptions()
	opts.EnvelopeWidth = 64

	res, err := a.AnalyzeBatch(context.Background(), paths, opts)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	envA, envB := res.Files["/a.wav"].Envelope, res.Files["/b.wav"].Envelope
	require.Len(t, envA, 64)
	assert.InDeltaSlice(t, envA, envB, 1e-4, "gain does not change the normalised envelope")
	assert.Nil(t, res.Files["/c.wav"].Envelope)

	// cached envelopes come back without decoding
	again, err := a.AnalyzeBatch(context.Background(), paths, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(3), tools.extracts.Load())
	assert.Equal(t, envA, again.Files["/a.wav"].Envelope)

	// a different width needs the audio again
	opts.EnvelopeWidth = 32
	wider, err := a.AnalyzeBatch(context.Background(), paths, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(6), tools.extracts.Load())
	assert.Len(t, wider.Files["/b.wav"].Envelope, 32)

	opts.EnvelopeWidth = 0
	none, err := a.AnalyzeBatch(context.Background(), paths, opts)
	require.NoError(t, err)
	assert.Nil(t, none.Files["/a.wav"].Envelope)
}

func TestAnalyzeBatch_ProgressIsSerialAndPassive(t *testing.T) {
	tracks := map[string]*track{}
	var paths []string
	for i := 0; i < 12; i++ {
		p := fmt.Sprintf("/p/%02d.wav", i)
		tracks[p] = &track{seed: uint64(20 + i%4), loudness: lufs(-14, -1, 9)}
		paths = append(paths, p)
	}

	var (
		mu    sync.Mutex
		seen  []int
		files = map[string]bool{}
		busy  atomic.Bool
	)
	opts := testOptions()
	opts.Progress = func(completed, total int, current string) {
		assert.False(t, busy.Swap(true), "progress calls overlapped")
		defer busy.Store(false)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 12, total)
		seen = append(seen, completed)
		files[current] = true
	}

	with, err := newFakeTools(tracks).analyzer(t, nil).AnalyzeBatch(context.Background(), paths, opts)
	require.NoError(t, err)
	without, err := newFakeTools(tracks).analyzer(t, nil).AnalyzeBatch(context.Background(), paths, testOptions())
	require.NoError(t, err)

	want := make([]int, 12)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, seen)
	assert.Len(t, files, 12)
	assert.Len(t, with.Groups, 4)
	assert.Equal(t, without.Groups, with.Groups)
	assert.Equal(t, without.Singletons, with.Singletons)
}

func TestAnalyzeBatch_CapsConcurrentExtractions(t *testing.T) {
	tracks := map[string]*track{}
	var paths []string
	for i := 0; i < 16; i++ {
		p := fmt.Sprintf("/c/%02d.wav", i)
		tracks[p] = &track{seed: uint64(40 + i)}
		paths = append(paths, p)
	}
	tools := newFakeTools(tracks)
	opts := testOptions()
	opts.MaxConcurrency = 8
	opts.MaxExtractions = 2
	opts.SkipQuality = true

	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), paths, opts)
	require.NoError(t, err)
	assert.Len(t, res.Files, 16)
	assert.LessOrEqual(t, tools.maxSeen.Load(), int32(2))
}

func TestAnalyzeBatch_DeduplicatesPaths(t *testing.T) {
	tools := newFakeTools(map[string]*track{"/a.wav": {seed: 50}})
	var totals []int
	opts := testOptions()
	opts.Progress = func(_, total int, _ string) { totals = append(totals, total) }

	res, err := tools.analyzer(t, nil).AnalyzeBatch(context.Background(), []string{"/a.wav", "/a.wav", "/a.wav"}, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, totals)
	assert.Len(t, res.Files, 1)
	assert.Empty(t, res.Groups)
	assert.Equal(t, int32(1), tools.extracts.Load())
}

func TestAnalyzeBatch_InvalidOptionsAreFatal(t *testing.T) {
	tools := newFakeTools(map[string]*track{"/a.wav": {seed: 1}})
	a := tools.analyzer(t, nil)

	mutate := []func(*Options){
		func(o *Options) { o.Threshold = 0 },
		func(o *Options) { o.Threshold = 100.5 },
		func(o *Options) { o.Threshold = math.NaN() },
		func(o *Options) { o.MaxConcurrency = 0 },
		func(o *Options) { o.MaxExtractions = 0 },
		func(o *Options) { o.Timeouts.Extract = 0 },
		func(o *Options) { o.Params.Chunks = 1 },
		func(o *Options) { o.EnvelopeWidth = -1 },
	}
	for i, m := range mutate {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			opts := testOptions()
			m(&opts)
			_, err := a.AnalyzeBatch(context.Background(), []string{"/a.wav"}, opts)
			assert.ErrorIs(t, err, failure.ErrInvalidConfig)
		})
	}
	assert.Equal(t, int32(0), tools.extracts.Load())
}

func TestAnalyzeBatch_Canceled(t *testing.T) {
	tools := newFakeTools(map[string]*track{"/a.wav": {seed: 1}, "/b.wav": {seed: 2}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := tools.analyzer(t, nil).AnalyzeBatch(ctx, []string{"/a.wav", "/b.wav"}, testOptions())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	res, err := newFakeTools(nil).analyzer(t, nil).AnalyzeBatch(context.Background(), nil, testOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Empty(t, res.Files)
	assert.Equal(t, 0, res.Stats.Files)
}

func TestNew_RequiresExtractor(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, failure.ErrInvalidConfig)
}
