// file: internal/fingerprint/fingerprint_test.go
// version: 1.1.0
// guid: da85fdcb-e518-4d1c-a7d6-ffc390b1aff2

package fingerprint

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synth renders a deterministic tone collage: every quarter second gets a
// fresh set of tones inside the analysis band.
func synth(seed uint64, seconds float64, sampleRate int) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	seg := sampleRate / 4
	for start := 0; start < n; start += seg {
		var freqs, amps [3]float64
		for i := range freqs {
			freqs[i] = 200 * math.Pow(20, rng.Float64())
			amps[i] = 0.05 + rng.Float64()*0.25
		}
		for j := start; j < min(start+seg, n); j++ {
			t := float64(j) / float64(sampleRate)
			var v float64
			for i := range freqs {
				v += amps[i] * math.Sin(2*math.Pi*freqs[i]*t)
			}
			out[j] = float32(v)
		}
	}
	return out
}

func identity(path string) models.FileIdentity {
	return models.FileIdentity{Path: path, Size: 1 << 20, ModTime: time.Unix(1700000000, 0)}
}

func mustGenerate(t *testing.T, path string, samples []float32) Fingerprint {
	t.Helper()
	p := DefaultParams()
	fp, err := Generate(identity(path), samples, p.SampleRate, p)
	require.NoError(t, err)
	return fp
}

func TestGenerate_ShapeAndDeterminism(t *testing.T) {
	samples := synth(1, 32, 22050)

	a := mustGenerate(t, "/a.wav", samples)
	b := mustGenerate(t, "/a.wav", samples)

	assert.Equal(t, 256, a.BitLen)
	assert.Len(t, a.Bits, 4)
	assert.Equal(t, 30, a.WindowSeconds)
	assert.False(t, a.Short())
	assert.Equal(t, a.Bits, b.Bits)
	assert.Len(t, a.String(), 64)
	require.NoError(t, a.Validate())

	// median thresholding sets roughly half the bits in every band
	ones := 0
	for i := 0; i < a.BitLen; i++ {
		if a.Bit(i) {
			ones++
		}
	}
	assert.InDelta(t, 128, ones, 24)
}

func TestGenerate_GainAndTailDoNotChangeFingerprint(t *testing.T) {
	base := synth(7, 30, 22050)

	quieter := make([]float32, len(base))
	for i, v := range base {
		quieter[i] = v * 0.5
	}
	longer := append(append([]float32{}, base...), synth(99, 20, 22050)...)

	ref := mustGenerate(t, "/ref.wav", base)
	for name, samples := range map[string][]float32{"gain": quieter, "tail": longer} {
		t.Run(name, func(t *testing.T) {
			other := mustGenerate(t, "/other.wav", samples)
			sim, err := Compare(ref, other)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, sim, 98.0)
		})
	}
}

func TestGenerate_UnrelatedAudioIsDissimilar(t *testing.T) {
	a := mustGenerate(t, "/a.wav", synth(1, 30, 22050))
	c := mustGenerate(t, "/c.wav", synth(2, 30, 22050))

	sim, err := Compare(a, c)
	require.NoError(t, err)
	assert.Less(t, sim, 80.0)
}

func TestGenerate_ShortInputUsesWholeSeconds(t *testing.T) {
	fp := mustGenerate(t, "/short.wav", synth(3, 12.6, 22050))

	assert.Equal(t, 12, fp.WindowSeconds)
	assert.True(t, fp.Short())
	assert.Equal(t, 256, fp.BitLen)

	full := mustGenerate(t, "/full.wav", synth(3, 30, 22050))
	_, err := Compare(fp, full)
	assert.ErrorIs(t, err, failure.ErrIncompatibleParameters)
}

func TestGenerate_Failures(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name       string
		samples    []float32
		sampleRate int
		want       error
	}{
		{"empty", nil, p.SampleRate, failure.ErrDecodeFailure},
		{"too short", synth(4, 3, p.SampleRate), p.SampleRate, failure.ErrInsufficientSamples},
		{"digital silence", make([]float32, 30*p.SampleRate), p.SampleRate, failure.ErrInsufficientSamples},
		{"wrong rate", synth(4, 30, 44100), 44100, failure.ErrIncompatibleParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := Generate(identity("/bad.wav"), tt.samples, tt.sampleRate, p)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, fp.Bits)
		})
	}
}

func TestCompare_SymmetryAndSelfSimilarity(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	fps := make([]Fingerprint, 6)
	for i := range fps {
		fps[i] = randomFingerprint(rng, "/f")
	}
	for i := range fps {
		self, err := Compare(fps[i], fps[i])
		require.NoError(t, err)
		assert.Equal(t, 100.0, self)
		for j := range fps {
			ab, err := Compare(fps[i], fps[j])
			require.NoError(t, err)
			ba, err := Compare(fps[j], fps[i])
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
		}
	}
}

func TestCompare_Distance(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	a := randomFingerprint(rng, "/a")
	b := a
	b.Bits = append([]uint64{}, a.Bits...)
	b.Bits[0] ^= 0b1011
	b.Bits[3] ^= 1 << 63

	d, err := Distance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4, d)

	sim, err := Compare(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 100*(1-4.0/256), sim, 1e-9)
}

func TestCompare_RejectsMismatchedParams(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	a := randomFingerprint(rng, "/a")
	b := randomFingerprint(rng, "/b")
	b.Params.LowHz = 300

	_, err := Compare(a, b)
	assert.ErrorIs(t, err, failure.ErrIncompatibleParameters)
}

func TestCompare_RejectsMalformed(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 11))
	good := randomFingerprint(rng, "/good")
	truncated := good
	truncated.Bits = good.Bits[:1]

	tests := []struct {
		name string
		a, b Fingerprint
	}{
		{"zero values", Fingerprint{}, Fingerprint{}},
		{"zero against valid", Fingerprint{}, good},
		{"truncated bits", good, truncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := Compare(tt.a, tt.b)
			assert.ErrorIs(t, err, failure.ErrIncompatibleParameters)
			assert.False(t, math.IsNaN(sim))
		})
	}
}

func TestMaxDistance(t *testing.T) {
	tests := []struct {
		threshold float64
		bitLen    int
		want      int
	}{
		{98, 256, 5},
		{99, 256, 2},
		{100, 256, 0},
		{97.65625, 256, 6},
		{50, 256, 128},
		{0.1, 256, 255},
	}
	for _, tt := range tests {
		got := MaxDistance(tt.threshold, tt.bitLen)
		assert.Equal(t, tt.want, got, "threshold %v", tt.threshold)
		assert.GreaterOrEqual(t, Similarity(got, tt.bitLen), tt.threshold)
		if got < tt.bitLen {
			assert.Less(t, Similarity(got+1, tt.bitLen), tt.threshold)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults", func(*Params) {}, true},
		{"zero rate", func(p *Params) { p.SampleRate = 0 }, false},
		{"inverted band", func(p *Params) { p.LowHz, p.HighHz = 4000, 200 }, false},
		{"above nyquist", func(p *Params) { p.HighHz = 12000 }, false},
		{"min longer than window", func(p *Params) { p.MinSeconds = 31 }, false},
		{"one chunk", func(p *Params) { p.Chunks = 1 }, false},
		{"tiny frame", func(p *Params) { p.FrameSize = 32 }, false},
		{"16 bands", func(p *Params) { p.BandsPerChunk = 16 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, failure.ErrInvalidConfig)
			}
		})
	}
}

func randomFingerprint(rng *rand.Rand, path string) Fingerprint {
	p := DefaultParams()
	fp := Fingerprint{
		Identity:      identity(path),
		Params:        p,
		WindowSeconds: p.WindowSeconds,
		BitLen:        p.BitLen(),
		Bits:          make([]uint64, wordsFor(p.BitLen())),
	}
	for i := range fp.Bits {
		fp.Bits[i] = rng.Uint64()
	}
	return fp
}
