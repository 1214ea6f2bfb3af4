// file: internal/fingerprint/generate.go
// version: 1.0.0
// guid: 14bdd576-def6-4e16-82f1-a64b4ee07276

package fingerprint

import (
	"fmt"
	"math"
	"sort"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// silenceRMS is the level below which a window is treated as digital silence.
const silenceRMS = 1e-5

// Generate fingerprints mono samples in [-1, 1] decoded at sampleRate.
// Input longer than the analysis window is truncated. Input shorter than the
// window but at least MinSeconds long is analysed over its whole seconds and
// the shorter window is recorded in the fingerprint.
func Generate(id models.FileIdentity, samples []float32, sampleRate int, p Params) (Fingerprint, error) {
	if err := p.Validate(); err != nil {
		return Fingerprint{}, err
	}
	if sampleRate != p.SampleRate {
		return Fingerprint{}, fmt.Errorf("%w: samples at %d Hz, params expect %d Hz", failure.ErrIncompatibleParameters, sampleRate, p.SampleRate)
	}
	if len(samples) == 0 {
		return Fingerprint{}, fmt.Errorf("%w: %s decoded to no samples", failure.ErrDecodeFailure, id.Path)
	}

	seconds := p.WindowSeconds
	if n := len(samples) / sampleRate; n < seconds {
		if n < p.MinSeconds {
			return Fingerprint{}, fmt.Errorf("%w: %s has %.1fs of audio, need %ds",
				failure.ErrInsufficientSamples, id.Path, float64(len(samples))/float64(sampleRate), p.MinSeconds)
		}
		seconds = n
	}
	win := samples[:seconds*sampleRate]
	if rms(win) < silenceRMS {
		return Fingerprint{}, fmt.Errorf("%w: %s is silent in its first %ds", failure.ErrInsufficientSamples, id.Path, seconds)
	}

	energies := bandEnergies(win, p)
	fp := Fingerprint{
		Identity:      id,
		Params:        p,
		WindowSeconds: seconds,
		BitLen:        p.BitLen(),
		Bits:          make([]uint64, wordsFor(p.BitLen())),
	}
	col := make([]float64, p.Chunks)
	for b := 0; b < p.BandsPerChunk; b++ {
		for c := range col {
			col[c] = energies[c][b]
		}
		sort.Float64s(col)
		median := stat.Quantile(0.5, stat.Empirical, col, nil)
		for c := 0; c < p.Chunks; c++ {
			if energies[c][b] > median {
				i := c*p.BandsPerChunk + b
				fp.Bits[i/64] |= 1 << (uint(i) % 64)
			}
		}
	}
	return fp, nil
}

// bandEnergies returns, per chunk, the log energy of each band in the
// averaged Hann-windowed power spectrum of that chunk.
func bandEnergies(win []float32, p Params) [][]float64 {
	fft := fourier.NewFFT(p.FrameSize)
	hann := window.Hann(p.FrameSize)
	bins := p.bandBins()

	frame := make([]float64, p.FrameSize)
	power := make([]float64, p.FrameSize/2+1)
	var coeffs []complex128

	chunkLen := len(win) / p.Chunks
	out := make([][]float64, p.Chunks)
	for c := range out {
		chunk := win[c*chunkLen : (c+1)*chunkLen]
		clear(power)
		frames := 0
		for start := 0; frames == 0 || start+p.FrameSize <= len(chunk); start += p.FrameSize {
			// a chunk shorter than one frame is zero padded
			for i := range frame {
				if start+i < len(chunk) {
					frame[i] = float64(chunk[start+i]) * hann[i]
				} else {
					frame[i] = 0
				}
			}
			coeffs = fft.Coefficients(coeffs, frame)
			for k, v := range coeffs {
				power[k] += real(v)*real(v) + imag(v)*imag(v)
			}
			frames++
		}

		out[c] = make([]float64, p.BandsPerChunk)
		for b, r := range bins {
			var e float64
			for k := r[0]; k < r[1]; k++ {
				e += power[k]
			}
			out[c][b] = 10 * math.Log10(e/float64(frames)+1e-12)
		}
	}
	return out
}

func rms(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}
