// file: internal/fingerprint/params.go
// version: 1.1.0
// guid: 1bcc5aa9-1e29-4c7b-9aca-0bb9f9c18b2a

package fingerprint

import (
	"fmt"
	"math"

	"github.com/jdfalk/beat-organizer/internal/failure"
)

// Params are the generation settings recorded with every fingerprint. Two
// fingerprints are comparable only when their Params match exactly.
type Params struct {
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	WindowSeconds int     `json:"window_seconds" yaml:"window_seconds" mapstructure:"window_seconds"`
	MinSeconds    int     `json:"min_seconds" yaml:"min_seconds" mapstructure:"min_seconds"`
	LowHz         float64 `json:"low_hz" yaml:"low_hz" mapstructure:"low_hz"`
	HighHz        float64 `json:"high_hz" yaml:"high_hz" mapstructure:"high_hz"`
	Chunks        int     `json:"chunks" yaml:"chunks" mapstructure:"chunks"`
	BandsPerChunk int     `json:"bands_per_chunk" yaml:"bands_per_chunk" mapstructure:"bands_per_chunk"`
	FrameSize     int     `json:"frame_size" yaml:"frame_size" mapstructure:"frame_size"`
}

// DefaultParams returns the standard settings: the first 30 seconds at
// 22.05 kHz mono, band-limited to 200 Hz-4 kHz, 32 chunks of 8 bands for a
// 256-bit fingerprint.
func DefaultParams() Params {
	return Params{
		SampleRate:    22050,
		WindowSeconds: 30,
		MinSeconds:    5,
		LowHz:         200,
		HighHz:        4000,
		Chunks:        32,
		BandsPerChunk: 8,
		FrameSize:     4096,
	}
}

// BitLen is the fingerprint length these params produce.
func (p Params) BitLen() int {
	return p.Chunks * p.BandsPerChunk
}

// Validate checks that the params can produce a fingerprint.
func (p Params) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", failure.ErrInvalidConfig, p.SampleRate)
	case p.WindowSeconds <= 0:
		return fmt.Errorf("%w: window must be positive, got %ds", failure.ErrInvalidConfig, p.WindowSeconds)
	case p.MinSeconds <= 0 || p.MinSeconds > p.WindowSeconds:
		return fmt.Errorf("%w: minimum length must be in 1..%d seconds, got %d", failure.ErrInvalidConfig, p.WindowSeconds, p.MinSeconds)
	case p.LowHz <= 0 || p.HighHz <= p.LowHz:
		return fmt.Errorf("%w: band %.0f-%.0f Hz is empty", failure.ErrInvalidConfig, p.LowHz, p.HighHz)
	case p.HighHz > float64(p.SampleRate)/2:
		return fmt.Errorf("%w: %.0f Hz is above Nyquist for %d Hz", failure.ErrInvalidConfig, p.HighHz, p.SampleRate)
	case p.Chunks < 2:
		return fmt.Errorf("%w: need at least 2 chunks, got %d", failure.ErrInvalidConfig, p.Chunks)
	case p.BandsPerChunk < 1:
		return fmt.Errorf("%w: need at least 1 band, got %d", failure.ErrInvalidConfig, p.BandsPerChunk)
	case p.FrameSize < 64:
		return fmt.Errorf("%w: frame size %d too small", failure.ErrInvalidConfig, p.FrameSize)
	}
	for i, r := range p.bandBins() {
		if r[1] <= r[0] {
			return fmt.Errorf("%w: band %d has no FFT bins at frame size %d", failure.ErrInvalidConfig, i, p.FrameSize)
		}
	}
	// every chunk of the shortest accepted window must hold real samples
	if p.MinSeconds*p.SampleRate < p.Chunks {
		return fmt.Errorf("%w: %d chunks do not fit in %ds", failure.ErrInvalidConfig, p.Chunks, p.MinSeconds)
	}
	return nil
}

// bandBins returns the half-open FFT bin range of each log-spaced band
// between LowHz and HighHz.
func (p Params) bandBins() [][2]int {
	binHz := float64(p.SampleRate) / float64(p.FrameSize)
	maxBin := p.FrameSize/2 + 1
	ratio := p.HighHz / p.LowHz
	out := make([][2]int, p.BandsPerChunk)
	for b := range out {
		lo := p.LowHz * math.Pow(ratio, float64(b)/float64(p.BandsPerChunk))
		hi := p.LowHz * math.Pow(ratio, float64(b+1)/float64(p.BandsPerChunk))
		out[b] = [2]int{
			min(int(math.Ceil(lo/binHz)), maxBin),
			min(int(math.Ceil(hi/binHz)), maxBin),
		}
	}
	return out
}

// LeadingSilenceDB is the level below which the start of a track is dropped
// before the window begins. Encoder priming and padded intros then line up
// with the undelayed copy.
const LeadingSilenceDB = -60.0

// DecodeRequest describes the PCM a decoder must deliver for these params.
type DecodeRequest struct {
	SampleRate int
	Channels   int
	MaxSeconds int
	LowHz      float64
	HighHz     float64
	// TrimBelowDB drops leading audio quieter than this level. Zero keeps it.
	TrimBelowDB float64
}

// DecodeRequest returns the mono, band-limited decode needed to fingerprint
// with p.
func (p Params) DecodeRequest() DecodeRequest {
	return DecodeRequest{
		SampleRate:  p.SampleRate,
		Channels:    1,
		MaxSeconds:  p.WindowSeconds,
		LowHz:       p.LowHz,
		HighHz:      p.HighHz,
		TrimBelowDB: LeadingSilenceDB,
	}
}
