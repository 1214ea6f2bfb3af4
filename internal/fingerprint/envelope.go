// file: internal/fingerprint/envelope.go
// version: 1.0.0
// guid: 3f9c2b71-8e4d-4a06-b5d2-7c1e0a9f6b48

package fingerprint

import (
	"fmt"

	"github.com/jdfalk/beat-organizer/internal/failure"
)

// DefaultEnvelopeWidth is the number of points in a comparison waveform.
const DefaultEnvelopeWidth = 400

// Envelope reduces samples to width RMS points, scaled so the loudest point
// is 1. Digital silence gives all zeros. It returns nil when width is not
// positive or there are fewer samples than points.
func Envelope(samples []float32, width int) []float32 {
	if width <= 0 || len(samples) < width {
		return nil
	}
	out := make([]float32, width)
	vals := make([]float64, width)
	var peak float64
	for i := range vals {
		chunk := samples[i*len(samples)/width : (i+1)*len(samples)/width]
		vals[i] = rms(chunk)
		peak = max(peak, vals[i])
	}
	if peak == 0 {
		return out
	}
	for i, v := range vals {
		out[i] = float32(v / peak)
	}
	return out
}

// ValidateEnvelopeWidth checks that every file long enough to fingerprint
// with p also yields a full envelope.
func (p Params) ValidateEnvelopeWidth(width int) error {
	if width < 0 || width > p.MinSeconds*p.SampleRate {
		return fmt.Errorf("%w: envelope width must be in 0..%d, got %d", failure.ErrInvalidConfig, p.MinSeconds*p.SampleRate, width)
	}
	return nil
}
