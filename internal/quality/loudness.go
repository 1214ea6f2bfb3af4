// file: internal/quality/loudness.go
// version: 1.0.0
// guid: 7f2aa14e-9f55-4b08-8e9b-0322ae100790

package quality

// Loudness is an EBU R128 measurement of a whole file.
type Loudness struct {
	Integrated float64 `json:"integrated"` // LUFS
	TruePeak   float64 `json:"true_peak"`  // dBFS
	Range      float64 `json:"range"`      // LU
}

// Format describes the decoded stream a measurement was taken from.
type Format struct {
	BitDepth        int
	SampleRate      int
	DurationSeconds float64
}

// NewMetrics assembles Metrics from a loudness measurement and stream
// format. Loudness range stands in for dynamic range, and any true peak
// above 0 dBFS marks the track as clipped.
func NewMetrics(l Loudness, f Format) Metrics {
	return Metrics{
		IntegratedLoudness: l.Integrated,
		TruePeak:           l.TruePeak,
		DynamicRange:       l.Range,
		BitDepth:           f.BitDepth,
		SampleRate:         f.SampleRate,
		DurationSeconds:    f.DurationSeconds,
		Clipping:           l.TruePeak > 0,
	}
}
