// file: internal/quality/score.go
// version: 1.0.0
// guid: e20b3743-bc32-416e-90d1-555cff190e3a

// Package quality scores the technical quality of a track from its loudness,
// peak and dynamic range measurements. Everything here is a pure function of
// Metrics.
package quality

// Metrics are the measurements a score is derived from.
type Metrics struct {
	IntegratedLoudness float64 `json:"integrated_loudness" yaml:"integrated_loudness"` // LUFS
	TruePeak           float64 `json:"true_peak" yaml:"true_peak"`                     // dBFS
	DynamicRange       float64 `json:"dynamic_range" yaml:"dynamic_range"`             // LU
	BitDepth           int     `json:"bit_depth,omitempty" yaml:"bit_depth,omitempty"`
	SampleRate         int     `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	DurationSeconds    float64 `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	Clipping           bool    `json:"clipping" yaml:"clipping"`
}

// Label is the headline classification of a track.
type Label string

const (
	LabelClipped        Label = "CLIPPED"
	LabelTooLoud        Label = "TOO_LOUD"
	LabelTooQuiet       Label = "TOO_QUIET"
	LabelBrickWalled    Label = "BRICK_WALLED"
	LabelStreamingReady Label = "STREAMING_READY"
	LabelAcceptable     Label = "ACCEPTABLE"
)

// Loudness targets and limits.
const (
	LoudestLUFS       = -8.0
	QuietestLUFS      = -23.0
	TargetLoudestLUFS = -12.0
	TargetQuietLUFS   = -20.0
	PeakWarningDBFS   = -0.5
	BrickWallLU       = 4.0
	CompressedLU      = 6.0
	UnmasteredLU      = 20.0
	StreamingReady    = 85
)

// Score returns the 0-100 quality score and the label of m.
func Score(m Metrics) (int, Label) {
	score := 100

	switch {
	case m.IntegratedLoudness < QuietestLUFS || m.IntegratedLoudness > LoudestLUFS:
		score -= 30
	case m.IntegratedLoudness < TargetQuietLUFS || m.IntegratedLoudness > TargetLoudestLUFS:
		score -= 15
	}

	switch {
	case clipped(m):
		score -= 40
	case m.TruePeak > PeakWarningDBFS:
		score -= 20
	}

	switch {
	case m.DynamicRange < BrickWallLU:
		score -= 25
	case m.DynamicRange < CompressedLU:
		score -= 15
	case m.DynamicRange > UnmasteredLU:
		score -= 10
	}

	if m.BitDepth >= 24 {
		score += 5
	}
	if m.SampleRate >= 48000 {
		score += 5
	}
	score = max(0, min(100, score))

	return score, label(m, score)
}

// label applies the rules in precedence order. Clipping is the only
// irreversible defect, so it always surfaces first.
func label(m Metrics, score int) Label {
	switch {
	case clipped(m):
		return LabelClipped
	case m.IntegratedLoudness > LoudestLUFS:
		return LabelTooLoud
	case m.IntegratedLoudness < QuietestLUFS:
		return LabelTooQuiet
	case m.DynamicRange < BrickWallLU:
		return LabelBrickWalled
	case score >= StreamingReady:
		return LabelStreamingReady
	default:
		return LabelAcceptable
	}
}

func clipped(m Metrics) bool {
	return m.Clipping || m.TruePeak > 0
}
