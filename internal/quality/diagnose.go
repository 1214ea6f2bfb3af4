// file: internal/quality/diagnose.go
// version: 1.0.0
// guid: 6d76a748-de66-452d-bb92-acfaad5de1c6

package quality

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Finding is one issue detected in a track with a suggested fix.
type Finding struct {
	Severity       Severity `json:"severity" yaml:"severity"`
	Issue          string   `json:"issue" yaml:"issue"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
}

// Diagnose lists the problems in m, most severe category first.
func Diagnose(m Metrics) []Finding {
	var out []Finding
	add := func(s Severity, issue, rec string) {
		out = append(out, Finding{Severity: s, Issue: issue, Recommendation: rec})
	}

	switch {
	case m.IntegratedLoudness < QuietestLUFS:
		add(SeverityCritical, "too quiet, needs a significant level boost", "raise gain by at least 6 dB before mastering")
	case m.IntegratedLoudness < TargetQuietLUFS:
		add(SeverityWarning, "quiet, may need mastering", "apply gentle compression and limiting")
	case m.IntegratedLoudness > LoudestLUFS:
		add(SeverityCritical, "too loud, over-compressed", "reduce limiting and restore dynamic range")
	case m.IntegratedLoudness > TargetLoudestLUFS:
		add(SeverityWarning, "loud, may sound fatiguing", "consider a quieter master for streaming")
	}

	switch {
	case clipped(m):
		add(SeverityCritical, "clipping, digital distortion present", "apply true peak limiting below -1 dBTP")
	case m.TruePeak > PeakWarningDBFS:
		add(SeverityWarning, "peak close to clipping", "apply stricter peak limiting")
	}

	if m.DynamicRange < BrickWallLU {
		add(SeverityWarning, "brick-walled, almost no dynamic range", "source a less compressed master")
	}

	if m.BitDepth > 0 && m.BitDepth < 24 {
		add(SeverityInfo, "low bit depth, higher noise floor", "use 24-bit for production and 16-bit only for delivery")
	}
	if m.SampleRate > 0 && m.SampleRate < 44100 {
		add(SeverityInfo, "low sample rate, limited frequency range", "record and mix at 48 kHz or higher")
	}
	return out
}

// Classification is the full verdict for a single track.
type Classification struct {
	Score    int       `json:"score" yaml:"score"`
	Label    Label     `json:"label" yaml:"label"`
	Folder   string    `json:"suggested_folder" yaml:"suggested_folder"`
	Action   string    `json:"action" yaml:"action"`
	Findings []Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
}

// Classify scores m and suggests where the track belongs in a library
// sorted by readiness.
func Classify(m Metrics) Classification {
	score, lbl := Score(m)
	c := Classification{Score: score, Label: lbl, Findings: Diagnose(m)}
	switch lbl {
	case LabelClipped:
		c.Folder, c.Action = "00_URGENT_CLIPPED", "fix immediately, digital distortion present"
	case LabelStreamingReady:
		c.Folder, c.Action = "01_MASTERS_StreamingReady", "ready for release"
	case LabelTooQuiet:
		c.Folder, c.Action = "03_NEEDS_Mastering/too_quiet", "apply gain and compression to reach -16 LUFS"
	case LabelTooLoud:
		c.Folder, c.Action = "04_NEEDS_Remaster/over_compressed", "create a quieter streaming master at -14 LUFS"
	default:
		if score >= 50 {
			c.Folder, c.Action = "03_NEEDS_Mastering", "apply a mastering chain for consistency"
		} else {
			c.Folder, c.Action = "05_DAMAGED_Issues", "requires attention before use"
		}
	}
	return c
}
