// file: internal/ffmpeg/loudness.go
// version: 1.0.0
// guid: 2f0c6f1e-5f4a-4b0a-9d0f-3c1b0d8e6a41

package ffmpeg

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/quality"
)

var (
	integratedRe = regexp.MustCompile(`I:\s+(-?[0-9.]+|-inf)\s+LUFS`)
	rangeRe      = regexp.MustCompile(`LRA:\s+(-?[0-9.]+|-inf)\s+LU`)
	peakRe       = regexp.MustCompile(`Peak:\s+(-?[0-9.]+|-inf)\s+dBFS`)
)

// MeasureLoudness runs the EBU R128 filter over the whole file and returns
// integrated loudness, true peak and loudness range.
func (r *Runner) MeasureLoudness(ctx context.Context, path string) (quality.Loudness, error) {
	_, stderr, err := r.run(ctx, r.cfg.FFmpegPath,
		"-hide_banner", "-nostdin", "-nostats",
		"-i", path,
		"-vn",
		"-af", "ebur128=peak=true",
		"-f", "null", "-",
	)
	if err != nil {
		return quality.Loudness{}, fmt.Errorf("measure loudness %s: %w", path, err)
	}
	l, err := parseEBUR128(string(stderr))
	if err != nil {
		return quality.Loudness{}, fmt.Errorf("measure loudness %s: %w", path, err)
	}
	return l, nil
}

// parseEBUR128 reads the summary block that the ebur128 filter prints when
// the stream ends. Per-frame lines before the summary are ignored.
func parseEBUR128(output string) (quality.Loudness, error) {
	idx := strings.LastIndex(output, "Summary:")
	if idx < 0 {
		return quality.Loudness{}, fmt.Errorf("%w: no ebur128 summary in ffmpeg output", failure.ErrDecodeFailure)
	}
	summary := output[idx:]

	var l quality.Loudness
	fields := []struct {
		re   *regexp.Regexp
		dst  *float64
		name string
	}{
		{integratedRe, &l.Integrated, "integrated loudness"},
		{rangeRe, &l.Range, "loudness range"},
		{peakRe, &l.TruePeak, "true peak"},
	}
	for _, f := range fields {
		m := f.re.FindStringSubmatch(summary)
		if m == nil {
			return quality.Loudness{}, fmt.Errorf("%w: ebur128 summary has no %s", failure.ErrDecodeFailure, f.name)
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return quality.Loudness{}, fmt.Errorf("%w: bad %s %q", failure.ErrDecodeFailure, f.name, m[1])
		}
		*f.dst = v
	}
	return l, nil
}
