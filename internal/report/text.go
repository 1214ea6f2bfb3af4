// file: internal/report/text.go
// version: 1.0.0
// guid: 5a9c1e37-2d84-4f06-b7e3-8c4d0a6f1b92

package report

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/jdfalk/beat-organizer/internal/quality"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var units = []string{"KiB", "MiB", "GiB", "TiB", "PiB"}

// HumanSize formats a byte count with binary units and grouped digits.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return printer.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 4; v /= unit {
		div *= unit
		exp++
	}
	return printer.Sprintf("%.1f %s", float64(n)/float64(div), units[exp])
}

// HumanDuration formats d as minutes and seconds, or milliseconds under a
// second.
func HumanDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(100 * time.Millisecond)
	m := int(d / time.Minute)
	s := (d % time.Minute).Seconds()
	if m == 0 {
		return fmt.Sprintf("%.1fs", s)
	}
	return fmt.Sprintf("%dm%04.1fs", m, s)
}

type palette struct {
	head, good, warn, bad, dim func(a ...any) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		head: mk(color.Bold),
		good: mk(color.FgGreen),
		warn: mk(color.FgYellow),
		bad:  mk(color.FgRed, color.Bold),
		dim:  mk(color.Faint),
	}
}

func (p palette) verdict(v models.Verdict) string {
	switch v {
	case models.VerdictBest, models.VerdictGood:
		return p.good(string(v))
	case models.VerdictAcceptable:
		return p.warn(string(v))
	}
	return p.bad(string(v))
}

func (p palette) label(l quality.Label) string {
	switch l {
	case quality.LabelStreamingReady:
		return p.good(string(l))
	case quality.LabelAcceptable:
		return p.warn(string(l))
	case "":
		return p.dim("-")
	}
	return p.bad(string(l))
}

func (p palette) severity(s quality.Severity) string {
	switch s {
	case quality.SeverityCritical:
		return p.bad(string(s))
	case quality.SeverityWarning:
		return p.warn(string(s))
	}
	return p.dim(string(s))
}

func writeResultText(w io.Writer, res *analyzer.Result, opts Options) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}

	ew.printf("%s %s\n", p.head("Batch"), res.BatchID)
	ew.print(printer.Sprintf("Analyzed %d files in %s: %d duplicate groups, %d unique, %d failed\n",
		len(res.Files)+len(res.Failures), HumanDuration(res.Elapsed),
		len(res.Groups), len(res.Singletons), len(res.Failures)))
	ew.print(printer.Sprintf("Threshold %.1f%%, %d comparisons, reclaimable %s\n",
		res.Threshold, res.Comparisons, HumanSize(res.WastedBytes())))
	if res.CacheErrors > 0 {
		ew.printf("%s\n", p.warn(printer.Sprintf("cache degraded: %d errors", res.CacheErrors)))
	}

	for i, g := range res.Groups {
		ew.printf("\n%s %d/%d  %s  %s, %s reclaimable\n", p.head("Group"), i+1, len(res.Groups),
			p.dim(g.ID), HumanSize(g.TotalBytes), HumanSize(g.WastedBytes))
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tVERDICT\tSCORE\tLABEL\tFORMAT\tSIZE\tPATH")
		for _, m := range g.Ranking {
			score := p.dim("-")
			if m.Scored {
				score = fmt.Sprint(m.Score)
			}
			format := m.Format
			if format == "" {
				format = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", m.Rank, p.verdict(m.Verdict), score,
				p.label(quality.Label(m.Label)), format, HumanSize(m.Identity.Size), m.Identity.Path)
		}
		tw.Flush()
		if g.RecommendedKeep != nil {
			ew.printf("  keep %s\n", g.RecommendedKeep.Path)
		}
		if opts.Verbose {
			for _, m := range g.Ranking {
				ew.printf("  %s: %s\n", filepath.Base(m.Identity.Path), m.Reason)
			}
		}
	}

	if len(res.Failures) > 0 {
		ew.printf("\n%s\n", p.head("Failures"))
		paths := make([]string, 0, len(res.Failures))
		for path := range res.Failures {
			paths = append(paths, path)
		}
		slices.Sort(paths)
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		for _, path := range paths {
			f := res.Failures[path]
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.bad(string(f.Kind)), path, f.Message)
		}
		tw.Flush()
	}

	if opts.Verbose && len(res.Singletons) > 0 {
		ew.printf("\n%s\n", p.head("Unique files"))
		for _, id := range res.Singletons {
			ew.printf("  %s\n", id.Path)
		}
	}

	s := res.Stats
	if s.Files > 0 {
		ew.printf("\n%s\n", p.head("Collection"))
		ew.print(printer.Sprintf("  %d measured, average %.1f LUFS, %.1f LU dynamic range, score %.0f\n",
			s.Files, s.AverageLoudness, s.AverageDynamicRange, s.AverageScore))
		ew.print(printer.Sprintf("  %d streaming ready, %d clipped\n", s.StreamingReady, s.Clipped))
	}
	return ew.err
}

func writeRecordText(w io.Writer, rec analyzer.FileRecord, opts Options) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}

	ew.printf("%s %s\n", p.head("File"), rec.Identity.Path)
	ew.printf("  size      %s\n", HumanSize(rec.Identity.Size))
	if m := rec.Media; m != nil {
		ew.printf("  format    %s %s\n", m.Format, m.Quality)
	}
	if !rec.Scored() {
		reason := rec.ScoreError
		if reason == "" {
			reason = "quality measurement skipped"
		}
		ew.printf("  score     %s (%s)\n", p.dim("unscored"), reason)
		return ew.err
	}
	m := rec.Metrics
	ew.printf("  loudness  %.1f LUFS\n", m.IntegratedLoudness)
	ew.printf("  peak      %.1f dBFS\n", m.TruePeak)
	ew.printf("  range     %.1f LU\n", m.DynamicRange)
	ew.printf("  score     %d %s\n", rec.Score, p.label(rec.Label))
	for _, f := range rec.Findings {
		ew.printf("  [%s] %s: %s\n", p.severity(f.Severity), f.Issue, f.Recommendation)
	}
	return ew.err
}

func writeComparisonText(w io.Writer, c Comparison, opts Options) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}
	ew.printf("%s\n%s\n", c.A, c.B)
	switch {
	case c.Error != "":
		ew.printf("  %s %s\n", p.bad("not comparable:"), c.Error)
	case c.Duplicate:
		ew.printf("  similarity %.2f%% %s\n", c.Similarity, p.warn("duplicate"))
	default:
		ew.printf("  similarity %.2f%% %s\n", c.Similarity, p.good("distinct"))
	}
	if c.Identical {
		ew.printf("  %s\n", p.dim("byte-identical"))
	}
	return ew.err
}

// errWriter keeps the first write error so rendering code can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, a ...any) {
	fmt.Fprintf(e, format, a...)
}

func (e *errWriter) print(s string) {
	io.WriteString(e, s)
}
