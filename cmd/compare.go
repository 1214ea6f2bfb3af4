// file: cmd/compare.go
// version: 1.0.0
// guid: 9e4a0c58-1b7d-4f23-8c69-d35f2a7e0b14

package cmd

import (
	"fmt"

	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/fileops"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/report"
	"github.com/spf13/cobra"
)

var compareFlags outputFlags

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Show how similar two files sound",
	Long: `Compare fingerprints two files and prints their similarity and whether
they count as duplicates at the configured threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ropts, err := compareFlags.options()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		opts := a.cfg.AnalyzerOptions()
		opts.SkipQuality = true
		recs := make([]analyzer.FileRecord, 2)
		for i, path := range args {
			if recs[i], err = analyzeOne(cmd, a, path, opts); err != nil {
				return err
			}
		}

		c, err := compareRecords(recs[0], recs[1], opts.Threshold)
		if err != nil {
			return err
		}
		return report.WriteComparison(cmd.OutOrStdout(), c, ropts)
	},
}

func compareRecords(x, y analyzer.FileRecord, threshold float64) (report.Comparison, error) {
	c := report.Comparison{A: x.Identity.Path, B: y.Identity.Path, Threshold: threshold}

	hx, err := fileops.ContentHash(c.A)
	if err != nil {
		return c, fmt.Errorf("hash %s: %w", c.A, err)
	}
	hy, err := fileops.ContentHash(c.B)
	if err != nil {
		return c, fmt.Errorf("hash %s: %w", c.B, err)
	}
	c.Identical = hx == hy

	d, err := fingerprint.Distance(x.Fingerprint, y.Fingerprint)
	if err != nil {
		c.Error = err.Error()
		return c, nil
	}
	c.Similarity = fingerprint.Similarity(d, x.Fingerprint.BitLen)
	c.Duplicate = d <= fingerprint.MaxDistance(threshold, x.Fingerprint.BitLen)
	return c, nil
}

func init() {
	compareFlags.register(compareCmd)
}
