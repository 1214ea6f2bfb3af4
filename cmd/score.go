// file: cmd/score.go
// version: 1.0.0
// guid: 2b7f9e03-4c61-4d8a-9a25-6e0d1c8f3b47

package cmd

import (
	"fmt"

	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/report"
	"github.com/spf13/cobra"
)

var scoreFlags outputFlags

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <file>",
	Short: "Measure and score the quality of one file",
	Long: `Score measures loudness, true peak and dynamic range of a single file,
prints its 0-100 quality score and label, and lists any problems found
with a suggested fix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ropts, err := scoreFlags.options()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := analyzeOne(cmd, a, args[0], a.cfg.AnalyzerOptions())
		if err != nil {
			return err
		}
		return report.WriteRecord(cmd.OutOrStdout(), rec, ropts)
	},
}

// analyzeOne runs a single-file batch and turns an excluded file into an
// error.
func analyzeOne(cmd *cobra.Command, a *app, path string, opts analyzer.Options) (analyzer.FileRecord, error) {
	paths, err := a.discover(cmd.Context(), []string{path})
	if err != nil {
		return analyzer.FileRecord{}, err
	}
	if len(paths) != 1 {
		return analyzer.FileRecord{}, fmt.Errorf("%s is not a supported audio file", path)
	}
	res, err := a.runBatch(cmd.Context(), paths, opts)
	if err != nil {
		return analyzer.FileRecord{}, err
	}
	if f, ok := res.Failures[paths[0]]; ok {
		return analyzer.FileRecord{}, fmt.Errorf("%s: %s", f.Kind, f.Message)
	}
	return res.Files[paths[0]], nil
}

func init() {
	scoreFlags.register(scoreCmd)
}
