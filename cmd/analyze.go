// file: cmd/analyze.go
// version: 1.0.0
// guid: 8d2e4b71-0f39-4a6c-b5d8-e17c3a9f2064

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// outputFlags are shared by every command that renders a report.
type outputFlags struct {
	format  string
	output  string
	color   string
	verbose bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "report format: text, json or yaml")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "also write the report to this file")
	cmd.Flags().StringVar(&f.color, "color", "auto", "colorize text output: auto, always or never")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "include ranking reasons and unique files")
}

func (f *outputFlags) options() (report.Options, error) {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return report.Options{}, err
	}
	useColor, err := colorEnabled(f.color)
	if err != nil {
		return report.Options{}, err
	}
	return report.Options{Format: format, Color: useColor, Verbose: f.verbose}, nil
}

var analyzeFlags struct {
	out         outputFlags
	noProgress  bool
	skipQuality bool
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <path>...",
	Short: "Find duplicate audio among files and directories",
	Long: `Analyze fingerprints every supported audio file under the given paths,
groups files whose audio is the same, and ranks each group by quality.

Results for unchanged files are reused from the analysis cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ropts, err := analyzeFlags.out.options()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		paths, err := a.discover(ctx, args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No supported audio files found")
			return nil
		}

		opts := a.cfg.AnalyzerOptions()
		if analyzeFlags.skipQuality {
			opts.SkipQuality = true
		}
		var bar *progressbar.ProgressBar
		if !analyzeFlags.noProgress {
			bar = newProgressBar(cmd.ErrOrStderr(), len(paths))
			opts.Progress = func(completed, _ int, current string) {
				bar.Describe(filepath.Base(current))
				_ = bar.Set(completed)
			}
		}

		res, err := a.runBatch(ctx, paths, opts)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}
		return emitResult(cmd.OutOrStdout(), res, analyzeFlags.out.output, ropts)
	},
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func emitResult(w io.Writer, res *analyzer.Result, file string, opts report.Options) error {
	if err := report.WriteResult(w, res, opts); err != nil {
		return err
	}
	if file == "" {
		return nil
	}
	if err := report.WriteResultFile(file, res, opts); err != nil {
		return fmt.Errorf("write report %s: %w", file, err)
	}
	logger.Info().Str("path", file).Msg("report written")
	return nil
}

func init() {
	analyzeFlags.out.register(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeFlags.noProgress, "no-progress", false, "disable the progress bar")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.skipQuality, "skip-quality", false, "skip loudness measurement; groups are ranked by format only")
}

