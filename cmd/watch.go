// file: cmd/watch.go
// version: 1.0.0
// guid: 7a5b1f96-3e02-4c8d-b471-f6c9e8a20d53

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdfalk/beat-organizer/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchFlags outputFlags

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-analyze a library whenever its audio files change",
	Long: `Watch analyzes the directory once, then again every time audio files
under it are added, changed or removed. Changes are debounced so a burst of
copies triggers a single run, and unchanged files come from the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ropts, err := watchFlags.options()
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

		root := args[0]
		run := func(ctx context.Context) {
			paths, err := a.discover(ctx, []string{root})
			if err != nil {
				a.log.Error().Err(err).Msg("scan failed")
				return
			}
			res, err := a.runBatch(ctx, paths, a.cfg.AnalyzerOptions())
			if err != nil {
				if ctx.Err() == nil {
					a.log.Error().Err(err).Msg("analysis failed")
				}
				return
			}
			if err := emitResult(cmd.OutOrStdout(), res, watchFlags.output, ropts); err != nil {
				a.log.Error().Err(err).Msg("report failed")
			}
		}

		run(ctx)
		if ctx.Err() != nil {
			return nil
		}

		w := watcher.New(func(_ string, changed []string) {
			a.log.Info().Strs("changed", changed).Msg("library changed")
			run(ctx)
		}, watcher.Options{
			Extensions: a.cfg.Scan.Extensions,
			Debounce:   a.cfg.Scan.Debounce,
			Logger:     a.log,
		})
		if err := w.Start(root); err != nil {
			return err
		}
		a.log.Info().Str("root", root).Dur("debounce", a.cfg.Scan.Debounce).Msg("watching for changes")

		<-ctx.Done()
		w.Stop()
		return nil
	},
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().Duration("debounce", 0, "quiet period before re-analysis (default from config)")
	viper.BindPFlag("scan.debounce", watchCmd.Flags().Lookup("debounce"))
}
