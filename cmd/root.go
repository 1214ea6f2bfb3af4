// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"fmt"
	"os"

	"github.com/jdfalk/beat-organizer/internal/config"
	"github.com/jdfalk/beat-organizer/internal/logging"
	"github.com/jdfalk/beat-organizer/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// initErr holds a configuration failure from initConfig, which cannot
// return one itself.
var initErr error

// logger is built from the loaded configuration before any command runs.
var logger = zerolog.Nop()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "beat-organizer",
	Short: "Find duplicate audio by content and pick the best copy",
	Long: `Beat Organizer fingerprints the audio in your sample and track library,
groups files that sound the same regardless of name, format or encoding,
and ranks every copy by technical quality so you know which one to keep.

Nothing is moved or deleted; the result is a report.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if initErr != nil {
			return initErr
		}
		log, err := logging.New(config.AppConfig.Log)
		if err != nil {
			return err
		}
		logger = log
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		path := config.AppConfig.Metrics.Textfile
		if path == "" {
			return nil
		}
		if err := metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.beat-organizer.yaml)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("metrics-file", "", "write prometheus metrics to this textfile after the run")
	pf.String("cache-backend", "pebble", "analysis cache: pebble, badger, memory or none")
	pf.String("cache-dir", "", "analysis cache directory")
	pf.Float64("threshold", 98, "similarity percentage at or above which two files are duplicates")
	pf.Int("workers", 0, "files analyzed concurrently (default: number of CPUs)")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.BindPFlag("metrics.textfile", pf.Lookup("metrics-file"))
	viper.BindPFlag("cache.backend", pf.Lookup("cache-backend"))
	viper.BindPFlag("cache.path", pf.Lookup("cache-dir"))
	viper.BindPFlag("analysis.threshold", pf.Lookup("threshold"))
	viper.BindPFlag("analysis.max_concurrency", pf.Lookup("workers"))

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(watchCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".beat-organizer")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			initErr = fmt.Errorf("read config %s: %w", cfgFile, err)
			return
		}
	}

	initErr = config.InitConfig()
}
