// file: cmd/cache.go
// version: 1.0.0
// guid: 4c0e7a2d-95b3-4e18-a6f7-0b8d2e5c9a31

package cmd

import (
	"fmt"

	"github.com/jdfalk/beat-organizer/internal/cache"
	"github.com/jdfalk/beat-organizer/internal/config"
	"github.com/jdfalk/beat-organizer/internal/fileops"
	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(cfg *config.Config, s cache.Store) error {
			n, err := s.Len(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\npath: %s\nentries: %d\n", cfg.Cache.Backend, cfg.Cache.Path, n)
			return nil
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries for files that were deleted or changed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(_ *config.Config, s cache.Store) error {
			n, err := s.Prune(cmd.Context(), func(e cache.Entry) bool { return fileops.Changed(e.Identity) })
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale entries\n", n)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(_ *config.Config, s cache.Store) error {
			n, err := s.Prune(cmd.Context(), func(cache.Entry) bool { return true })
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
			return nil
		})
	},
}

func withCache(fn func(cfg *config.Config, s cache.Store) error) error {
	cfg := &config.AppConfig
	s, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cfg, s)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
