package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"autodub/internal/logging"
	"autodub/internal/resultcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached provider results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts and sizes per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache := resultcache.New(cfg.Paths.CacheDir, logging.NewNop())
			stats, err := cache.Stats()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(stats))
			var totalEntries int
			var totalBytes int64
			for _, stat := range stats {
				rows = append(rows, []string{
					string(stat.Category),
					strconv.Itoa(stat.Entries),
					humanize.Bytes(uint64(stat.Bytes)),
				})
				totalEntries += stat.Entries
				totalBytes += stat.Bytes
			}
			printf(cmd, "%s\n", renderTable(
				[]string{"CATEGORY", "ENTRIES", "SIZE"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			printf(cmd, "total: %d entries, %s\n", totalEntries, humanize.Bytes(uint64(totalBytes)))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [category]",
		Short: "Delete cached results, for one category or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache := resultcache.New(cfg.Paths.CacheDir, logging.NewNop())
			if len(args) == 0 {
				if err := cache.ClearAll(); err != nil {
					return err
				}
				printf(cmd, "cache cleared\n")
				return nil
			}
			category := resultcache.Category(args[0])
			if !validCategory(category) {
				return fmt.Errorf("unknown cache category %q (valid: %s)", args[0], categoryNames())
			}
			if err := cache.Clear(category); err != nil {
				return err
			}
			printf(cmd, "cache category %s cleared\n", category)
			return nil
		},
	}
}

func validCategory(category resultcache.Category) bool {
	for _, known := range resultcache.Categories() {
		if category == known {
			return true
		}
	}
	return false
}

func categoryNames() string {
	names := ""
	for i, category := range resultcache.Categories() {
		if i > 0 {
			names += ", "
		}
		names += string(category)
	}
	return names
}
