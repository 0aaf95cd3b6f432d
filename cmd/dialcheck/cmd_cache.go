package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dialcheck/dialcheck/internal/cache"
	"github.com/dialcheck/dialcheck/internal/projectconfig"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the evaluation result cache",
		Long: `Manage the evaluation result cache.

The cache stores judged reports to speed up repeated runs with the same
inputs. Cached results are keyed by test case configuration, knowledge base
contents, and judge model.`,
	}

	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (default: from .dialcheck.yaml)")

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := resolveCacheDir()
			if err != nil {
				return err
			}
			entries, bytes, err := cache.New(absDir).Stats()
			if err != nil {
				return fmt.Errorf("reading cache: %w", err)
			}
			fmt.Printf("Cache: %s\n", absDir)
			fmt.Printf("Entries: %d\n", entries)
			fmt.Printf("Size: %.1f KiB\n", float64(bytes)/1024)
			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the evaluation result cache",
		Long: `Clear all cached evaluation results.

This removes all cached reports. The next run will dial and judge every
test case from scratch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := resolveCacheDir()
			if err != nil {
				return err
			}
			if err := cache.New(absDir).Clear(); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Printf("Cache cleared: %s\n", absDir)
			return nil
		},
	}
}

func resolveCacheDir() (string, error) {
	dir := cacheDir
	if dir == "" {
		pc, err := projectconfig.Load(".")
		if err != nil {
			return "", err
		}
		dir = pc.Cache.Dir
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return absDir, nil
}
