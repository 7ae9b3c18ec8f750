package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

The cache remembers the MD5 and CRC32 of every file romsort has read, keyed by
path, size and modification time, so unchanged files are not read again.
Cache data is stored in the XDG cache directory (typically ~/.cache/romsort/digests).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached digests",
	Long:  `Removes all cached digests. The next run reads every file again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath := appConfig.Cache.Path

		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			printInfo("Cache is already empty.")
			return nil
		}

		n, err := clearCache(cachePath)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		printInfo("Cache cleared (%s entries removed).", humanize.Comma(int64(n)))
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath := appConfig.Cache.Path

		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			fmt.Println("Cache: empty (no cache directory)")
			fmt.Printf("Cache location: %s\n", cachePath)
			return nil
		}

		cache, err := digest.OpenCache(cachePath)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer cache.Close()

		n, err := cache.Len()
		if err != nil {
			return fmt.Errorf("failed to count cache entries: %w", err)
		}

		fmt.Printf("Cache location: %s\n", cachePath)
		fmt.Printf("Cache entries:  %s\n", humanize.Comma(int64(n)))
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appConfig.Cache.Path)
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// clearCache drops every entry of the cache at path and returns how many
// there were.
func clearCache(path string) (int, error) {
	cache, err := digest.OpenCache(path)
	if err != nil {
		return 0, err
	}
	defer cache.Close()

	n, err := cache.Len()
	if err != nil {
		return 0, err
	}
	if err := cache.Clear(); err != nil {
		return 0, err
	}
	return n, nil
}
