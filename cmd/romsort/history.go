package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/romsort/pkg/romsort/config"
	"github.com/jamesainslie/romsort/pkg/romsort/manifest"
	"github.com/jamesainslie/romsort/pkg/romsort/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past organize runs",
	Long: `View the history of organize runs.

Each run is recorded with every file it moved, rejected or failed on,
so a run's effects can be reviewed later.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func getManifest() (*manifest.Manifest, error) {
	m, err := manifest.New(appConfig.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return m, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return err
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'romsort organize [root] --dat <file>' to sort a ROM folder.")
		return nil
	}

	writeHistoryList(os.Stdout, entries)
	fmt.Println("Use 'romsort history show <id>' for details on a specific run.")
	return nil
}

func writeHistoryList(w io.Writer, entries []manifest.Entry) {
	fmt.Fprintf(w, "\n%-40s  %-16s  %-7s  %-8s  %-6s\n", "ID", "WHEN", "MOVED", "REJECTED", "FAILED")
	fmt.Fprintln(w, strings.Repeat("-", 85))

	for _, entry := range entries {
		id := truncateString(entry.ID, 40)
		if entry.DryRun {
			id = truncateString(entry.ID, 34) + " (dry)"
		}
		fmt.Fprintf(w, "%-40s  %-16s  %-7d  %-8d  %-6d\n",
			id,
			humanize.Time(entry.Timestamp),
			entry.Summary.Moved,
			entry.Summary.Rejected(),
			entry.Summary.Failed(),
		)
	}

	fmt.Fprintln(w, strings.Repeat("-", 85))
	fmt.Fprintf(w, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return err
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	writeHistoryEntry(os.Stdout, entry)
	return nil
}

// writeHistoryEntry prints a run and at most 50 of its files.
func writeHistoryEntry(w io.Writer, entry *manifest.Entry) {
	fmt.Fprintln(w, "\nRun Details")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "ID:         %s\n", entry.ID)
	fmt.Fprintf(w, "Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Root:       %s\n", entry.Root)
	if entry.Catalog != "" {
		fmt.Fprintf(w, "Catalog:    %s (%s)\n", entry.Catalog, entry.DAT)
	} else {
		fmt.Fprintf(w, "Catalog:    %s\n", entry.DAT)
	}
	fmt.Fprintf(w, "Twilight:   %t\n", entry.Twilight)
	fmt.Fprintf(w, "Dry run:    %t\n", entry.DryRun)
	fmt.Fprintf(w, "Candidates: %d\n", entry.Summary.Candidates)
	fmt.Fprintf(w, "Moved:      %d\n", entry.Summary.Moved)
	fmt.Fprintf(w, "Rejected:   %d\n", entry.Summary.Rejected())
	fmt.Fprintf(w, "Failed:     %d\n", entry.Summary.Failed())

	if len(entry.Files) == 0 {
		return
	}

	fmt.Fprintln(w, "\nFiles:")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	limit := min(len(entry.Files), 50)
	for _, rec := range entry.Files[:limit] {
		fmt.Fprintln(w, output.Message(output.FileLine{
			Kind:  rec.Kind,
			Path:  rec.Path,
			Dest:  rec.Dest,
			Error: rec.Error,
		}))
	}

	if len(entry.Files) > limit {
		fmt.Fprintf(w, "\n... and %d more files\n", len(entry.Files)-limit)
	}
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return err
	}

	retentionDays := appConfig.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("History cleanup complete (%d removed).", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
