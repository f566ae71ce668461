package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockmatch/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
	exportPath    string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored benchmark runs",
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var deleteRunCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its samples",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteRun,
}

var exportRunCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a run's samples as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long:  `Delete runs by retention policy: keep only the newest N, or drop runs older than N days.`,
	RunE:  runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd, showRunCmd, deleteRunCmd, exportRunCmd, cleanRunsCmd)

	runsCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for benchmark runs")

	exportRunCmd.Flags().StringVar(&exportPath, "csv", "data.csv", "CSV output path")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openRunStore() (*store.FSStore, error) {
	s, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}
	return s, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func runListRuns(cmd *cobra.Command, args []string) error {
	s, err := openRunStore()
	if err != nil {
		return err
	}
	infos, err := s.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tITERATIONS\tDURATION\tSIZE\tALGORITHMS")
	fmt.Fprintln(w, "------\t-------\t----------\t--------\t----\t----------")
	for _, info := range infos {
		duration := "incomplete"
		if info.Complete {
			duration = info.Duration.Round(time.Millisecond).String()
		}
		size := "unknown"
		if n, err := dirSize(filepath.Join(dataDir, "runs", info.ID)); err == nil {
			size = formatBytes(n)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			shortID(info.ID),
			info.Started.Format("2006-01-02 15:04:05"),
			info.Iterations,
			duration,
			size,
			strings.Join(info.Algorithms, ","),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	s, err := openRunStore()
	if err != nil {
		return err
	}
	run, err := s.LoadRun(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func runDeleteRun(cmd *cobra.Command, args []string) error {
	s, err := openRunStore()
	if err != nil {
		return err
	}
	if err := s.DeleteRun(args[0]); err != nil {
		return err
	}
	slog.Info("Deleted run", "run_id", args[0])
	return nil
}

func runExportRun(cmd *cobra.Command, args []string) error {
	s, err := openRunStore()
	if err != nil {
		return err
	}
	run, err := s.LoadRun(args[0])
	if err != nil {
		return err
	}
	if err := exportCSV(s, run, exportPath); err != nil {
		return err
	}
	slog.Info("CSV written", "run_id", run.ID, "path", exportPath)
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	s, err := openRunStore()
	if err != nil {
		return err
	}
	infos, err := s.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Println("No runs match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s)\n", shortID(info.ID), info.Started.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := s.DeleteRun(info.ID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted run", "run_id", info.ID)
		deleted++
	}

	fmt.Printf("\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the age and count retention rules. A run
// matching both rules is returned once. Result order is oldest first.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	sorted := append([]store.RunInfo(nil), infos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Started.Before(sorted[j].Started)
	})

	doomed := make(map[string]bool)
	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range sorted {
			if info.Started.Before(cutoff) {
				doomed[info.ID] = true
			}
		}
	}
	if keepLast > 0 && len(sorted) > keepLast {
		for _, info := range sorted[:len(sorted)-keepLast] {
			doomed[info.ID] = true
		}
	}

	var toDelete []store.RunInfo
	for _, info := range sorted {
		if doomed[info.ID] {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

// dirSize sums the sizes of regular files below path.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
