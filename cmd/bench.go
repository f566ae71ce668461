package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockmatch/internal/bench"
	"github.com/cwbudde/blockmatch/internal/disparity"
	"github.com/cwbudde/blockmatch/internal/store"
)

var (
	benchAlgorithms string
	benchWarmup     int
	benchIterations int
	benchProgress   int
	benchCooldown   time.Duration
	benchCSV        string
	dataDir         string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time strategies against each other",
	Long: `Runs each listed strategy on the same stereo pair: warm-up calls first,
then timed calls recording wall and process CPU time. Samples are stored
under --data-dir and exported as CSV with <alg>_cpu,<alg>_wall columns.`,
	RunE: runBench,
}

func init() {
	bindMatchFlags(benchCmd)
	f := benchCmd.Flags()
	f.StringVar(&benchAlgorithms, "algorithms", strings.Join(disparity.SupportedAlgorithms(), ","), "Comma-separated strategies to time")
	f.IntVar(&benchWarmup, "warmup", bench.DefaultWarmup, "Untimed calls before measuring")
	f.IntVar(&benchIterations, "iterations", bench.DefaultIterations, "Timed calls per strategy")
	f.IntVar(&benchProgress, "progress", bench.DefaultProgress, "Log progress every N calls (0 = off)")
	f.DurationVar(&benchCooldown, "cooldown", bench.DefaultCooldown, "Pause between strategies")
	f.StringVar(&benchCSV, "csv", "data.csv", "CSV output path (empty = skip)")
	f.StringVar(&dataDir, "data-dir", "./data", "Base directory for benchmark runs")
	rootCmd.AddCommand(benchCmd)
}

func splitAlgorithms(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func runBench(cmd *cobra.Command, args []string) error {
	names := splitAlgorithms(benchAlgorithms)
	if len(names) == 0 {
		return fmt.Errorf("no algorithms given")
	}

	params, err := matchParameters()
	if err != nil {
		return err
	}
	opts, err := strategyOptions()
	if err != nil {
		return err
	}

	runner, err := bench.NewRunner(bench.Config{
		Warmup:     benchWarmup,
		Iterations: benchIterations,
		Progress:   benchProgress,
		Cooldown:   benchCooldown,
	})
	if err != nil {
		return err
	}

	// Construct all strategies first so a bad name fails before any timing.
	strategies := make([]disparity.Strategy, 0, len(names))
	defer func() {
		for _, s := range strategies {
			s.Close()
		}
	}()
	for i, name := range names {
		s, err := disparity.New(name, params, opts...)
		if err != nil {
			return err
		}
		strategies = append(strategies, s)
		names[i] = s.Name()
	}

	left, right, err := loadPair()
	if err != nil {
		return err
	}

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	run := store.NewRun(names, params, left.Bounds().Dx(), left.Bounds().Dy(), benchWarmup, benchIterations, benchCooldown)
	if err := runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	samples, err := store.NewSampleWriter(runStore, run.ID)
	if err != nil {
		return err
	}

	slog.Info("Benchmark started", "run_id", run.ID, "algorithms", names,
		"warmup", benchWarmup, "iterations", benchIterations)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summaries, runErr := runner.Run(ctx, strategies, left, right, samples.Write)
	if err := samples.Close(); err != nil && runErr == nil {
		runErr = err
	}

	run.Summaries = summaries
	if runErr == nil {
		run.Finished = time.Now()
	}
	if err := runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("benchmark %s aborted: %w", run.ID, runErr)
	}

	if benchCSV != "" {
		if err := exportCSV(runStore, run, benchCSV); err != nil {
			return err
		}
		slog.Info("CSV written", "path", benchCSV)
	}

	printSummaries(run)
	return nil
}

func exportCSV(s *store.FSStore, run *store.Run, path string) error {
	samples, err := store.ReadSamples(s, run.ID)
	if err != nil {
		return fmt.Errorf("failed to read samples: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	if err := store.WriteCSV(f, run.Algorithms, samples); err != nil {
		f.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return f.Close()
}

func printSummaries(run *store.Run) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALGORITHM\tITERATIONS\tWALL MEAN (us)\tWALL STDDEV\tCPU MEAN (us)\tCPU STDDEV")
	fmt.Fprintln(w, "---------\t----------\t--------------\t-----------\t-------------\t----------")
	for _, s := range run.Summaries {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n",
			s.Algorithm, s.Iterations, s.MeanWall, s.StdDevWall, s.MeanCPU, s.StdDevCPU)
	}
	w.Flush()
	fmt.Printf("\nRun ID: %s\n", run.ID)
}
