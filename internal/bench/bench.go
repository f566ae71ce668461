// Package bench times repeated disparity computations.
package bench

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/blockmatch/internal/disparity"
	"github.com/cwbudde/blockmatch/internal/store"
)

// Defaults follow the long-standing speed test configuration.
const (
	DefaultWarmup     = 50
	DefaultIterations = 1000
	DefaultProgress   = 20
	DefaultCooldown   = 10 * time.Second
)

// Config controls a benchmark session.
type Config struct {
	Warmup     int
	Iterations int
	// Progress logs every Progress iterations; zero disables it.
	Progress int
	// Cooldown pauses between algorithms so thermal state settles.
	Cooldown time.Duration
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		Warmup:     DefaultWarmup,
		Iterations: DefaultIterations,
		Progress:   DefaultProgress,
		Cooldown:   DefaultCooldown,
	}
}

// Validate rejects configurations that cannot produce a measurement.
func (c Config) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup cannot be negative, got %d", c.Warmup)
	}
	if c.Progress < 0 || c.Cooldown < 0 {
		return errors.New("progress and cooldown cannot be negative")
	}
	return nil
}

// Sink receives every measured sample as it is produced.
type Sink func(store.Sample) error

// Runner executes benchmark sessions.
type Runner struct {
	cfg Config

	// Clocks are replaceable for tests.
	wall  func() time.Time
	cpu   func() time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner returns a runner for cfg.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:   cfg,
		wall:  time.Now,
		cpu:   processCPUTime,
		sleep: sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run benchmarks each strategy in order on the same image pair and returns
// one summary per strategy. The context is checked between calls; a single
// ComputeDisparity always runs to completion.
func (r *Runner) Run(ctx context.Context, strategies []disparity.Strategy, left, right *image.Gray, sink Sink) ([]store.Summary, error) {
	out := disparity.NewMapFor(left)
	summaries := make([]store.Summary, 0, len(strategies))

	for i, s := range strategies {
		if i > 0 && r.cfg.Cooldown > 0 {
			slog.Info("Cooling down", "duration", r.cfg.Cooldown)
			if err := r.sleep(ctx, r.cfg.Cooldown); err != nil {
				return summaries, err
			}
		}

		summary, err := r.runOne(ctx, s, left, right, out, sink)
		if err != nil {
			return summaries, fmt.Errorf("%s: %w", s.Name(), err)
		}
		summaries = append(summaries, summary)

		slog.Info("Algorithm finished",
			"algorithm", summary.Algorithm,
			"mean_wall_us", summary.MeanWall,
			"stddev_wall_us", summary.StdDevWall,
			"mean_cpu_us", summary.MeanCPU,
			"stddev_cpu_us", summary.StdDevCPU)
	}
	return summaries, nil
}

func (r *Runner) runOne(ctx context.Context, s disparity.Strategy, left, right *image.Gray, out *disparity.Map, sink Sink) (store.Summary, error) {
	name := s.Name()
	slog.Info("Warming up", "algorithm", name, "iterations", r.cfg.Warmup)
	for i := 0; i < r.cfg.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return store.Summary{}, err
		}
		if err := s.ComputeDisparity(left, right, out); err != nil {
			return store.Summary{}, err
		}
	}

	wall := make([]float64, 0, r.cfg.Iterations)
	cpu := make([]float64, 0, r.cfg.Iterations)
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return store.Summary{}, err
		}

		startWall, startCPU := r.wall(), r.cpu()
		if err := s.ComputeDisparity(left, right, out); err != nil {
			return store.Summary{}, err
		}
		sample := store.Sample{
			Algorithm:  name,
			Iteration:  i,
			WallMicros: r.wall().Sub(startWall).Microseconds(),
			CPUMicros:  (r.cpu() - startCPU).Microseconds(),
		}
		wall = append(wall, float64(sample.WallMicros))
		cpu = append(cpu, float64(sample.CPUMicros))

		if sink != nil {
			if err := sink(sample); err != nil {
				return store.Summary{}, err
			}
		}
		if r.cfg.Progress > 0 && (i+1)%r.cfg.Progress == 0 {
			slog.Info("Progress", "algorithm", name, "done", i+1, "total", r.cfg.Iterations)
		}
	}

	summary := store.Summary{Algorithm: name, Iterations: len(wall)}
	summary.MeanWall, summary.StdDevWall = MeanStdDev(wall)
	summary.MeanCPU, summary.StdDevCPU = MeanStdDev(cpu)
	return summary, nil
}

// MeanStdDev returns the mean and sample standard deviation of xs.
// The deviation of fewer than two values is zero.
func MeanStdDev(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
