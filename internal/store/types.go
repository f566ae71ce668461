package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/blockmatch/internal/disparity"
)

// Run describes one benchmark session over one or more strategies.
type Run struct {
	ID         string               `json:"id"`
	Algorithms []string             `json:"algorithms"`
	Params     disparity.Parameters `json:"params"`

	// Image dimensions of the benchmarked pair.
	Width  int `json:"width"`
	Height int `json:"height"`

	Warmup     int           `json:"warmup"`
	Iterations int           `json:"iterations"`
	Cooldown   time.Duration `json:"cooldown"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`

	Summaries []Summary `json:"summaries,omitempty"`
}

// Summary holds timing statistics of one strategy, in microseconds.
type Summary struct {
	Algorithm  string  `json:"algorithm"`
	Iterations int     `json:"iterations"`
	MeanWall   float64 `json:"meanWallMicros"`
	StdDevWall float64 `json:"stdDevWallMicros"`
	MeanCPU    float64 `json:"meanCpuMicros"`
	StdDevCPU  float64 `json:"stdDevCpuMicros"`
}

// RunInfo is the listing view of a Run.
type RunInfo struct {
	ID         string        `json:"id"`
	Algorithms []string      `json:"algorithms"`
	Iterations int           `json:"iterations"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Complete   bool          `json:"complete"`
}

// NewRun returns a run with a fresh ID and the start time set to now.
func NewRun(algorithms []string, params disparity.Parameters, width, height, warmup, iterations int, cooldown time.Duration) *Run {
	return &Run{
		ID:         uuid.NewString(),
		Algorithms: append([]string(nil), algorithms...),
		Params:     params,
		Width:      width,
		Height:     height,
		Warmup:     warmup,
		Iterations: iterations,
		Cooldown:   cooldown,
		Started:    time.Now(),
	}
}

// ToInfo extracts listing metadata.
func (r *Run) ToInfo() RunInfo {
	info := RunInfo{
		ID:         r.ID,
		Algorithms: r.Algorithms,
		Iterations: r.Iterations,
		Started:    r.Started,
		Complete:   !r.Finished.IsZero(),
	}
	if info.Complete {
		info.Duration = r.Finished.Sub(r.Started)
	}
	return info
}

// Validate checks that the run is well-formed before it is persisted.
func (r *Run) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return &ValidationError{Field: "ID", Message: fmt.Sprintf("not a UUID: %v", err)}
	}
	if len(r.Algorithms) == 0 {
		return &ValidationError{Field: "Algorithms", Message: "at least one algorithm required"}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return &ValidationError{Field: "Width/Height", Message: fmt.Sprintf("invalid image size %dx%d", r.Width, r.Height)}
	}
	if r.Iterations <= 0 {
		return &ValidationError{Field: "Iterations", Message: "must be positive"}
	}
	if r.Warmup < 0 {
		return &ValidationError{Field: "Warmup", Message: "cannot be negative"}
	}
	if err := r.Params.Validate(); err != nil {
		return &ValidationError{Field: "Params", Message: err.Error()}
	}
	if r.Started.IsZero() {
		return &ValidationError{Field: "Started", Message: "not set"}
	}
	if !r.Finished.IsZero() && r.Finished.Before(r.Started) {
		return &ValidationError{Field: "Finished", Message: "before start"}
	}
	return nil
}

// ValidationError represents a run validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}
