package disparity

import (
	"fmt"
	"strings"
)

// Metric selects the block similarity measure.
type Metric int

const (
	// MetricSAD is the sum of absolute differences, the only supported metric.
	MetricSAD Metric = iota
)

func (m Metric) String() string {
	switch m {
	case MetricSAD:
		return "SUM_ABSOLUTE_DIFFERENCE"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric maps a metric name to a Metric. "SAD" and
// "SUM_ABSOLUTE_DIFFERENCE" are accepted in any case.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "SAD", "SUM_ABSOLUTE_DIFFERENCE":
		return MetricSAD, nil
	default:
		return 0, fmt.Errorf("%w: %q (valid options: SUM_ABSOLUTE_DIFFERENCE)", ErrUnsupportedMetric, name)
	}
}

// Default matching configuration.
const (
	DefaultBlockSize      = 7
	DefaultLeftScanSteps  = 50
	DefaultRightScanSteps = 50
)

// Parameters configures a disparity strategy.
//
// The path and algorithm fields are carried for the CLI and benchmark layers;
// the engine never reads them.
type Parameters struct {
	BlockSize      int    `json:"blockSize"`
	LeftScanSteps  int    `json:"leftScanSteps"`
	RightScanSteps int    `json:"rightScanSteps"`
	Metric         Metric `json:"metric"`

	LeftImagePath  string `json:"leftImagePath,omitempty"`
	RightImagePath string `json:"rightImagePath,omitempty"`
	OutputPath     string `json:"outputPath,omitempty"`
	Algorithm      string `json:"algorithm,omitempty"`
}

// DefaultParameters returns block size 7 with 50 scan steps each way.
func DefaultParameters() Parameters {
	return Parameters{
		BlockSize:      DefaultBlockSize,
		LeftScanSteps:  DefaultLeftScanSteps,
		RightScanSteps: DefaultRightScanSteps,
		Metric:         MetricSAD,
	}
}

// Validate checks the matching configuration. The returned error is a
// *ConfigError; use errors.Is against the sentinel errors to classify it.
func (p Parameters) Validate() error {
	if p.BlockSize < 0 {
		return &ConfigError{Field: "blockSize", Value: p.BlockSize, Reason: "less than zero", Err: ErrInvalidBlockSize}
	}
	if p.BlockSize%2 == 0 {
		return &ConfigError{Field: "blockSize", Value: p.BlockSize, Reason: "not odd", Err: ErrInvalidBlockSize}
	}
	if p.LeftScanSteps < 0 {
		return &ConfigError{Field: "leftScanSteps", Value: p.LeftScanSteps, Reason: "negative", Err: ErrInvalidScanSteps}
	}
	if p.RightScanSteps < 0 {
		return &ConfigError{Field: "rightScanSteps", Value: p.RightScanSteps, Reason: "negative", Err: ErrInvalidScanSteps}
	}
	if p.Metric != MetricSAD {
		return &ConfigError{Field: "metric", Value: int(p.Metric), Reason: "SAD is the only supported metric", Err: ErrUnsupportedMetric}
	}
	return nil
}

// HalfWidth returns k = (BlockSize-1)/2, the maximum template half extent.
func (p Parameters) HalfWidth() int {
	return (p.BlockSize - 1) / 2
}

// SearchWidth returns the scratch buffer length needed for one pixel.
func (p Parameters) SearchWidth() int {
	return p.LeftScanSteps + p.RightScanSteps + 1
}
