package main

import (
	"fmt"
	"image"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockmatch/internal/disparity"
	"github.com/cwbudde/blockmatch/internal/imageio"
)

// Flags shared by every command that runs the matcher.
var (
	leftPath    string
	rightPath   string
	blockSize   int
	leftSteps   int
	rightSteps  int
	metricName  string
	workers     int
	laneWidth   int
	deviceName  string
	inputScale  float64
	hostWorkers int
)

func bindMatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&leftPath, "left", "", "Left image path (required)")
	f.StringVar(&rightPath, "right", "", "Right image path (required)")
	f.IntVar(&blockSize, "block-size", disparity.DefaultBlockSize, "Odd template size in pixels")
	f.IntVar(&leftSteps, "left-steps", disparity.DefaultLeftScanSteps, "Search steps to the left")
	f.IntVar(&rightSteps, "right-steps", disparity.DefaultRightScanSteps, "Search steps to the right")
	f.StringVar(&metricName, "metric", "SUM_ABSOLUTE_DIFFERENCE", "Matching metric")
	f.IntVar(&workers, "workers", 0, "Worker pool size for threaded strategies (0 = GOMAXPROCS)")
	f.IntVar(&laneWidth, "lanes", 0, "Byte lane width for vectorized strategies (0 = detect)")
	f.StringVar(&deviceName, "device", "opencl", "Offload device: opencl or host")
	f.IntVar(&hostWorkers, "host-workers", 0, "Worker count of the host offload device (0 = GOMAXPROCS)")
	f.Float64Var(&inputScale, "scale", 1, "Resize both inputs by this factor before matching")

	cmd.MarkFlagRequired("left")
	cmd.MarkFlagRequired("right")
}

func matchParameters() (disparity.Parameters, error) {
	metric, err := disparity.ParseMetric(metricName)
	if err != nil {
		return disparity.Parameters{}, err
	}
	return disparity.Parameters{
		BlockSize:      blockSize,
		LeftScanSteps:  leftSteps,
		RightScanSteps: rightSteps,
		Metric:         metric,
		LeftImagePath:  leftPath,
		RightImagePath: rightPath,
	}, nil
}

func strategyOptions() ([]disparity.Option, error) {
	opts := []disparity.Option{
		disparity.WithWorkers(workers),
		disparity.WithLaneWidth(laneWidth),
	}
	switch strings.ToLower(deviceName) {
	case "opencl":
		opts = append(opts, disparity.WithDevice(disparity.OpenCLDevice))
	case "host":
		opts = append(opts, disparity.WithDevice(disparity.HostDeviceOpener(hostWorkers)))
	default:
		return nil, fmt.Errorf("unknown device %q (valid options: opencl, host)", deviceName)
	}
	return opts, nil
}

// loadPair reads both inputs and checks that they can be matched.
func loadPair() (*image.Gray, *image.Gray, error) {
	opts := imageio.LoadOptions{Scale: inputScale}
	left, err := imageio.LoadGray(leftPath, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("left image: %w", err)
	}
	right, err := imageio.LoadGray(rightPath, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("right image: %w", err)
	}

	lb, rb := left.Bounds(), right.Bounds()
	if lb.Size() != rb.Size() {
		return nil, nil, fmt.Errorf("%w: left image (%dx%d), right image (%dx%d)",
			disparity.ErrImageSizeMismatch, lb.Dy(), lb.Dx(), rb.Dy(), rb.Dx())
	}
	return left, right, nil
}
