package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockmatch/internal/disparity"
	"github.com/cwbudde/blockmatch/internal/imageio"
)

var (
	outPath   string
	algorithm string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Compute a disparity map for a stereo pair",
	Long: `Loads a rectified stereo pair, computes the disparity of every pixel with
the selected strategy and writes the map normalized to 0..255 as an image.`,
	RunE: runGenerate,
}

func init() {
	bindMatchFlags(generateCmd)
	generateCmd.Flags().StringVar(&outPath, "out", "disparity.png", "Output image path (.png, .bmp, .tiff, .jpg)")
	generateCmd.Flags().StringVar(&algorithm, "algorithm", string(disparity.AlgorithmSequential),
		fmt.Sprintf("Strategy: %v", disparity.SupportedAlgorithms()))
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	params, err := matchParameters()
	if err != nil {
		return err
	}
	params.OutputPath = outPath
	params.Algorithm = algorithm

	opts, err := strategyOptions()
	if err != nil {
		return err
	}
	strategy, err := disparity.New(algorithm, params, opts...)
	if err != nil {
		return err
	}
	defer strategy.Close()

	left, right, err := loadPair()
	if err != nil {
		return err
	}

	slog.Info("Computing disparity",
		"algorithm", strategy.Name(),
		"block_size", params.BlockSize,
		"left_scan_steps", params.LeftScanSteps,
		"right_scan_steps", params.RightScanSteps,
		"metric", params.Metric.String(),
		"width", left.Bounds().Dx(),
		"height", left.Bounds().Dy())

	out := disparity.NewMapFor(left)
	start := time.Now()
	if err := strategy.ComputeDisparity(left, right, out); err != nil {
		return fmt.Errorf("failed to compute disparity: %w", err)
	}
	elapsed := time.Since(start)

	lo, hi, _ := out.MinMax()
	slog.Info("Disparity computed", "elapsed", elapsed, "min", lo, "max", hi)

	img, err := imageio.Visualize(out)
	if err != nil {
		return fmt.Errorf("failed to visualize disparity: %w", err)
	}
	if err := imageio.Save(outPath, img); err != nil {
		return err
	}

	slog.Info("Output written", "path", outPath)
	return nil
}
