package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blockmatch/internal/gpu"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List OpenCL platforms and devices",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	platforms, err := gpu.EnumeratePlatforms()
	if errors.Is(err, gpu.ErrNotBuilt) {
		fmt.Println("OpenCL support not compiled in; rebuild with '-tags gpu'.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enumerate OpenCL platforms: %w", err)
	}
	if len(platforms) == 0 {
		fmt.Println("No OpenCL platforms found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tDEVICE\tTYPE\tCOMPUTE UNITS\tWORK GROUP\tMEMORY")
	fmt.Fprintln(w, "--------\t------\t----\t-------------\t----------\t------")
	for _, p := range platforms {
		if len(p.Devices) == 0 {
			fmt.Fprintf(w, "%s\t(none)\t\t\t\t\n", p.Name)
			continue
		}
		for _, d := range p.Devices {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				p.Name, d.Name, d.Type, d.MaxComputeUnits, d.MaxWorkGroupSize, formatBytes(int64(d.GlobalMemBytes)))
		}
	}
	return w.Flush()
}
