package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pmemkit/pmem"
)

var infoSize int64

func init() {
	cmd := newInfoCmd()
	cmd.Flags().Int64Var(&infoSize, "size", 4096, "Region size to map in bytes")
	rootCmd.AddCommand(cmd)
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Map a region and report its geometry",
		Long: `The info command maps a region over the given backing and reports its
size and block geometry, verifying the backing can actually be mapped.

Example:
  pmemctl info /dev/dax0.0
  pmemctl info ./region.bin --file --size 1048576`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

func runInfo(args []string) error {
	path := args[0]
	printVerbose("Mapping %d bytes of %s\n", infoSize, path)

	s := pmem.NewStore(device(path))
	defer s.Release()

	h, err := s.Open(infoSize)
	if err != nil {
		return fmt.Errorf("failed to map region: %w", err)
	}
	size, err := s.Size(h)
	if err != nil {
		return err
	}

	printInfo("Region:\n")
	printInfo("  Backing: %s\n", path)
	printInfo("  Size: %d bytes\n", size)
	printInfo("  Block size: %d bytes\n", pmem.MinBlockSize)
	printInfo("  Arch: %s (cache-line flush %s)\n", runtime.GOARCH, flushSupport())
	return nil
}

func flushSupport() string {
	if runtime.GOARCH == "amd64" {
		return "available"
	}
	return "unavailable, msync fallback"
}
