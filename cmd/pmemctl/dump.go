package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pmemkit/pmem"
)

var (
	dumpOffset int64
	dumpLength int64
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().Int64Var(&dumpOffset, "offset", 0, "Byte offset to start reading at")
	cmd.Flags().Int64Var(&dumpLength, "length", 256, "Number of bytes to dump")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <path>",
		Short: "Hex-dump a byte range of a mapped region",
		Long: `The dump command maps a region and hex-dumps bytes from the given
offset. The read is clamped at the end of the region.

Example:
  pmemctl dump /dev/dax0.0 --offset 4096 --length 64
  pmemctl dump ./region.bin --file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

func runDump(args []string) error {
	path := args[0]
	if dumpLength < 0 {
		return fmt.Errorf("negative length %d", dumpLength)
	}

	s := pmem.NewStore(device(path))
	defer s.Release()

	h, err := s.Open(dumpOffset + dumpLength)
	if err != nil {
		return fmt.Errorf("failed to map region: %w", err)
	}
	if _, err := s.Seek(h, dumpOffset); err != nil {
		return err
	}

	printVerbose("Dumping %d bytes at offset %d of %s\n", dumpLength, dumpOffset, path)

	buf := make([]byte, dumpLength)
	n, err := s.Read(h, buf)
	if err != nil {
		return err
	}
	dumper := hex.Dumper(os.Stdout)
	defer dumper.Close()
	if _, err := dumper.Write(buf[:n]); err != nil {
		return err
	}
	return nil
}
