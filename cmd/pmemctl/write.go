package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pmemkit/pmem"
)

var (
	writeOffset int64
	writeHex    bool
)

func init() {
	cmd := newWriteCmd()
	cmd.Flags().Int64Var(&writeOffset, "offset", 0, "Byte offset to write at")
	cmd.Flags().BoolVar(&writeHex, "hex", false, "Interpret <data> as hex instead of a literal string")
	rootCmd.AddCommand(cmd)
}

func newWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <path> <data>",
		Short: "Durably write bytes at an offset",
		Long: `The write command maps a region and writes the given bytes at the
given offset. When the command exits successfully the bytes have been
flushed past the CPU caches and fenced; a write clamped at the end of the
region reports how many bytes landed.

Example:
  pmemctl write /dev/dax0.0 "hello" --offset 4096
  pmemctl write ./region.bin deadbeef --hex --file`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(args)
		},
	}
	return cmd
}

func runWrite(args []string) error {
	path := args[0]
	payload := []byte(args[1])
	if writeHex {
		decoded, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("failed to parse hex data: %w", err)
		}
		payload = decoded
	}

	s := pmem.NewStore(device(path))
	defer s.Release()

	h, err := s.Open(writeOffset + int64(len(payload)))
	if err != nil {
		return fmt.Errorf("failed to map region: %w", err)
	}
	if _, err := s.Seek(h, writeOffset); err != nil {
		return err
	}

	printVerbose("Writing %d bytes at offset %d of %s\n", len(payload), writeOffset, path)

	n, err := s.Write(h, payload)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	printInfo("Wrote %d of %d bytes durably at offset %d\n", n, len(payload), writeOffset)
	return nil
}
