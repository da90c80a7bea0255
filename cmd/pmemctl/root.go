package main

import (
	"fmt"
	"os"

	"github.com/joshuapare/pmemkit/pmem"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	useFile bool
)

var rootCmd = &cobra.Command{
	Use:   "pmemctl",
	Short: "Inspect and write directly-mapped persistent memory",
	Long: `pmemctl maps a persistent-memory (DAX) device or a file-backed region
into the process and performs raw, durable reads and writes against it at
caller-chosen offsets. No layout is imposed on the bytes.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().
		BoolVar(&useFile, "file", false, "Treat <path> as a regular file instead of a DAX device")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// device picks the backing for path based on the --file flag.
func device(path string) pmem.Device {
	if useFile {
		return pmem.FileDevice{Path: path}
	}
	return pmem.DAXDevice{Path: path}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}
