// Package cli provides the command-line interface for XAdES signature
// verification.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// ErrInvalidSignatures is returned by the verify command when at least one
// signature failed. The report has already been written.
var ErrInvalidSignatures = errors.New("one or more signatures are invalid")

// NewRootCommand creates the goxades command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "goxades",
		Short:         "XAdES signature verification tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVerifyCommand(), newVersionCommand())
	return cmd
}

// Execute runs the CLI with the given arguments and returns the process exit
// code.
func Execute(args []string, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, ErrInvalidSignatures) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// Main is the entry point used by cmd/goxades.
func Main() {
	os.Exit(Execute(os.Args[1:], os.Stderr))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "goxades version %s\n", Version)
			fmt.Fprintf(out, "Build time: %s\n", BuildTime)
		},
	}
}
