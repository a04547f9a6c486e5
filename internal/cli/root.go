// Package cli provides the tablematch command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// Exit codes.
const (
	ExitMatch    = 0
	ExitMismatch = 1
	ExitUsage    = 2
)

// ErrMismatch is returned by the compare command when the files differ or
// could not be compared.
var ErrMismatch = errors.New("files do not match")

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tablematch",
		Short: "Check whether two tables hold the same rows",
		Long: `tablematch compares two CSV, TSV or XLSX files as multisets of rows.

Row order, delimiter, cell padding, letter case and numeric formatting are
ignored. Duplicate rows must appear the same number of times in both files.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")

	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewVersionCommand(Version))
	return rootCmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitMatch
	case errors.Is(err, ErrMismatch):
		return ExitMismatch
	default:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tablematch %s\n", version)
		},
	}
}
