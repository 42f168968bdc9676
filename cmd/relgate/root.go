// Package main provides the entry point for the relgate CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for relgate.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relgate",
		Short: "Release gate and validation pipeline runner",
		Long: `Relgate runs a project's validation pipeline and gates releases on the result.

The pipeline is declared in a relgate.yml file: stages with dependencies,
blocking and advisory checks, a runtime test matrix, and branch-conditional
integration testing. The release command validates a version against the
MAJOR.MINOR.PATCH contract, cross-checks the project's declared version,
and allows publication only when the backing pipeline run passes.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewReleaseCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
