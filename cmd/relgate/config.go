package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webextract/relgate/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved provider configuration",
		Long: `Config resolves and validates the WEBEXTRACT_* environment surface.

The same resolution the integration-test stage uses is applied: process
environment first, then an optional .env file in the current directory,
then built-in defaults. Secret values are masked in the output.

Examples:
  # Show the resolved configuration
  relgate config

  # Output as JSON
  relgate config --json`,
		Args: cobra.NoArgs,
		RunE: runConfigCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output the resolved configuration in JSON format")

	return cmd
}

// runConfigCmd executes the config command.
func runConfigCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	redacted := env.Redacted()
	out := cmd.OutOrStdout()

	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(redacted)
	}

	for _, pair := range redacted.Environ() {
		fmt.Fprintln(out, pair)
	}
	return nil
}
