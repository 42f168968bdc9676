package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/webextract/relgate/internal/config"
)

//go:embed templates/relgate.yml
var pipelineTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new relgate pipeline file",
		Long: `Init creates a new relgate.yml pipeline file in the current directory.

The generated file includes:
- The standard four-stage pipeline (code-quality, test, build, integration-test)
- A runtime test matrix example
- Commented documentation for every option

Examples:
  # Create relgate.yml in current directory
  relgate init

  # Create the pipeline file at a specific path
  relgate init -o ci/relgate.yml

  # Force overwrite existing file
  relgate init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultPipelineFile,
		"Output file path for the pipeline definition")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing pipeline file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("pipeline file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := pipelineTemplate.ReadFile("templates/relgate.yml")
	if err != nil {
		return fmt.Errorf("failed to read pipeline template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write pipeline file
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write pipeline file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to match your project:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Stage commands and checks")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Runtime versions in the test matrix")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Branches that require integration testing")

	return nil
}
