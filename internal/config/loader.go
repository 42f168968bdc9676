package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPipelineFile is the default pipeline file name.
const DefaultPipelineFile = "relgate.yml"

// ErrPipelineNotFound is returned when the pipeline file does not exist.
var ErrPipelineNotFound = errors.New("pipeline file not found")

// LoadPipelineFile loads a pipeline definition from a YAML file.
// If the file does not exist, it returns ErrPipelineNotFound.
// Callers should handle this error appropriately based on whether
// the pipeline file path was explicitly specified by the user.
func LoadPipelineFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided pipeline path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// FindPipelineFile searches for the pipeline file in the following order:
// 1. If pipelinePath is specified, use it directly
// 2. Look for relgate.yml in the current directory
// 3. Look for relgate.yml in the user's home directory
//
// Returns the path to the pipeline file if found, or empty string if not found.
func FindPipelineFile(pipelinePath string) string {
	// If explicit path is provided, use it
	if pipelinePath != "" {
		if _, err := os.Stat(pipelinePath); err == nil {
			return pipelinePath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdPipeline := filepath.Join(cwd, DefaultPipelineFile)
		if _, err := os.Stat(cwdPipeline); err == nil {
			return cwdPipeline
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homePipeline := filepath.Join(home, DefaultPipelineFile)
		if _, err := os.Stat(homePipeline); err == nil {
			return homePipeline
		}
	}

	return ""
}
