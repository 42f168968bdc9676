package config

import (
	"fmt"
	"time"
)

// StageConfig holds the definition of a single pipeline stage as declared
// in the relgate.yml file.
type StageConfig struct {
	// Needs lists the stages this stage depends on. The stage is skipped
	// unless every listed stage concluded successfully.
	Needs []string `yaml:"needs,omitempty"`

	// Run is the shell command the stage executes. For matrix stages the
	// command runs once per variant with RELGATE_RUNTIME set. Mutually
	// exclusive with Checks.
	Run string `yaml:"run,omitempty"`

	// Checks are named sub-checks executed in order. Used by the
	// code-quality stage. A check with blocking set to false records its
	// failure without failing the stage.
	Checks []CheckConfig `yaml:"checks,omitempty"`

	// Matrix declares the runtime-version fan-out for the stage.
	Matrix MatrixConfig `yaml:"matrix,omitempty"`

	// Branches restricts the stage to the listed branches. Empty means
	// the stage runs on every branch.
	Branches []string `yaml:"branches,omitempty"`

	// Artifacts lists glob patterns of files the stage is expected to
	// produce. Matched files are recorded with content digests.
	Artifacts []string `yaml:"artifacts,omitempty"`

	// Timeout overrides the default stage timeout (Go duration syntax,
	// e.g. "5m" or "90s").
	Timeout string `yaml:"timeout,omitempty"`
}

// CheckConfig holds one sub-check definition within a check stage.
type CheckConfig struct {
	// Name identifies the check in reports (e.g. "lint", "security").
	Name string `yaml:"name"`

	// Run is the shell command the check executes.
	Run string `yaml:"run"`

	// Blocking controls whether a failure fails the stage.
	// Unset means blocking; security-style checks set this to false.
	Blocking *bool `yaml:"blocking,omitempty"`
}

// IsBlocking reports whether the check failure should fail its stage.
func (c CheckConfig) IsBlocking() bool {
	return c.Blocking == nil || *c.Blocking
}

// MatrixConfig declares the runtime fan-out of a matrix stage.
type MatrixConfig struct {
	// Runtime lists the runtime version strings to test against. Each
	// entry produces one isolated variant with RELGATE_RUNTIME set to it.
	Runtime []string `yaml:"runtime,omitempty"`
}

// ReleaseConfig holds release-gate settings from the pipeline file.
type ReleaseConfig struct {
	// VersionFile is the file holding the project's declared version.
	// The gate requires it to match the tag being released.
	// Defaults to DefaultVersionFile.
	VersionFile string `yaml:"versionFile,omitempty"`
}

// Defaults contains settings applied to all stages unless overridden.
type Defaults struct {
	// Shell is the shell used to interpret stage commands.
	Shell string `yaml:"shell,omitempty"`

	// Timeout is the default per-stage timeout (Go duration syntax).
	Timeout string `yaml:"timeout,omitempty"`
}

// File represents the structure of the relgate.yml pipeline file.
type File struct {
	// Project is the project name, used in report headers.
	Project string `yaml:"project,omitempty"`

	// Defaults contains settings applied to all stages.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Stages maps stage names to their definitions.
	Stages map[string]StageConfig `yaml:"stages"`

	// Release holds release-gate settings.
	Release ReleaseConfig `yaml:"release,omitempty"`
}

// Shell returns the configured shell, falling back to DefaultShell.
func (f *File) Shell() string {
	if f.Defaults.Shell != "" {
		return f.Defaults.Shell
	}
	return DefaultShell
}

// StageTimeout returns the effective timeout for the named stage:
// the stage override if set, then the file default, then fallback.
func (f *File) StageTimeout(name string, fallback time.Duration) (time.Duration, error) {
	if sc, ok := f.Stages[name]; ok && sc.Timeout != "" {
		return time.ParseDuration(sc.Timeout)
	}
	if f.Defaults.Timeout != "" {
		return time.ParseDuration(f.Defaults.Timeout)
	}
	return fallback, nil
}

// VersionFile returns the configured version file, falling back to
// DefaultVersionFile.
func (f *File) VersionFile() string {
	if f.Release.VersionFile != "" {
		return f.Release.VersionFile
	}
	return DefaultVersionFile
}

// Validate checks the pipeline file for structural problems: missing
// stages, dangling needs references, and stages with nothing to execute.
func (f *File) Validate() error {
	if len(f.Stages) == 0 {
		return ErrNoStages
	}

	for name, sc := range f.Stages {
		if sc.Run == "" && len(sc.Checks) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyStage, name)
		}
		if sc.Run != "" && len(sc.Checks) > 0 {
			return fmt.Errorf("stage %q declares both run and checks", name)
		}
		for _, need := range sc.Needs {
			if _, ok := f.Stages[need]; !ok {
				return fmt.Errorf("%w: %q needs %q", ErrUnknownNeed, name, need)
			}
		}
		for _, check := range sc.Checks {
			if check.Name == "" || check.Run == "" {
				return fmt.Errorf("stage %q has a check without name or run", name)
			}
		}
		if sc.Timeout != "" {
			if _, err := time.ParseDuration(sc.Timeout); err != nil {
				return fmt.Errorf("stage %q has an invalid timeout: %w", name, err)
			}
		}
	}

	if f.Defaults.Timeout != "" {
		if _, err := time.ParseDuration(f.Defaults.Timeout); err != nil {
			return fmt.Errorf("invalid default timeout: %w", err)
		}
	}

	return nil
}
