package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values mirror the project's hosted CI behavior where applicable so
// that local runs gate the same way automation does.
const (
	// DefaultStageTimeout bounds each stage command. Ten minutes covers the
	// slowest stage (the test matrix) on a cold cache; individual stages can
	// override this in relgate.yml.
	DefaultStageTimeout = 10 * time.Minute

	// DefaultMatrixConcurrency is the number of matrix variants run at once.
	// Variants are isolated, so the limit only protects local resources.
	DefaultMatrixConcurrency = 4

	// DefaultBranch is assumed when the current branch cannot be detected
	// and none is given. Integration testing is conditioned on branch, so
	// the default matters for local runs outside a repository.
	DefaultBranch = "main"

	// DefaultShell interprets stage commands. Commands in relgate.yml are
	// shell lines, matching how the hosted CI executes them.
	DefaultShell = "/bin/sh"

	// DefaultVersionFile is where the project declares its version. The
	// release gate cross-checks the tag against this file.
	DefaultVersionFile = "pyproject.toml"

	// AppName is the application name used for XDG directory paths.
	AppName = "relgate"

	// DefaultOutputTruncate is the maximum captured output stored per
	// command. Full output still streams to the log; storage keeps only the
	// tail, which is where failures explain themselves.
	DefaultOutputTruncate = 16 * 1024
)

// Config holds all runner options for relgate.
// This struct is populated from CLI flags and passed through the application
// via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., RunConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Branch is the branch being validated. Used for the integration-test
	// branch condition and for run supersession.
	Branch string

	// Commit is the commit identifier recorded with the run. Optional.
	Commit string

	// WorkDir is the working directory stage commands run in.
	// Empty means the current directory.
	WorkDir string

	// PipelineFilePath is the path to the relgate.yml pipeline file.
	// If empty, the tool searches the current directory and then the
	// user's home directory.
	PipelineFilePath string

	// Pipeline holds the parsed pipeline definition.
	// Populated by LoadPipelineFile before a run starts.
	Pipeline *File

	// StageTimeout bounds each stage command unless the stage overrides it.
	StageTimeout time.Duration

	// MatrixConcurrency is the number of matrix variants run concurrently.
	MatrixConcurrency int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory path for storing the SQLite history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether to persist runs and release decisions.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
func NewConfig() *Config {
	return &Config{
		Branch:            DefaultBranch,
		StageTimeout:      DefaultStageTimeout,
		MatrixConcurrency: DefaultMatrixConcurrency,
	}
}

// XDGDataDir returns the XDG data directory for relgate.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/relgate
// On macOS: ~/Library/Application Support/relgate
// On Windows: %LOCALAPPDATA%\relgate
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for relgate.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// The first error found is returned rather than collecting all errors,
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.Branch == "" {
		return ErrNoBranch
	}

	// StageTimeout must be positive; zero would cancel every command immediately
	if c.StageTimeout <= 0 {
		return ErrInvalidTimeout
	}

	// MatrixConcurrency must be positive; zero would mean no variants run
	if c.MatrixConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
