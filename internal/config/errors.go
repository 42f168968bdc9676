package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate(), File.Validate(), and
// Env.Validate() and provide specific information about what is wrong.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances at each validation site. This allows callers
// to use errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoBranch is returned when no branch is configured for a run.
	ErrNoBranch = errors.New("no branch specified: provide --branch or run inside a repository")

	// ErrInvalidTimeout is returned when the stage timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid stage timeout: must be positive")

	// ErrInvalidConcurrency is returned when the matrix concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid matrix concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoStages is returned when the pipeline file declares no stages.
	ErrNoStages = errors.New("pipeline file declares no stages")

	// ErrUnknownNeed is returned when a stage depends on a stage that is
	// not declared in the pipeline file.
	ErrUnknownNeed = errors.New("stage depends on an undeclared stage")

	// ErrEmptyStage is returned when a stage has neither a run command nor checks.
	ErrEmptyStage = errors.New("stage has no run command and no checks")

	// ErrInvalidProvider is returned when WEBEXTRACT_LLM_PROVIDER is not a
	// supported provider name.
	ErrInvalidProvider = errors.New("invalid LLM provider: must be ollama, openai, or anthropic")

	// ErrMissingAPIKey is returned when a hosted provider is configured
	// without WEBEXTRACT_API_KEY set.
	ErrMissingAPIKey = errors.New("missing API key: hosted providers require WEBEXTRACT_API_KEY")

	// ErrInvalidTemperature is returned when WEBEXTRACT_TEMPERATURE is
	// outside the [0, 1] range.
	ErrInvalidTemperature = errors.New("invalid temperature: must be between 0.0 and 1.0")

	// ErrInvalidEnvValue is returned when a WEBEXTRACT_* numeric setting is
	// zero or negative where a positive value is required.
	ErrInvalidEnvValue = errors.New("invalid environment value: must be positive")

	// ErrNegativeDelay is returned when WEBEXTRACT_REQUEST_DELAY is negative.
	ErrNegativeDelay = errors.New("invalid request delay: must be non-negative")
)
