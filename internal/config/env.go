package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the prefix shared by every application environment variable.
const envPrefix = "webextract"

// Supported LLM provider names for WEBEXTRACT_LLM_PROVIDER.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// RedactedValue replaces secret values in displayed configuration.
const RedactedValue = "***REDACTED***"

// Env is the WEBEXTRACT_* environment surface consumed by the application
// under test. relgate resolves and validates it before a run, and injects it
// into the integration-test stage so the installed artifact is smoke-tested
// against the same configuration the application will actually see.
//
// Defaults match the application's own: a local Ollama instance with
// conservative request settings.
type Env struct {
	// LLMProvider selects the LLM backend: ollama, openai, or anthropic.
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"ollama" json:"WEBEXTRACT_LLM_PROVIDER"`

	// Model is the model name passed to the provider.
	Model string `envconfig:"MODEL" default:"llama3.2" json:"WEBEXTRACT_MODEL"`

	// APIKey authenticates against hosted providers. Required for openai
	// and anthropic; unused by ollama.
	APIKey string `envconfig:"API_KEY" json:"WEBEXTRACT_API_KEY"`

	// LLMBaseURL is the provider endpoint.
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:"http://localhost:11434" json:"WEBEXTRACT_LLM_BASE_URL"`

	// Temperature is the sampling temperature, clamped to [0, 1] by the
	// application and validated here.
	Temperature float64 `envconfig:"TEMPERATURE" default:"0.1" json:"WEBEXTRACT_TEMPERATURE"`

	// MaxTokens bounds the LLM response length.
	MaxTokens int `envconfig:"MAX_TOKENS" default:"4000" json:"WEBEXTRACT_MAX_TOKENS"`

	// LLMTimeout is the LLM request timeout in seconds.
	LLMTimeout int `envconfig:"LLM_TIMEOUT" default:"60" json:"WEBEXTRACT_LLM_TIMEOUT"`

	// RequestTimeout is the HTTP request timeout in seconds.
	RequestTimeout int `envconfig:"REQUEST_TIMEOUT" default:"30" json:"WEBEXTRACT_REQUEST_TIMEOUT"`

	// MaxContent is the maximum content length processed per document.
	MaxContent int `envconfig:"MAX_CONTENT" default:"10000" json:"WEBEXTRACT_MAX_CONTENT"`

	// RetryAttempts is the number of retries for failed requests.
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3" json:"WEBEXTRACT_RETRY_ATTEMPTS"`

	// RequestDelay is the politeness delay between requests in seconds.
	RequestDelay float64 `envconfig:"REQUEST_DELAY" default:"1.0" json:"WEBEXTRACT_REQUEST_DELAY"`
}

// LoadEnv resolves the WEBEXTRACT_* environment surface.
// An optional .env file in the working directory is loaded first (without
// overriding variables already set in the process environment), matching the
// application's local development convention. The result is validated.
func LoadEnv() (*Env, error) {
	// .env is optional; only a present-but-unreadable file is an error.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var e Env
	if err := envconfig.Process(envPrefix, &e); err != nil {
		return nil, fmt.Errorf("failed to resolve environment: %w", err)
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return &e, nil
}

// Validate checks the resolved environment for invalid values.
// Validation mirrors the application's own configuration rules so that the
// gate rejects configurations the application would reject at startup.
func (e *Env) Validate() error {
	switch e.LLMProvider {
	case ProviderOllama:
		// Local provider, no key needed
	case ProviderOpenAI, ProviderAnthropic:
		if e.APIKey == "" {
			return fmt.Errorf("%w (provider %q)", ErrMissingAPIKey, e.LLMProvider)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, e.LLMProvider)
	}

	if e.Temperature < 0.0 || e.Temperature > 1.0 {
		return fmt.Errorf("%w: %g", ErrInvalidTemperature, e.Temperature)
	}

	for name, v := range map[string]int{
		"WEBEXTRACT_MAX_TOKENS":      e.MaxTokens,
		"WEBEXTRACT_LLM_TIMEOUT":     e.LLMTimeout,
		"WEBEXTRACT_REQUEST_TIMEOUT": e.RequestTimeout,
		"WEBEXTRACT_MAX_CONTENT":     e.MaxContent,
		"WEBEXTRACT_RETRY_ATTEMPTS":  e.RetryAttempts,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidEnvValue, name)
		}
	}

	if e.RequestDelay < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeDelay, e.RequestDelay)
	}

	return nil
}

// Environ returns the resolved surface as KEY=value pairs suitable for
// injecting into a stage command environment. Keys are sorted for stable
// output.
func (e *Env) Environ() []string {
	pairs := map[string]string{
		"WEBEXTRACT_LLM_PROVIDER":    e.LLMProvider,
		"WEBEXTRACT_MODEL":           e.Model,
		"WEBEXTRACT_API_KEY":         e.APIKey,
		"WEBEXTRACT_LLM_BASE_URL":    e.LLMBaseURL,
		"WEBEXTRACT_TEMPERATURE":     fmt.Sprintf("%g", e.Temperature),
		"WEBEXTRACT_MAX_TOKENS":      fmt.Sprintf("%d", e.MaxTokens),
		"WEBEXTRACT_LLM_TIMEOUT":     fmt.Sprintf("%d", e.LLMTimeout),
		"WEBEXTRACT_REQUEST_TIMEOUT": fmt.Sprintf("%d", e.RequestTimeout),
		"WEBEXTRACT_MAX_CONTENT":     fmt.Sprintf("%d", e.MaxContent),
		"WEBEXTRACT_RETRY_ATTEMPTS":  fmt.Sprintf("%d", e.RetryAttempts),
		"WEBEXTRACT_REQUEST_DELAY":   fmt.Sprintf("%g", e.RequestDelay),
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	environ := make([]string, 0, len(keys))
	for _, k := range keys {
		environ = append(environ, k+"="+pairs[k])
	}
	return environ
}

// Redacted returns a copy of the environment with the API key masked,
// for display and logging.
func (e *Env) Redacted() Env {
	out := *e
	if out.APIKey != "" {
		out.APIKey = RedactedValue
	}
	return out
}
