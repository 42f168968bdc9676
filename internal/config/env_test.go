package config

import (
	"errors"
	"os"
	"strings"
	"testing"
)

// defaultEnv returns an Env populated with the documented defaults.
func defaultEnv() *Env {
	return &Env{
		LLMProvider:    ProviderOllama,
		Model:          "llama3.2",
		LLMBaseURL:     "http://localhost:11434",
		Temperature:    0.1,
		MaxTokens:      4000,
		LLMTimeout:     60,
		RequestTimeout: 30,
		MaxContent:     10000,
		RetryAttempts:  3,
		RequestDelay:   1.0,
	}
}

// unsetWebExtractEnv clears every application variable for the duration of
// the test. t.Setenv registers the restore; Unsetenv then removes the value.
func unsetWebExtractEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEBEXTRACT_LLM_PROVIDER", "WEBEXTRACT_MODEL", "WEBEXTRACT_API_KEY",
		"WEBEXTRACT_LLM_BASE_URL", "WEBEXTRACT_TEMPERATURE", "WEBEXTRACT_MAX_TOKENS",
		"WEBEXTRACT_LLM_TIMEOUT", "WEBEXTRACT_REQUEST_TIMEOUT", "WEBEXTRACT_MAX_CONTENT",
		"WEBEXTRACT_RETRY_ATTEMPTS", "WEBEXTRACT_REQUEST_DELAY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key) //nolint:errcheck // best effort
	}
}

// TestLoadEnvDefaults tests that defaults resolve when nothing is set.
// Not parallel: manipulates the process environment.
func TestLoadEnvDefaults(t *testing.T) {
	unsetWebExtractEnv(t)

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.LLMProvider != ProviderOllama {
		t.Errorf("got provider %q, expected %q", e.LLMProvider, ProviderOllama)
	}
	if e.Model != "llama3.2" {
		t.Errorf("got model %q, expected llama3.2", e.Model)
	}
	if e.MaxTokens != 4000 {
		t.Errorf("got max tokens %d, expected 4000", e.MaxTokens)
	}
}

// TestLoadEnvOverride tests that explicit variables override defaults.
// Not parallel: manipulates the process environment.
func TestLoadEnvOverride(t *testing.T) {
	unsetWebExtractEnv(t)
	t.Setenv("WEBEXTRACT_LLM_PROVIDER", "anthropic")
	t.Setenv("WEBEXTRACT_API_KEY", "sk-ant-test")
	t.Setenv("WEBEXTRACT_MODEL", "claude-3-5-sonnet-20241022")
	t.Setenv("WEBEXTRACT_TEMPERATURE", "0.5")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.LLMProvider != ProviderAnthropic {
		t.Errorf("got provider %q, expected anthropic", e.LLMProvider)
	}
	if e.Temperature != 0.5 {
		t.Errorf("got temperature %g, expected 0.5", e.Temperature)
	}
}

// TestEnvValidate tests rejection of invalid configurations.
func TestEnvValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(*Env)
		expected error
	}{
		{
			name:     "unknown provider",
			mutate:   func(e *Env) { e.LLMProvider = "bedrock" },
			expected: ErrInvalidProvider,
		},
		{
			name:     "openai without key",
			mutate:   func(e *Env) { e.LLMProvider = ProviderOpenAI },
			expected: ErrMissingAPIKey,
		},
		{
			name:     "anthropic without key",
			mutate:   func(e *Env) { e.LLMProvider = ProviderAnthropic },
			expected: ErrMissingAPIKey,
		},
		{
			name:     "temperature above range",
			mutate:   func(e *Env) { e.Temperature = 1.5 },
			expected: ErrInvalidTemperature,
		},
		{
			name:     "temperature below range",
			mutate:   func(e *Env) { e.Temperature = -0.1 },
			expected: ErrInvalidTemperature,
		},
		{
			name:     "zero max tokens",
			mutate:   func(e *Env) { e.MaxTokens = 0 },
			expected: ErrInvalidEnvValue,
		},
		{
			name:     "negative retry attempts",
			mutate:   func(e *Env) { e.RetryAttempts = -1 },
			expected: ErrInvalidEnvValue,
		},
		{
			name:     "negative delay",
			mutate:   func(e *Env) { e.RequestDelay = -0.5 },
			expected: ErrNegativeDelay,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := defaultEnv()
			tc.mutate(e)
			if err := e.Validate(); !errors.Is(err, tc.expected) {
				t.Errorf("got %v, expected %v", err, tc.expected)
			}
		})
	}

	t.Run("ollama without key is valid", func(t *testing.T) {
		t.Parallel()
		if err := defaultEnv().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("hosted provider with key is valid", func(t *testing.T) {
		t.Parallel()
		e := defaultEnv()
		e.LLMProvider = ProviderOpenAI
		e.APIKey = "sk-test"
		if err := e.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// TestEnvEnviron tests KEY=value rendering for stage injection.
func TestEnvEnviron(t *testing.T) {
	t.Parallel()

	e := defaultEnv()
	e.APIKey = "secret"
	environ := e.Environ()

	if len(environ) != 11 {
		t.Fatalf("got %d entries, expected 11", len(environ))
	}

	// Sorted output is part of the contract
	for i := 1; i < len(environ); i++ {
		if environ[i-1] >= environ[i] {
			t.Errorf("environ not sorted: %q before %q", environ[i-1], environ[i])
		}
	}

	found := false
	for _, kv := range environ {
		if kv == "WEBEXTRACT_LLM_PROVIDER=ollama" {
			found = true
		}
		if !strings.HasPrefix(kv, "WEBEXTRACT_") {
			t.Errorf("unexpected key in %q", kv)
		}
	}
	if !found {
		t.Error("expected WEBEXTRACT_LLM_PROVIDER=ollama in environ")
	}
}

// TestEnvRedacted tests that the API key is masked for display.
func TestEnvRedacted(t *testing.T) {
	t.Parallel()

	e := defaultEnv()
	e.APIKey = "sk-very-secret"

	r := e.Redacted()
	if r.APIKey != RedactedValue {
		t.Errorf("got %q, expected %q", r.APIKey, RedactedValue)
	}
	if e.APIKey != "sk-very-secret" {
		t.Error("Redacted must not mutate the original")
	}

	empty := defaultEnv()
	if r := empty.Redacted(); r.APIKey != "" {
		t.Errorf("empty key should stay empty, got %q", r.APIKey)
	}
}
