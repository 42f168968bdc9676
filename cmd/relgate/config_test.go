package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/webextract/relgate/internal/config"
)

// clearWebExtractEnv unsets every WEBEXTRACT_* variable so tests see only
// what they set themselves. t.Setenv registers restoration on cleanup.
func clearWebExtractEnv(t *testing.T) {
	t.Helper()

	for _, pair := range os.Environ() {
		key, _, _ := strings.Cut(pair, "=")
		if strings.HasPrefix(key, "WEBEXTRACT_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

// executeConfig runs the config command and captures its output.
func executeConfig(t *testing.T, extra ...string) (string, error) {
	t.Helper()

	args := []string{"config"}
	args = append(args, extra...)

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// Provider resolution reads the process environment, so these tests mutate
// it via t.Setenv and must not run in parallel.
func TestConfigCommand(t *testing.T) {
	t.Run("masks the API key", func(t *testing.T) {
		clearWebExtractEnv(t)
		t.Setenv("WEBEXTRACT_LLM_PROVIDER", "openai")
		t.Setenv("WEBEXTRACT_API_KEY", "sk-supersecret")

		output, err := executeConfig(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(output, "sk-supersecret") {
			t.Errorf("expected API key to be masked, got:\n%s", output)
		}
		if !strings.Contains(output, config.RedactedValue) {
			t.Errorf("expected %q in output:\n%s", config.RedactedValue, output)
		}
		if !strings.Contains(output, "WEBEXTRACT_LLM_PROVIDER=openai") {
			t.Errorf("expected provider in output:\n%s", output)
		}
	})

	t.Run("shows defaults", func(t *testing.T) {
		clearWebExtractEnv(t)
		t.Setenv("WEBEXTRACT_LLM_PROVIDER", "ollama")

		output, err := executeConfig(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, want := range []string{
			"WEBEXTRACT_MODEL=llama3.2",
			"WEBEXTRACT_LLM_BASE_URL=http://localhost:11434",
			"WEBEXTRACT_MAX_TOKENS=4000",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output:\n%s", want, output)
			}
		}
	})

	t.Run("reports invalid configuration", func(t *testing.T) {
		clearWebExtractEnv(t)
		t.Setenv("WEBEXTRACT_LLM_PROVIDER", "openai")
		t.Setenv("WEBEXTRACT_API_KEY", "")

		if _, err := executeConfig(t); err == nil {
			t.Fatal("expected error for hosted provider without API key")
		}
	})

	t.Run("json output masks the API key", func(t *testing.T) {
		clearWebExtractEnv(t)
		t.Setenv("WEBEXTRACT_LLM_PROVIDER", "anthropic")
		t.Setenv("WEBEXTRACT_API_KEY", "sk-ant-secret")

		output, err := executeConfig(t, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(output, "sk-ant-secret") {
			t.Errorf("expected API key to be masked, got:\n%s", output)
		}
		if !strings.Contains(output, config.RedactedValue) {
			t.Errorf("expected %q in JSON output:\n%s", config.RedactedValue, output)
		}
		// JSON keys use the same variable names as the text output.
		for _, want := range []string{
			`"WEBEXTRACT_LLM_PROVIDER": "anthropic"`,
			`"WEBEXTRACT_API_KEY"`,
			`"WEBEXTRACT_MAX_TOKENS": 4000`,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in JSON output:\n%s", want, output)
			}
		}
	})
}
