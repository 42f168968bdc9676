// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (tokens, API keys, secrets)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Extraction provider credentials (WEBEXTRACT_API_KEY and friends)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Session identifiers and authentication tokens
//
// Pipeline stages inherit the process environment, so the environment
// snapshots and command logs this tool produces can carry provider
// credentials. Even in verbose mode, sensitive values are masked to prevent
// accidental exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("stage environment prepared",
//	    "api_key", "sk-abc123",  // Will be sanitized to "***REDACTED***"
//	    "provider", "openai",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
