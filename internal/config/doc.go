// Package config provides configuration structures and utilities for relgate.
// It defines the runner options, the relgate.yml pipeline file schema, and
// the WEBEXTRACT_* environment surface resolved for integration testing.
package config
