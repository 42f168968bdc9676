// Package main provides the entry point for the relgate CLI.
//
// Relgate runs a project's validation pipeline and gates releases on the
// result. It reproduces the hosted CI behavior locally: multi-stage
// validation with dependencies, a runtime test matrix, and a release
// decision procedure that refuses to publish on anything but a fully
// passing run.
//
// Usage:
//
//	relgate run
//	relgate release v1.2.3
//
// See --help for all available options.
package main

// main is the entry point for relgate.
func main() {
	Execute()
}
