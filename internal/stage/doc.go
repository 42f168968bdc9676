// Package stage provides the command-backed pipeline stage implementations:
// the check stage with blocking and non-blocking sub-checks, the runtime
// matrix stage, the artifact-producing build stage, branch-conditional
// command stages, and the always-run summary stage. FromFile assembles a
// pipeline runner from a parsed relgate.yml definition.
package stage
