// Package command executes stage and check scripts as shell subprocesses.
// It captures combined output with a size cap, applies per-command timeouts
// through context, and reports exit status in a form the pipeline can map
// onto stage conclusions.
package command
