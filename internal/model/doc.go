// Package model defines the core data structures used throughout relgate.
//
// This package contains the following main types:
//   - Version: A validated release version with channel classification
//   - RunReport: The main pipeline run result structure
//   - RunSummary: The aggregated, human-readable view of a run
//   - ReleaseDecision: The outcome of one release-gate evaluation
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (pipeline, release, database, report) need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
