// Package release implements the release gate: it validates the version a
// tag or manual dispatch asks to publish, classifies its channel, checks
// the project's declared version for consistency, runs the validation
// pipeline, and either rejects the release or emits a version.json publish
// plan.
package release
