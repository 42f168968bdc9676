package model

import (
	"time"
)

// Required stage names. The aggregate result of a run is decided by these
// three stages; every other unit is either conditional, non-blocking, or
// the summary itself.
const (
	// StageCodeQuality is the formatting/lint/type/security check stage.
	StageCodeQuality = "code-quality"
	// StageTest is the runtime-version matrix test stage.
	StageTest = "test"
	// StageBuild is the package artifact construction stage.
	StageBuild = "build"
	// StageIntegration installs and smoke-tests the built artifact.
	// It is conditional on branch; when selected it is required.
	StageIntegration = "integration-test"
	// StageSummary aggregates all prior stage conclusions. It always runs.
	StageSummary = "summary"
)

// RunReport is the main pipeline run result structure.
// It contains the conclusion of every stage executed (or skipped) during a
// single validation run of one branch/commit pair.
//
// Design decision: We use a single struct with ordered stage results rather
// than a map keyed by stage name. Order matters for reporting (stages are
// listed in dependency order), and the slice keeps serialization stable.
type RunReport struct {
	// ID is the database identifier, zero until the run is persisted.
	ID int64 `json:"id,omitempty"`

	// Branch is the branch this run validates.
	Branch string `json:"branch"`

	// Commit is the commit identifier the run was started for.
	// May be empty for local runs outside a repository.
	Commit string `json:"commit,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run completed, was cancelled, or failed.
	FinishedAt time.Time `json:"finished_at"`

	// Stages holds per-stage results in execution order.
	Stages []*StageResult `json:"stages"`

	// Conclusion is the aggregate run result computed by the summary stage.
	Conclusion Conclusion `json:"conclusion"`

	// Superseded is true if a newer run for the same branch cancelled this one.
	Superseded bool `json:"superseded,omitempty"`

	// PerformedStages lists the stages that actually executed.
	PerformedStages []string `json:"performed_stages,omitempty"`

	// Error contains any error that aborted the run.
	Error error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// StageResult holds the outcome of a single pipeline stage.
type StageResult struct {
	// Name is the stage name (e.g. "code-quality").
	Name string `json:"name"`

	// Required marks stages whose failure fails the whole run.
	Required bool `json:"required"`

	// Needs lists the stages this stage depends on.
	Needs []string `json:"needs,omitempty"`

	// Conclusion is the stage outcome.
	Conclusion Conclusion `json:"conclusion"`

	// Checks holds sub-check results for check-style stages.
	Checks []CheckResult `json:"checks,omitempty"`

	// Variants holds matrix variant results for matrix-style stages.
	Variants []VariantResult `json:"variants,omitempty"`

	// Artifacts lists artifact paths produced by the stage, with digests.
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// SkipReason explains why the stage was skipped, if it was.
	SkipReason string `json:"skip_reason,omitempty"`

	// Blocked marks a skip caused by an upstream failure or cancellation.
	// Blocked skips propagate to dependents; branch-conditional skips
	// leave this false and satisfy dependents.
	Blocked bool `json:"blocked,omitempty"`

	// StartedAt is when the stage began. Zero for skipped stages.
	StartedAt time.Time `json:"started_at,omitempty"`

	// Duration is how long the stage ran.
	Duration time.Duration `json:"duration,omitempty"`

	// Output is the captured combined output of the stage commands,
	// truncated for storage.
	Output string `json:"output,omitempty"`
}

// CheckResult holds the outcome of one sub-check within a check stage.
// Non-blocking checks record failures as ConclusionNeutral.
type CheckResult struct {
	// Name is the check name (e.g. "lint", "security").
	Name string `json:"name"`

	// Blocking is false for checks whose failure must not fail the stage.
	Blocking bool `json:"blocking"`

	// Conclusion is the check outcome.
	Conclusion Conclusion `json:"conclusion"`

	// Duration is how long the check ran.
	Duration time.Duration `json:"duration,omitempty"`

	// Output is the captured check output, truncated for storage.
	Output string `json:"output,omitempty"`
}

// VariantResult holds the outcome of one matrix variant.
type VariantResult struct {
	// Runtime is the runtime version string this variant ran against.
	Runtime string `json:"runtime"`

	// Conclusion is the variant outcome.
	Conclusion Conclusion `json:"conclusion"`

	// Duration is how long the variant ran.
	Duration time.Duration `json:"duration,omitempty"`

	// Output is the captured variant output, truncated for storage.
	Output string `json:"output,omitempty"`
}

// Artifact describes a file produced by the build stage.
type Artifact struct {
	// Path is the artifact path relative to the working directory.
	Path string `json:"path"`

	// Size is the artifact size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex-encoded content digest.
	SHA256 string `json:"sha256"`
}

// NewRunReport creates a new report for a run of the given branch and commit.
func NewRunReport(branch, commit string) *RunReport {
	return &RunReport{
		Branch:    branch,
		Commit:    commit,
		StartedAt: time.Now(),
		Stages:    make([]*StageResult, 0),
	}
}

// AddStage appends a stage result, keeping PerformedStages in sync for
// stages that actually executed.
func (r *RunReport) AddStage(result *StageResult) {
	r.Stages = append(r.Stages, result)
	if result.Conclusion != ConclusionSkipped {
		r.PerformedStages = append(r.PerformedStages, result.Name)
	}
}

// Stage returns the result for the named stage, or nil if absent.
func (r *RunReport) Stage(name string) *StageResult {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SetError records an error that aborted the run.
func (r *RunReport) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}

// Failed reports whether the aggregate conclusion is a failure or
// cancellation.
func (r *RunReport) Failed() bool {
	return r.Conclusion == ConclusionFailure || r.Conclusion == ConclusionCancelled
}
