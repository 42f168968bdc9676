package model

import "time"

// RunSummary contains the aggregated view of a pipeline run for
// human-readable output and history listings.
//
// Design decision: We compute the summary from the RunReport rather than
// maintaining counters during execution. Aggregation happens in exactly one
// place (the summary stage), which keeps the gating policy auditable.
type RunSummary struct {
	// Branch is the branch the run validated.
	Branch string `json:"branch"`

	// Commit is the commit identifier, if known.
	Commit string `json:"commit,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total wall-clock run time.
	Duration time.Duration `json:"duration"`

	// Conclusion is the aggregate run result.
	Conclusion Conclusion `json:"conclusion"`

	// SuccessCount is the number of stages that succeeded.
	SuccessCount int `json:"success_count"`

	// FailureCount is the number of stages that failed.
	FailureCount int `json:"failure_count"`

	// SkippedCount is the number of stages that were skipped.
	SkippedCount int `json:"skipped_count"`

	// CancelledCount is the number of stages that were cancelled.
	CancelledCount int `json:"cancelled_count"`

	// NeutralChecks lists non-blocking checks that failed. These are
	// reported but never affect the Conclusion.
	NeutralChecks []string `json:"neutral_checks,omitempty"`

	// FailedStages lists required stages that failed, in execution order.
	FailedStages []string `json:"failed_stages,omitempty"`
}

// Summarize computes the aggregate conclusion and counts for a run.
//
// The gating policy: the run passes iff every required stage that was not
// skipped concluded successfully. Non-blocking (neutral) check failures and
// skipped conditional stages never count against the aggregate. Any
// cancelled stage marks the run cancelled rather than failed, because a
// superseded run carries no verdict about the code.
func Summarize(r *RunReport) *RunSummary {
	s := &RunSummary{
		Branch:    r.Branch,
		Commit:    r.Commit,
		StartedAt: r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		s.Duration = r.FinishedAt.Sub(r.StartedAt)
	}

	cancelled := false
	failed := false
	for _, stage := range r.Stages {
		if stage.Name == StageSummary {
			continue
		}

		switch stage.Conclusion {
		case ConclusionSuccess:
			s.SuccessCount++
		case ConclusionFailure:
			s.FailureCount++
			if stage.Required {
				failed = true
				s.FailedStages = append(s.FailedStages, stage.Name)
			}
		case ConclusionSkipped:
			s.SkippedCount++
		case ConclusionCancelled:
			s.CancelledCount++
			cancelled = true
		}

		for _, check := range stage.Checks {
			if check.Conclusion == ConclusionNeutral {
				s.NeutralChecks = append(s.NeutralChecks, check.Name)
			}
		}
	}

	switch {
	case cancelled:
		s.Conclusion = ConclusionCancelled
	case failed:
		s.Conclusion = ConclusionFailure
	default:
		s.Conclusion = ConclusionSuccess
	}

	return s
}
