package model

// Conclusion represents the final outcome of a pipeline run, stage, check,
// or matrix variant.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and aggregation. The String() method provides
// human-readable output, and ParseConclusion restores values read back from
// storage.
type Conclusion int

const (
	// ConclusionPending indicates the unit has not finished yet.
	// Persisted runs should never carry this value.
	ConclusionPending Conclusion = iota

	// ConclusionSuccess indicates the unit completed without failure.
	ConclusionSuccess

	// ConclusionFailure indicates the unit failed. For required stages this
	// fails the whole run and skips any dependent stages.
	ConclusionFailure

	// ConclusionSkipped indicates the unit did not execute: either a stage
	// it needs did not succeed, or its branch condition excluded it.
	// Skipped units never count against the aggregate.
	ConclusionSkipped

	// ConclusionCancelled indicates the unit was interrupted, either by
	// signal or because a newer run for the same branch superseded it.
	ConclusionCancelled

	// ConclusionNeutral indicates a non-blocking unit that failed.
	// The failure is recorded for reporting but does not affect the
	// aggregate result.
	ConclusionNeutral
)

// String returns a human-readable representation of the conclusion.
func (c Conclusion) String() string {
	switch c {
	case ConclusionPending:
		return "pending"
	case ConclusionSuccess:
		return "success"
	case ConclusionFailure:
		return "failure"
	case ConclusionSkipped:
		return "skipped"
	case ConclusionCancelled:
		return "cancelled"
	case ConclusionNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// ParseConclusion converts a stored string back into a Conclusion.
// Unknown strings map to ConclusionPending so that malformed rows are
// visibly incomplete rather than silently successful.
func ParseConclusion(s string) Conclusion {
	switch s {
	case "success":
		return ConclusionSuccess
	case "failure":
		return ConclusionFailure
	case "skipped":
		return ConclusionSkipped
	case "cancelled":
		return ConclusionCancelled
	case "neutral":
		return ConclusionNeutral
	default:
		return ConclusionPending
	}
}

// Passed reports whether the conclusion counts as passing for aggregation.
// Success passes outright; skipped and neutral units do not count against
// the aggregate, so they pass as well.
func (c Conclusion) Passed() bool {
	switch c {
	case ConclusionSuccess, ConclusionSkipped, ConclusionNeutral:
		return true
	default:
		return false
	}
}

// Terminal reports whether the conclusion is a final state.
func (c Conclusion) Terminal() bool {
	return c != ConclusionPending
}

// MarshalText implements encoding.TextMarshaler so conclusions serialize
// as their string form in JSON reports.
func (c Conclusion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Conclusion) UnmarshalText(text []byte) error {
	*c = ParseConclusion(string(text))
	return nil
}
