package model

import "time"

// Trigger identifies how a release was initiated.
type Trigger int

const (
	// TriggerUnknown indicates an unrecognized trigger source.
	TriggerUnknown Trigger = iota
	// TriggerTag indicates a pushed tag matching "v*".
	TriggerTag
	// TriggerDispatch indicates a manual dispatch with an explicit version.
	TriggerDispatch
)

// String returns the string representation of the Trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerTag:
		return "tag"
	case TriggerDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Trigger) UnmarshalText(text []byte) error {
	switch string(text) {
	case "tag":
		*t = TriggerTag
	case "dispatch":
		*t = TriggerDispatch
	default:
		*t = TriggerUnknown
	}
	return nil
}

// ReleaseDecision records the outcome of one release-gate evaluation.
// A decision is made before anything is published: if Allowed is false the
// gate aborted and no publish plan was produced.
type ReleaseDecision struct {
	// ID is the database identifier, zero until persisted.
	ID int64 `json:"id,omitempty"`

	// Ref is the trigger input as supplied: the pushed tag for tag
	// triggers, or the version string given to a manual dispatch.
	Ref string `json:"ref"`

	// Trigger is how the release was initiated.
	Trigger Trigger `json:"trigger"`

	// Version is the parsed version. Zero when the ref failed validation,
	// in which case it is omitted from JSON output.
	Version Version `json:"version,omitzero"`

	// Channel is the release channel derived from the version suffix.
	Channel Channel `json:"channel"`

	// Allowed is true only if the version validated, the version file
	// matched, and the backing pipeline run passed.
	Allowed bool `json:"allowed"`

	// Reason explains a rejection. Empty for allowed releases.
	Reason string `json:"reason,omitempty"`

	// RunConclusion is the aggregate conclusion of the pipeline run that
	// backed this decision. Pending when the gate aborted before running.
	RunConclusion Conclusion `json:"run_conclusion"`

	// DecidedAt is when the gate evaluated.
	DecidedAt time.Time `json:"decided_at"`
}

// NewReleaseDecision creates a decision record for the given trigger input.
func NewReleaseDecision(ref string, trigger Trigger) *ReleaseDecision {
	return &ReleaseDecision{
		Ref:       ref,
		Trigger:   trigger,
		DecidedAt: time.Now(),
	}
}

// Reject marks the decision as rejected with the given reason.
func (d *ReleaseDecision) Reject(reason string) {
	d.Allowed = false
	d.Reason = reason
}
