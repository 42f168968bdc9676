package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/webextract/relgate/internal/model"
)

// ErrNotAllowed is returned when a publish plan is requested for a
// rejected release decision.
var ErrNotAllowed = errors.New("release was not allowed")

// maxPreviousVersions bounds the version history carried in the plan.
const maxPreviousVersions = 10

// PlanFileName is the metadata document emitted for an allowed release.
const PlanFileName = "version.json"

// PublishPlan is the version metadata document written when the gate
// allows a release. Documentation tooling and the publish job consume it
// instead of re-deriving version facts.
type PublishPlan struct {
	// CurrentVersion is the version being released.
	CurrentVersion string `json:"current_version"`

	// GitTag is the tag form of the version (leading "v").
	GitTag string `json:"git_tag"`

	// Channel is "stable" or "prerelease".
	Channel model.Channel `json:"channel"`

	// IsRelease is true for this document; retained for consumers of the
	// original format, which also described non-release builds.
	IsRelease bool `json:"is_release"`

	// CommitSHA identifies the validated commit, when known.
	CommitSHA string `json:"commit_sha,omitempty"`

	// UpdatedAt is when the plan was produced.
	UpdatedAt time.Time `json:"updated_at"`

	// AllVersions lists this and up to nine previously released
	// versions, newest first.
	AllVersions []string `json:"all_versions"`
}

// NewPublishPlan builds the publish plan for an allowed decision.
// previous lists earlier released versions, newest first.
func NewPublishPlan(decision *model.ReleaseDecision, commit string, previous []string) (*PublishPlan, error) {
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, decision.Reason)
	}

	versions := append([]string{decision.Version.String()}, previous...)
	if len(versions) > maxPreviousVersions {
		versions = versions[:maxPreviousVersions]
	}

	return &PublishPlan{
		CurrentVersion: decision.Version.String(),
		GitTag:         decision.Version.Tag(),
		Channel:        decision.Channel,
		IsRelease:      true,
		CommitSHA:      commit,
		UpdatedAt:      time.Now(),
		AllVersions:    versions,
	}, nil
}

// Write serializes the plan as indented JSON into dir/version.json,
// creating the directory if needed, and returns the written path.
func (p *PublishPlan) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plan directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish plan: %w", err)
	}

	path := filepath.Join(dir, PlanFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write publish plan: %w", err)
	}

	return path, nil
}
