package release

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webextract/relgate/internal/model"
)

// RunFunc executes the validation pipeline backing a release decision and
// returns its report. The gate never publishes on a run that did not pass.
type RunFunc func(ctx context.Context) (*model.RunReport, error)

// Gate evaluates whether a requested release may proceed.
//
// The decision procedure, in order:
//  1. Strip a single leading "v" from the trigger ref and validate the
//     remainder against the MAJOR.MINOR.PATCH[-suffix] contract. An
//     invalid version aborts before anything else happens.
//  2. Classify the release channel from the suffix.
//  3. Verify the version file declares the same version as the ref.
//  4. Run the validation pipeline; only a passing run allows the release.
type Gate struct {
	// versionFile is the path of the project's declared-version file.
	// Empty disables the consistency check.
	versionFile string

	// run executes the validation pipeline.
	run RunFunc

	// logger for structured logging.
	logger *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithVersionFile enables the declared-version consistency check against
// the given file.
func WithVersionFile(path string) GateOption {
	return func(g *Gate) {
		g.versionFile = path
	}
}

// WithGateLogger sets a custom logger for the gate.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a release gate backed by the given pipeline run.
func NewGate(run RunFunc, opts ...GateOption) *Gate {
	g := &Gate{run: run}

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}

	return g
}

// Decide evaluates the release request and returns the decision.
// Rejections (bad version, version-file mismatch, failed pipeline) are
// recorded in the decision with a nil error; a non-nil error means the
// gate could not evaluate at all.
func (g *Gate) Decide(ctx context.Context, ref string, trigger model.Trigger) (*model.ReleaseDecision, error) {
	decision := model.NewReleaseDecision(ref, trigger)

	version, err := model.ParseTag(ref)
	if err != nil {
		g.logger.Error("release ref rejected",
			"ref", ref,
			"trigger", trigger.String(),
			"error", err,
		)
		decision.Reject(fmt.Sprintf("invalid version %q: must match MAJOR.MINOR.PATCH with an optional alphanumeric suffix", ref))
		return decision, nil
	}
	decision.Version = version
	decision.Channel = version.Channel()

	g.logger.Info("release version accepted",
		"version", version.String(),
		"channel", decision.Channel.String(),
		"trigger", trigger.String(),
	)

	if g.versionFile != "" {
		declared, err := DeclaredVersion(g.versionFile)
		if err != nil {
			return decision, err
		}
		if !declared.Equals(version) {
			g.logger.Error("version file mismatch",
				"declared", declared.String(),
				"requested", version.String(),
				"file", g.versionFile,
			)
			decision.Reject(fmt.Sprintf("version file declares %s but the release requests %s", declared, version))
			return decision, nil
		}
	}

	report, err := g.run(ctx)
	if err != nil && report == nil {
		return decision, err
	}
	if report != nil {
		decision.RunConclusion = report.Conclusion
	}
	if err != nil || report.Failed() {
		decision.Reject(fmt.Sprintf("validation pipeline concluded %s", decision.RunConclusion))
		return decision, nil
	}

	decision.Allowed = true
	g.logger.Info("release allowed",
		"version", version.String(),
		"channel", decision.Channel.String(),
	)

	return decision, nil
}
