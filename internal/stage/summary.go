package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/webextract/relgate/internal/model"
)

// SummaryStage aggregates the conclusions of every prior stage into the
// run verdict. It always runs, even when earlier stages failed or the run
// was cancelled, so every run record ends with an explicit verdict.
//
// Design decision: the summary's own conclusion mirrors the aggregate.
// A green summary therefore means a green run; tooling that only looks at
// the last stage still gets the correct answer.
type SummaryStage struct {
	// needs lists the stages the summary waits for.
	needs []string

	// logger for structured logging.
	logger *slog.Logger
}

// NewSummaryStage creates the summary stage. The needs list only orders
// the summary after the rest of the graph; failed dependencies never skip
// it.
func NewSummaryStage(needs []string, logger *slog.Logger) *SummaryStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryStage{
		needs:  needs,
		logger: logger,
	}
}

// Name returns the stage name.
func (s *SummaryStage) Name() string { return model.StageSummary }

// Needs returns the stages the summary is ordered after.
func (s *SummaryStage) Needs() []string { return s.needs }

// Required reports false: the summary reports the verdict, it is not
// part of it.
func (s *SummaryStage) Required() bool { return false }

// AlwaysRun marks the summary as unconditional.
func (s *SummaryStage) AlwaysRun() bool { return true }

// Do computes the aggregate conclusion from every recorded stage.
func (s *SummaryStage) Do(_ context.Context, report *model.RunReport) (*model.StageResult, error) {
	started := time.Now()
	summary := model.Summarize(report)

	var out strings.Builder
	for _, st := range report.Stages {
		line := fmt.Sprintf("%s: %s", st.Name, st.Conclusion)
		if st.SkipReason != "" {
			line += " (" + st.SkipReason + ")"
		}
		out.WriteString(line + "\n")
	}
	fmt.Fprintf(&out, "result: %s", summary.Conclusion)
	if len(summary.NeutralChecks) > 0 {
		fmt.Fprintf(&out, " (advisory failures: %s)", strings.Join(summary.NeutralChecks, ", "))
	}

	s.logger.Info("run summary",
		"branch", report.Branch,
		"conclusion", summary.Conclusion.String(),
		"failed_stages", summary.FailedStages,
	)

	return &model.StageResult{
		Name:       model.StageSummary,
		Needs:      s.needs,
		Conclusion: summary.Conclusion,
		StartedAt:  started,
		Duration:   time.Since(started),
		Output:     out.String(),
	}, nil
}
