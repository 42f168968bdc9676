package stage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/webextract/relgate/internal/command"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/model"
)

// CheckStage runs a sequence of named sub-checks and aggregates their
// conclusions. Blocking check failures fail the stage; non-blocking ones
// are recorded as neutral so they surface in reports without gating.
//
// Design decision: checks run sequentially, not concurrently. They are
// typically linters sharing the same working tree and tool caches, and
// their interleaved output would be useless for diagnosis.
type CheckStage struct {
	// name is the stage name.
	name string

	// needs lists stage dependencies.
	needs []string

	// checks are the sub-check definitions in execution order.
	checks []config.CheckConfig

	// runner executes check commands.
	runner *command.Runner

	// timeout bounds the whole stage.
	timeout time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// NewCheckStage creates a check stage from its configuration.
func NewCheckStage(name string, cfg config.StageConfig, runner *command.Runner, timeout time.Duration, logger *slog.Logger) *CheckStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckStage{
		name:    name,
		needs:   cfg.Needs,
		checks:  cfg.Checks,
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the stage name.
func (s *CheckStage) Name() string { return s.name }

// Needs returns the stage dependencies.
func (s *CheckStage) Needs() []string { return s.needs }

// Required reports that check stages gate the run.
func (s *CheckStage) Required() bool { return true }

// Do executes every sub-check in order. All checks run even when an
// earlier one fails, so a single run reports every problem at once.
func (s *CheckStage) Do(ctx context.Context, _ *model.RunReport) (*model.StageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := &model.StageResult{
		Name:      s.name,
		Needs:     s.needs,
		Required:  true,
		StartedAt: time.Now(),
		Checks:    make([]model.CheckResult, 0, len(s.checks)),
	}

	blockingFailure := false
	var output strings.Builder
	for _, check := range s.checks {
		s.logger.Info("running check",
			"stage", s.name,
			"check", check.Name,
			"blocking", check.IsBlocking(),
		)

		res, err := s.runner.Run(ctx, check.Run)
		if err != nil {
			result.Conclusion = model.ConclusionFailure
			result.Duration = time.Since(result.StartedAt)
			return result, err
		}

		cr := model.CheckResult{
			Name:     check.Name,
			Blocking: check.IsBlocking(),
			Duration: res.Duration,
			Output:   res.Output,
		}
		switch {
		case res.Success():
			cr.Conclusion = model.ConclusionSuccess
		case check.IsBlocking():
			cr.Conclusion = model.ConclusionFailure
			blockingFailure = true
		default:
			// Advisory checks report without gating.
			cr.Conclusion = model.ConclusionNeutral
			s.logger.Warn("non-blocking check failed",
				"stage", s.name,
				"check", check.Name,
				"exit_code", res.ExitCode,
			)
		}
		result.Checks = append(result.Checks, cr)

		if !res.Success() {
			output.WriteString(res.Output)
		}
	}

	result.Duration = time.Since(result.StartedAt)
	result.Output = output.String()
	if blockingFailure {
		result.Conclusion = model.ConclusionFailure
	} else {
		result.Conclusion = model.ConclusionSuccess
	}

	return result, nil
}
