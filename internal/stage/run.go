package stage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/webextract/relgate/internal/command"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/model"
)

// CommandStage runs a single shell command as a pipeline stage.
// It covers plain stages and branch-conditional ones: when the
// configuration restricts the stage to certain branches, runs on other
// branches record a skip instead of executing. Extra environment entries
// (the application's WEBEXTRACT_* surface for the integration stage) are
// injected into the command.
type CommandStage struct {
	// name is the stage name.
	name string

	// cfg is the stage definition.
	cfg config.StageConfig

	// runner executes the stage command.
	runner *command.Runner

	// timeout bounds the stage.
	timeout time.Duration

	// extraEnv is injected into the command environment.
	extraEnv []string

	// logger for structured logging.
	logger *slog.Logger
}

// CommandStageOption configures a CommandStage.
type CommandStageOption func(*CommandStage)

// WithCommandEnv injects additional KEY=value pairs into the stage command.
func WithCommandEnv(env []string) CommandStageOption {
	return func(s *CommandStage) {
		s.extraEnv = append(s.extraEnv, env...)
	}
}

// NewCommandStage creates a command stage from its configuration.
func NewCommandStage(name string, cfg config.StageConfig, runner *command.Runner, timeout time.Duration, logger *slog.Logger, opts ...CommandStageOption) *CommandStage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CommandStage{
		name:    name,
		cfg:     cfg,
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the stage name.
func (s *CommandStage) Name() string { return s.name }

// Needs returns the stage dependencies.
func (s *CommandStage) Needs() []string { return s.cfg.Needs }

// Required reports that command stages gate the run when they execute.
// A branch-conditional stage that was skipped concludes skipped, which
// never counts against the run.
func (s *CommandStage) Required() bool { return true }

// Do executes the stage command, or records a skip when the current
// branch is not selected.
func (s *CommandStage) Do(ctx context.Context, report *model.RunReport) (*model.StageResult, error) {
	if len(s.cfg.Branches) > 0 && !slices.Contains(s.cfg.Branches, report.Branch) {
		s.logger.Info("stage not selected for branch",
			"stage", s.name,
			"branch", report.Branch,
		)
		return &model.StageResult{
			Name:       s.name,
			Needs:      s.cfg.Needs,
			Required:   true,
			Conclusion: model.ConclusionSkipped,
			SkipReason: fmt.Sprintf("branch %q not selected", report.Branch),
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := &model.StageResult{
		Name:      s.name,
		Needs:     s.cfg.Needs,
		Required:  true,
		StartedAt: time.Now(),
	}

	res, err := s.runner.Run(ctx, s.cfg.Run, s.extraEnv...)
	if err != nil {
		result.Conclusion = model.ConclusionFailure
		result.Duration = time.Since(result.StartedAt)
		return result, err
	}

	result.Duration = res.Duration
	result.Output = res.Output
	if res.Success() {
		result.Conclusion = model.ConclusionSuccess
	} else {
		result.Conclusion = model.ConclusionFailure
		if res.TimedOut {
			result.Output = res.Output + "\n[stage timed out]"
		}
	}

	return result, nil
}
