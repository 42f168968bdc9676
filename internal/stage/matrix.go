package stage

import (
	"context"
	"log/slog"
	"time"

	"github.com/webextract/relgate/internal/command"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/model"
	"github.com/webextract/relgate/internal/pipeline"
)

// MatrixStage runs the same command once per runtime variant, concurrently
// up to the configured limit. Each variant receives RELGATE_RUNTIME so the
// command can select its interpreter version; variants share no mutable
// state. Any failed variant fails the stage.
type MatrixStage struct {
	// name is the stage name.
	name string

	// cfg is the stage definition.
	cfg config.StageConfig

	// runner executes variant commands.
	runner *command.Runner

	// executor fans variants out with bounded concurrency.
	executor *pipeline.MatrixExecutor

	// timeout bounds the whole matrix, not individual variants.
	timeout time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// NewMatrixStage creates a matrix stage from its configuration.
func NewMatrixStage(name string, cfg config.StageConfig, runner *command.Runner, timeout time.Duration, concurrency int, logger *slog.Logger) *MatrixStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatrixStage{
		name:   name,
		cfg:    cfg,
		runner: runner,
		executor: pipeline.NewMatrixExecutor(
			pipeline.WithMatrixConcurrency(concurrency),
			pipeline.WithMatrixLogger(logger),
		),
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the stage name.
func (s *MatrixStage) Name() string { return s.name }

// Needs returns the stage dependencies.
func (s *MatrixStage) Needs() []string { return s.cfg.Needs }

// Required reports that matrix stages gate the run.
func (s *MatrixStage) Required() bool { return true }

// Do executes the command across all runtime variants.
func (s *MatrixStage) Do(ctx context.Context, _ *model.RunReport) (*model.StageResult, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := &model.StageResult{
		Name:      s.name,
		Needs:     s.cfg.Needs,
		Required:  true,
		StartedAt: time.Now(),
	}

	variants, err := s.executor.Execute(ctx, s.cfg.Matrix.Runtime, func(ctx context.Context, runtime string) model.VariantResult {
		res, runErr := s.runner.Run(ctx, s.cfg.Run, pipeline.RuntimeEnvVar+"="+runtime)
		if runErr != nil {
			return model.VariantResult{
				Runtime:    runtime,
				Conclusion: model.ConclusionFailure,
				Output:     runErr.Error(),
			}
		}

		v := model.VariantResult{
			Runtime:  runtime,
			Duration: res.Duration,
			Output:   res.Output,
		}
		if res.Success() {
			v.Conclusion = model.ConclusionSuccess
		} else {
			v.Conclusion = model.ConclusionFailure
		}
		return v
	})

	result.Variants = variants
	result.Duration = time.Since(result.StartedAt)

	if err != nil {
		// Distinguish run cancellation from the stage's own timeout.
		if parent.Err() != nil {
			result.Conclusion = model.ConclusionCancelled
		} else {
			result.Conclusion = model.ConclusionFailure
			result.Output = "[stage timed out]"
		}
		return result, nil
	}

	result.Conclusion = model.ConclusionSuccess
	for _, v := range variants {
		if v.Conclusion != model.ConclusionSuccess {
			result.Conclusion = model.ConclusionFailure
			break
		}
	}

	return result, nil
}
