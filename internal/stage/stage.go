package stage

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/webextract/relgate/internal/command"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/model"
	"github.com/webextract/relgate/internal/pipeline"
)

// builder collects the settings FromFile needs to assemble a runner.
type builder struct {
	workDir        string
	defaultTimeout time.Duration
	concurrency    int
	environ        []string
	logger         *slog.Logger
}

// Option configures the FromFile assembly.
type Option func(*builder)

// WithWorkDir sets the working directory for stage commands and artifact
// globs.
func WithWorkDir(dir string) Option {
	return func(b *builder) {
		b.workDir = dir
	}
}

// WithDefaultTimeout sets the stage timeout used when the pipeline file
// declares none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(b *builder) {
		if d > 0 {
			b.defaultTimeout = d
		}
	}
}

// WithConcurrency sets the matrix variant concurrency limit.
func WithConcurrency(n int) Option {
	return func(b *builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithEnviron injects KEY=value pairs into the integration-test stage,
// typically the application's resolved WEBEXTRACT_* surface.
func WithEnviron(env []string) Option {
	return func(b *builder) {
		b.environ = append(b.environ, env...)
	}
}

// WithStageLogger sets the logger passed to every stage.
func WithStageLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// FromFile assembles a pipeline runner from a validated pipeline file.
// Stage implementations are chosen by shape: stages with checks become
// check stages, stages with a runtime matrix become matrix stages, stages
// with artifact patterns become build stages, and everything else runs as
// a plain command stage. A summary stage ordered after every declared
// stage is always appended.
func FromFile(file *config.File, opts ...Option) (*pipeline.Runner, error) {
	b := &builder{
		defaultTimeout: config.DefaultStageTimeout,
		concurrency:    config.DefaultMatrixConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	runner := command.New(
		command.WithShell(file.Shell()),
		command.WithWorkDir(b.workDir),
		command.WithMaxOutput(config.DefaultOutputTruncate),
		command.WithLogger(b.logger),
	)

	// Map iteration order is random; sort for reproducible registration.
	names := make([]string, 0, len(file.Stages))
	for name := range file.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	p := pipeline.New(pipeline.WithLogger(b.logger))
	for _, name := range names {
		cfg := file.Stages[name]

		timeout, err := file.StageTimeout(name, b.defaultTimeout)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", name, err)
		}

		switch {
		case len(cfg.Checks) > 0:
			p.AddStage(NewCheckStage(name, cfg, runner, timeout, b.logger))
		case len(cfg.Matrix.Runtime) > 0:
			p.AddStage(NewMatrixStage(name, cfg, runner, timeout, b.concurrency, b.logger))
		case len(cfg.Artifacts) > 0:
			p.AddStage(NewBuildStage(name, cfg, runner, b.workDir, timeout, b.logger))
		default:
			var stageOpts []CommandStageOption
			if name == model.StageIntegration && len(b.environ) > 0 {
				stageOpts = append(stageOpts, WithCommandEnv(b.environ))
			}
			p.AddStage(NewCommandStage(name, cfg, runner, timeout, b.logger, stageOpts...))
		}
	}

	p.AddStage(NewSummaryStage(names, b.logger))

	return p, nil
}
