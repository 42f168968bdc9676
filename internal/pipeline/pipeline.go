package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webextract/relgate/internal/model"
)

// Sentinel errors for stage graph validation.
var (
	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrUnknownDependency is returned when a stage needs an
	// unregistered stage.
	ErrUnknownDependency = errors.New("stage depends on unknown stage")

	// ErrDependencyCycle is returned when the stage graph contains a cycle.
	ErrDependencyCycle = errors.New("stage dependency cycle")
)

// Stage defines the interface that all pipeline stages must implement.
// Stages are executed in dependency order; a stage runs only after every
// stage it needs has concluded.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows stages to carry configuration state
// 2. It provides Name() and Needs() for graph construction and logging
// 3. Required() keeps the gating policy attached to the stage itself
type Stage interface {
	// Do executes the stage and returns its result. Ordinary command
	// failures are recorded in the result's conclusion; a non-nil error
	// means the stage could not run at all and aborts the run.
	Do(ctx context.Context, report *model.RunReport) (*model.StageResult, error)

	// Name returns the unique stage name.
	Name() string

	// Needs returns the names of stages that must conclude before this
	// stage runs.
	Needs() []string

	// Required reports whether a failure of this stage fails the run.
	Required() bool
}

// alwaysRunner is implemented by stages that execute even when a
// dependency failed or the run was cancelled, such as the final summary.
type alwaysRunner interface {
	AlwaysRun() bool
}

// Runner orchestrates the execution of a stage graph.
// Stages run one at a time in topological order; concurrency lives inside
// stages (the matrix executor), never between them.
type Runner struct {
	// stages contains the registered stages in insertion order.
	stages []Stage

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Runner.
// This follows the functional options pattern for clean API design.
type Option func(*Runner)

// WithLogger sets a custom logger for the runner.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a new Runner with the given options.
// Stages should be added using AddStage after creation.
func New(opts ...Option) *Runner {
	r := &Runner{
		stages: make([]Stage, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// AddStage registers a stage with the runner.
func (r *Runner) AddStage(stage Stage) {
	r.stages = append(r.stages, stage)
}

// AddStages registers multiple stages with the runner.
func (r *Runner) AddStages(stages ...Stage) {
	r.stages = append(r.stages, stages...)
}

// StageCount returns the number of registered stages.
func (r *Runner) StageCount() int {
	return len(r.stages)
}

// StageNames returns the names of all stages in execution order.
// It returns an error if the graph does not sort.
func (r *Runner) StageNames() ([]string, error) {
	order, err := r.sort()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(order))
	for i, stage := range order {
		names[i] = stage.Name()
	}
	return names, nil
}

// Execute runs every registered stage in dependency order and records the
// results in the report. The aggregate conclusion is computed when the last
// stage has concluded.
//
// Skip propagation: a stage whose dependency failed or was cancelled is
// recorded as skipped and never executed, and that skip propagates
// transitively to its own dependents. Conditional stages that were skipped
// by branch count as passed for their dependents.
//
// Cancellation marks all remaining stages cancelled instead of running
// them, but stages that always run (the summary) still execute so the run
// record stays complete.
func (r *Runner) Execute(ctx context.Context, report *model.RunReport) error {
	order, err := r.sort()
	if err != nil {
		report.SetError(err)
		return err
	}

	var abortErr error
	for _, stage := range order {
		always := alwaysRuns(stage)

		if ctx.Err() != nil && !always {
			report.AddStage(&model.StageResult{
				Name:       stage.Name(),
				Needs:      stage.Needs(),
				Required:   stage.Required(),
				Conclusion: model.ConclusionCancelled,
				SkipReason: "run cancelled",
				Blocked:    true,
			})
			continue
		}

		if abortErr != nil && !always {
			report.AddStage(&model.StageResult{
				Name:       stage.Name(),
				Needs:      stage.Needs(),
				Required:   stage.Required(),
				Conclusion: model.ConclusionSkipped,
				SkipReason: "run aborted",
				Blocked:    true,
			})
			continue
		}

		if reason := blockedBy(report, stage); reason != "" && !always {
			r.logger.Info("skipping stage",
				"stage", stage.Name(),
				"reason", reason,
			)
			report.AddStage(&model.StageResult{
				Name:       stage.Name(),
				Needs:      stage.Needs(),
				Required:   stage.Required(),
				Conclusion: model.ConclusionSkipped,
				SkipReason: reason,
				Blocked:    true,
			})
			continue
		}

		r.logger.Info("executing stage",
			"stage", stage.Name(),
			"branch", report.Branch,
		)

		result, stageErr := stage.Do(ctx, report)
		if result == nil {
			result = &model.StageResult{
				Name:       stage.Name(),
				Needs:      stage.Needs(),
				Required:   stage.Required(),
				Conclusion: model.ConclusionFailure,
			}
		}
		report.AddStage(result)

		if stageErr != nil {
			r.logger.Error("stage aborted",
				"stage", stage.Name(),
				"branch", report.Branch,
				"error", stageErr,
			)
			report.SetError(stageErr)
			// Remaining stages are recorded as skipped; the summary
			// still runs so the record stays complete.
			abortErr = stageErr
			continue
		}

		r.logger.Debug("stage concluded",
			"stage", stage.Name(),
			"conclusion", result.Conclusion.String(),
		)
	}

	report.FinishedAt = time.Now()
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), ErrSuperseded) {
			report.Superseded = true
		}
		report.Conclusion = model.ConclusionCancelled
		report.SetError(ctx.Err())
		return ctx.Err()
	}
	report.Conclusion = model.Summarize(report).Conclusion

	return abortErr
}

// blockedBy returns a human-readable reason when one of the stage's
// dependencies did not pass, or empty when the stage may run.
// A dependency that was itself skipped after an upstream failure blocks
// this stage too, so skips propagate down the whole chain; only
// branch-conditional skips satisfy dependents.
func blockedBy(report *model.RunReport, stage Stage) string {
	for _, need := range stage.Needs() {
		dep := report.Stage(need)
		if dep == nil {
			// Sorting guarantees dependencies concluded first, so a
			// missing entry cannot happen for a validated graph.
			return fmt.Sprintf("dependency %q has no result", need)
		}
		if dep.Blocked {
			return fmt.Sprintf("dependency %q was skipped after an upstream failure", need)
		}
		if !dep.Conclusion.Passed() {
			return fmt.Sprintf("dependency %q concluded %s", need, dep.Conclusion)
		}
	}
	return ""
}

// alwaysRuns reports whether the stage opted into running unconditionally.
func alwaysRuns(stage Stage) bool {
	a, ok := stage.(alwaysRunner)
	return ok && a.AlwaysRun()
}

// sort returns the stages in a stable topological order.
// Ties are broken by registration order so runs are reproducible.
func (r *Runner) sort() ([]Stage, error) {
	byName := make(map[string]Stage, len(r.stages))
	for _, stage := range r.stages {
		if _, ok := byName[stage.Name()]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, stage.Name())
		}
		byName[stage.Name()] = stage
	}

	indegree := make(map[string]int, len(r.stages))
	dependents := make(map[string][]string, len(r.stages))
	for _, stage := range r.stages {
		for _, need := range stage.Needs() {
			if _, ok := byName[need]; !ok {
				return nil, fmt.Errorf("%w: %q needs %q", ErrUnknownDependency, stage.Name(), need)
			}
			indegree[stage.Name()]++
			dependents[need] = append(dependents[need], stage.Name())
		}
	}

	// Kahn's algorithm with a registration-ordered scan instead of a
	// queue, to keep the order deterministic.
	order := make([]Stage, 0, len(r.stages))
	placed := make(map[string]bool, len(r.stages))
	for len(order) < len(r.stages) {
		progressed := false
		for _, stage := range r.stages {
			name := stage.Name()
			if placed[name] || indegree[name] > 0 {
				continue
			}
			placed[name] = true
			order = append(order, stage)
			for _, dep := range dependents[name] {
				indegree[dep]--
			}
			progressed = true
		}
		if !progressed {
			return nil, ErrDependencyCycle
		}
	}

	return order, nil
}
