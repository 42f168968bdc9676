package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/webextract/relgate/internal/model"
)

// stubStage is a configurable Stage implementation for runner tests.
type stubStage struct {
	name       string
	needs      []string
	required   bool
	always     bool
	conclusion model.Conclusion
	err        error
	onDo       func()
}

func (s *stubStage) Name() string    { return s.name }
func (s *stubStage) Needs() []string { return s.needs }
func (s *stubStage) Required() bool  { return s.required }
func (s *stubStage) AlwaysRun() bool { return s.always }

func (s *stubStage) Do(_ context.Context, _ *model.RunReport) (*model.StageResult, error) {
	if s.onDo != nil {
		s.onDo()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &model.StageResult{
		Name:       s.name,
		Needs:      s.needs,
		Required:   s.required,
		Conclusion: s.conclusion,
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// passingGraph builds the standard four-stage graph plus summary, with
// every stage succeeding.
func passingGraph() []Stage {
	return []Stage{
		&stubStage{name: model.StageCodeQuality, required: true, conclusion: model.ConclusionSuccess},
		&stubStage{name: model.StageTest, needs: []string{model.StageCodeQuality}, required: true, conclusion: model.ConclusionSuccess},
		&stubStage{name: model.StageBuild, needs: []string{model.StageCodeQuality, model.StageTest}, required: true, conclusion: model.ConclusionSuccess},
		&stubStage{name: model.StageIntegration, needs: []string{model.StageBuild}, required: true, conclusion: model.ConclusionSuccess},
		&stubStage{name: model.StageSummary, needs: []string{model.StageIntegration}, always: true, conclusion: model.ConclusionSuccess},
	}
}

// TestRunnerExecute tests dependency-ordered execution and aggregation.
func TestRunnerExecute(t *testing.T) {
	t.Parallel()

	t.Run("all stages pass", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(passingGraph()...)

		report := model.NewRunReport("main", "abc1234")
		if err := r.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Conclusion != model.ConclusionSuccess {
			t.Errorf("got conclusion %s, expected success", report.Conclusion)
		}
		if len(report.Stages) != 5 {
			t.Errorf("got %d stage results, expected 5", len(report.Stages))
		}
		if report.FinishedAt.IsZero() {
			t.Error("FinishedAt not set")
		}
	})

	t.Run("failure skips dependents but not summary", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: model.StageCodeQuality, required: true, conclusion: model.ConclusionFailure},
			&stubStage{name: model.StageTest, needs: []string{model.StageCodeQuality}, required: true, conclusion: model.ConclusionSuccess},
			&stubStage{name: model.StageBuild, needs: []string{model.StageCodeQuality, model.StageTest}, required: true, conclusion: model.ConclusionSuccess},
			&stubStage{name: model.StageSummary, needs: []string{model.StageBuild}, always: true, conclusion: model.ConclusionSuccess},
		)

		report := model.NewRunReport("main", "")
		if err := r.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Conclusion != model.ConclusionFailure {
			t.Errorf("got conclusion %s, expected failure", report.Conclusion)
		}
		if got := report.Stage(model.StageTest).Conclusion; got != model.ConclusionSkipped {
			t.Errorf("test stage: got %s, expected skipped", got)
		}
		if got := report.Stage(model.StageBuild).Conclusion; got != model.ConclusionSkipped {
			t.Errorf("build stage: got %s, expected skipped", got)
		}
		if got := report.Stage(model.StageSummary).Conclusion; got != model.ConclusionSuccess {
			t.Errorf("summary stage: got %s, expected success (always runs)", got)
		}
		if report.Stage(model.StageTest).SkipReason == "" {
			t.Error("skipped stage should carry a reason")
		}
	})

	t.Run("failure skips transitively through the chain", func(t *testing.T) {
		t.Parallel()

		var ran []string
		record := func(name string) func() {
			return func() { ran = append(ran, name) }
		}

		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: model.StageCodeQuality, required: true, conclusion: model.ConclusionFailure, onDo: record(model.StageCodeQuality)},
			&stubStage{name: model.StageBuild, needs: []string{model.StageCodeQuality}, required: true, conclusion: model.ConclusionSuccess, onDo: record(model.StageBuild)},
			&stubStage{name: model.StageIntegration, needs: []string{model.StageBuild}, required: true, conclusion: model.ConclusionSuccess, onDo: record(model.StageIntegration)},
			&stubStage{name: model.StageSummary, needs: []string{model.StageIntegration}, always: true, conclusion: model.ConclusionSuccess, onDo: record(model.StageSummary)},
		)

		report := model.NewRunReport("main", "")
		if err := r.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		build := report.Stage(model.StageBuild)
		if build.Conclusion != model.ConclusionSkipped || !build.Blocked {
			t.Errorf("build stage: got %s (blocked=%v), expected blocked skip",
				build.Conclusion, build.Blocked)
		}

		integration := report.Stage(model.StageIntegration)
		if integration.Conclusion != model.ConclusionSkipped || !integration.Blocked {
			t.Errorf("integration stage: got %s (blocked=%v), expected blocked skip",
				integration.Conclusion, integration.Blocked)
		}
		if integration.SkipReason == "" {
			t.Error("transitively skipped stage should carry a reason")
		}

		want := []string{model.StageCodeQuality, model.StageSummary}
		if len(ran) != len(want) || ran[0] != want[0] || ran[1] != want[1] {
			t.Errorf("got executed stages %v, expected %v", ran, want)
		}
	})

	t.Run("skipped dependency does not block dependents", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: model.StageBuild, required: true, conclusion: model.ConclusionSuccess},
			&stubStage{name: model.StageIntegration, needs: []string{model.StageBuild}, conclusion: model.ConclusionSkipped},
			&stubStage{name: model.StageSummary, needs: []string{model.StageIntegration}, always: true, conclusion: model.ConclusionSuccess},
		)

		report := model.NewRunReport("feature/x", "")
		if err := r.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Conclusion != model.ConclusionSuccess {
			t.Errorf("got conclusion %s, expected success", report.Conclusion)
		}
	})

	t.Run("stage abort skips the rest and surfaces the error", func(t *testing.T) {
		t.Parallel()

		abort := errors.New("runner unavailable")
		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: model.StageCodeQuality, required: true, err: abort},
			&stubStage{name: model.StageTest, needs: []string{model.StageCodeQuality}, required: true, conclusion: model.ConclusionSuccess},
			&stubStage{name: model.StageSummary, always: true, conclusion: model.ConclusionSuccess},
		)

		report := model.NewRunReport("main", "")
		if err := r.Execute(context.Background(), report); !errors.Is(err, abort) {
			t.Fatalf("got %v, expected abort error", err)
		}

		if got := report.Stage(model.StageTest).Conclusion; got != model.ConclusionSkipped {
			t.Errorf("test stage: got %s, expected skipped", got)
		}
		if report.Stage(model.StageSummary) == nil {
			t.Error("summary should still run after an abort")
		}
		if report.ErrorMessage == "" {
			t.Error("abort error not recorded in report")
		}
	})

	t.Run("cancelled context marks stages cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(passingGraph()...)

		report := model.NewRunReport("main", "")
		if err := r.Execute(ctx, report); !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, expected context.Canceled", err)
		}

		if report.Conclusion != model.ConclusionCancelled {
			t.Errorf("got conclusion %s, expected cancelled", report.Conclusion)
		}
		if got := report.Stage(model.StageCodeQuality).Conclusion; got != model.ConclusionCancelled {
			t.Errorf("code-quality: got %s, expected cancelled", got)
		}
		if report.Stage(model.StageSummary) == nil {
			t.Error("summary should still run for cancelled runs")
		}
	})
}

// TestRunnerOrdering tests topological ordering and graph validation.
func TestRunnerOrdering(t *testing.T) {
	t.Parallel()

	t.Run("dependency order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) func() {
			return func() { order = append(order, name) }
		}

		// Registered out of order on purpose
		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: "c", needs: []string{"a", "b"}, conclusion: model.ConclusionSuccess, onDo: record("c")},
			&stubStage{name: "a", conclusion: model.ConclusionSuccess, onDo: record("a")},
			&stubStage{name: "b", needs: []string{"a"}, conclusion: model.ConclusionSuccess, onDo: record("b")},
		)

		report := model.NewRunReport("main", "")
		if err := r.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"a", "b", "c"}
		if len(order) != len(want) {
			t.Fatalf("got order %v, expected %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("got order %v, expected %v", order, want)
			}
		}
	})

	t.Run("unknown dependency", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStage(&stubStage{name: "a", needs: []string{"missing"}})

		if _, err := r.StageNames(); !errors.Is(err, ErrUnknownDependency) {
			t.Errorf("got %v, expected ErrUnknownDependency", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: "a", needs: []string{"b"}},
			&stubStage{name: "b", needs: []string{"a"}},
		)

		if _, err := r.StageNames(); !errors.Is(err, ErrDependencyCycle) {
			t.Errorf("got %v, expected ErrDependencyCycle", err)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(
			&stubStage{name: "a"},
			&stubStage{name: "a"},
		)

		if _, err := r.StageNames(); !errors.Is(err, ErrDuplicateStage) {
			t.Errorf("got %v, expected ErrDuplicateStage", err)
		}
	})

	t.Run("stage names in execution order", func(t *testing.T) {
		t.Parallel()

		r := New(WithLogger(quietLogger()))
		r.AddStages(passingGraph()...)

		names, err := r.StageNames()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if names[0] != model.StageCodeQuality || names[len(names)-1] != model.StageSummary {
			t.Errorf("unexpected order: %v", names)
		}
	})
}
