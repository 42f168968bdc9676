package stage

import (
	"context"
	"testing"

	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/model"
)

// testFile builds a minimal passing pipeline definition covering all four
// stage shapes.
func testFile() *config.File {
	return &config.File{
		Project: "webextract",
		Stages: map[string]config.StageConfig{
			model.StageCodeQuality: {
				Checks: []config.CheckConfig{
					{Name: "lint", Run: "true"},
					{Name: "security", Run: "exit 1", Blocking: boolPtr(false)},
				},
			},
			model.StageTest: {
				Needs:  []string{model.StageCodeQuality},
				Run:    "test -n \"$RELGATE_RUNTIME\"",
				Matrix: config.MatrixConfig{Runtime: []string{"3.11", "3.12"}},
			},
			model.StageBuild: {
				Needs: []string{model.StageCodeQuality, model.StageTest},
				Run:   "true",
			},
			model.StageIntegration: {
				Needs:    []string{model.StageBuild},
				Run:      "true",
				Branches: []string{"main"},
			},
		},
	}
}

// TestFromFile tests runner assembly and an end-to-end run.
func TestFromFile(t *testing.T) {
	t.Parallel()

	t.Run("full run on main", func(t *testing.T) {
		t.Parallel()

		runner, err := FromFile(testFile(),
			WithWorkDir(t.TempDir()),
			WithStageLogger(quietLogger()),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Four declared stages plus the implicit summary
		if got := runner.StageCount(); got != 5 {
			t.Errorf("got %d stages, expected 5", got)
		}

		names, err := runner.StageNames()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if names[len(names)-1] != model.StageSummary {
			t.Errorf("summary should run last, got order %v", names)
		}

		report := model.NewRunReport("main", "abc1234")
		if err := runner.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Conclusion != model.ConclusionSuccess {
			t.Errorf("got conclusion %s, expected success", report.Conclusion)
		}
		if got := report.Stage(model.StageIntegration).Conclusion; got != model.ConclusionSuccess {
			t.Errorf("integration on main: got %s, expected success", got)
		}
	})

	t.Run("integration skipped off main without failing", func(t *testing.T) {
		t.Parallel()

		runner, err := FromFile(testFile(),
			WithWorkDir(t.TempDir()),
			WithStageLogger(quietLogger()),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		report := model.NewRunReport("feature/extract", "")
		if err := runner.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Conclusion != model.ConclusionSuccess {
			t.Errorf("got conclusion %s, expected success", report.Conclusion)
		}
		if got := report.Stage(model.StageIntegration).Conclusion; got != model.ConclusionSkipped {
			t.Errorf("integration off main: got %s, expected skipped", got)
		}
	})

	t.Run("invalid stage timeout", func(t *testing.T) {
		t.Parallel()

		file := testFile()
		sc := file.Stages[model.StageBuild]
		sc.Timeout = "not-a-duration"
		file.Stages[model.StageBuild] = sc

		if _, err := FromFile(file, WithStageLogger(quietLogger())); err == nil {
			t.Error("expected an error for an invalid timeout")
		}
	})
}
