package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/database"
	"github.com/webextract/relgate/internal/model"
	"github.com/webextract/relgate/internal/report"
)

// testPipeline is a fast pipeline exercising every stage shape.
const testPipeline = `
stages:
  code-quality:
    checks:
      - name: lint
        run: "true"
      - name: advisory
        run: "false"
        blocking: false
  test:
    matrix:
      runtime: ["3.12", "3.13"]
    run: test -n "$RELGATE_RUNTIME"
  build:
    needs: [code-quality, test]
    run: echo artifact > out.txt
    artifacts:
      - out.txt
  integration-test:
    needs: [build]
    branches: [main]
    run: "true"
`

// writeTestPipeline writes a pipeline file into a fresh directory and
// returns both paths.
func writeTestPipeline(t *testing.T, content string) (pipelinePath, workDir string) {
	t.Helper()

	workDir = t.TempDir()
	pipelinePath = filepath.Join(workDir, "relgate.yml")
	if err := os.WriteFile(pipelinePath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return pipelinePath, workDir
}

// executeRun runs the run command with common test flags plus extras.
func executeRun(t *testing.T, pipelinePath, workDir string, extra ...string) error {
	t.Helper()

	args := []string{"run",
		"-c", pipelinePath,
		"-w", workDir,
		"--db-dir", t.TempDir(),
	}
	args = append(args, extra...)

	cmd := NewRootCmd()
	cmd.SetOut(os.Stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	t.Run("passing pipeline succeeds", func(t *testing.T) {
		t.Parallel()

		pipelinePath, workDir := writeTestPipeline(t, testPipeline)
		reportPath := filepath.Join(t.TempDir(), "report.json")

		err := executeRun(t, pipelinePath, workDir,
			"-b", "feature", "--json", "-o", reportPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var doc report.RunDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}
		if doc.Summary.Conclusion != model.ConclusionSuccess {
			t.Errorf("conclusion = %v, want success", doc.Summary.Conclusion)
		}

		integration := doc.Run.Stage(model.StageIntegration)
		if integration == nil {
			t.Fatal("expected integration-test stage in report")
		}
		if integration.Conclusion != model.ConclusionSkipped {
			t.Errorf("integration conclusion = %v, want skipped off main", integration.Conclusion)
		}

		build := doc.Run.Stage(model.StageBuild)
		if build == nil || len(build.Artifacts) != 1 {
			t.Fatalf("expected one build artifact, got %+v", build)
		}
		if build.Artifacts[0].SHA256 == "" {
			t.Error("expected artifact digest")
		}
	})

	t.Run("advisory check failure does not fail the run", func(t *testing.T) {
		t.Parallel()

		pipelinePath, workDir := writeTestPipeline(t, testPipeline)
		reportPath := filepath.Join(t.TempDir(), "report.json")

		err := executeRun(t, pipelinePath, workDir,
			"-b", "feature", "--json", "-o", reportPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		var doc report.RunDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatal(err)
		}
		if len(doc.Summary.NeutralChecks) != 1 || doc.Summary.NeutralChecks[0] != "advisory" {
			t.Errorf("neutral checks = %v, want [advisory]", doc.Summary.NeutralChecks)
		}
	})

	t.Run("failing required stage fails the run", func(t *testing.T) {
		t.Parallel()

		failing := `
stages:
  test:
    run: "false"
  build:
    needs: [test]
    run: "true"
`
		pipelinePath, workDir := writeTestPipeline(t, failing)
		reportPath := filepath.Join(t.TempDir(), "report.json")

		err := executeRun(t, pipelinePath, workDir,
			"-b", "feature", "--json", "-o", reportPath)
		if err == nil {
			t.Fatal("expected error for failing pipeline")
		}
		if !strings.Contains(err.Error(), "test") {
			t.Errorf("expected failed stage named in error, got %v", err)
		}

		data, readErr := os.ReadFile(reportPath)
		if readErr != nil {
			t.Fatal(readErr)
		}
		var doc report.RunDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatal(err)
		}
		build := doc.Run.Stage(model.StageBuild)
		if build == nil || build.Conclusion != model.ConclusionSkipped {
			t.Errorf("expected build skipped after test failure, got %+v", build)
		}
	})

	t.Run("missing pipeline file errors", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		cmd.SetArgs([]string{"run", "-c", filepath.Join(t.TempDir(), "nope.yml")})
		if err := cmd.Execute(); err == nil {
			t.Fatal("expected error for missing pipeline file")
		}
	})

	t.Run("conflicting report formats rejected", func(t *testing.T) {
		t.Parallel()

		pipelinePath, workDir := writeTestPipeline(t, testPipeline)
		err := executeRun(t, pipelinePath, workDir, "-b", "feature", "--json", "--markdown")
		if err == nil {
			t.Fatal("expected error for --json with --markdown")
		}
	})
}

func TestDetectBranch(t *testing.T) {
	t.Parallel()

	t.Run("reads branch from HEAD", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, ".git"), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".git", "HEAD"),
			[]byte("ref: refs/heads/feature/login\n"), 0600); err != nil {
			t.Fatal(err)
		}

		if got := detectBranch(dir); got != "feature/login" {
			t.Errorf("detectBranch = %q, want feature/login", got)
		}
	})

	t.Run("detached HEAD yields empty", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, ".git"), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".git", "HEAD"),
			[]byte("abc1234def5678\n"), 0600); err != nil {
			t.Fatal(err)
		}

		if got := detectBranch(dir); got != "" {
			t.Errorf("detectBranch = %q, want empty", got)
		}
	})

	t.Run("no repository yields empty", func(t *testing.T) {
		t.Parallel()

		if got := detectBranch(t.TempDir()); got != "" {
			t.Errorf("detectBranch = %q, want empty", got)
		}
	})
}

func TestIntegrationSelected(t *testing.T) {
	t.Parallel()

	file := &config.File{
		Stages: map[string]config.StageConfig{
			model.StageIntegration: {
				Run:      "true",
				Branches: []string{"main", "release"},
			},
		},
	}

	if !integrationSelected(file, "main") {
		t.Error("expected main to select integration-test")
	}
	if integrationSelected(file, "feature") {
		t.Error("expected feature to not select integration-test")
	}

	unconditional := &config.File{
		Stages: map[string]config.StageConfig{
			model.StageIntegration: {Run: "true"},
		},
	}
	if !integrationSelected(unconditional, "anything") {
		t.Error("expected unconditional integration-test to always be selected")
	}

	absent := &config.File{Stages: map[string]config.StageConfig{}}
	if integrationSelected(absent, "main") {
		t.Error("expected absent integration-test to never be selected")
	}
}

// An interrupted run must still land in history, so saving detaches from
// the run's cancelled context.
func TestSaveRunReportAfterCancel(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rep := model.NewRunReport("main", "abc1234")
	rep.Conclusion = model.ConclusionCancelled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := saveRunReport(ctx, db, rep, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := db.RunHistory(context.Background(), "main", 1)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs in history, expected 1", len(runs))
	}
	if runs[0].Conclusion != model.ConclusionCancelled {
		t.Errorf("got conclusion %s, expected cancelled", runs[0].Conclusion)
	}
}
