package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/webextract/relgate/internal/database"
	"github.com/webextract/relgate/internal/model"
)

// seedHistory stores two runs and a decision in a fresh database directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	older := model.NewRunReport("main", "commit-one")
	older.StartedAt = base
	older.FinishedAt = base.Add(time.Minute)
	older.Conclusion = model.ConclusionFailure
	older.AddStage(&model.StageResult{Name: model.StageTest, Required: true, Conclusion: model.ConclusionFailure})
	older.AddStage(&model.StageResult{Name: model.StageBuild, Required: true, Conclusion: model.ConclusionSkipped, SkipReason: `dependency "test" concluded failure`})
	if _, err := db.SaveRun(ctx, older); err != nil {
		t.Fatal(err)
	}

	newer := model.NewRunReport("main", "commit-two")
	newer.StartedAt = base.Add(time.Hour)
	newer.FinishedAt = base.Add(time.Hour + time.Minute)
	newer.Conclusion = model.ConclusionSuccess
	newer.AddStage(&model.StageResult{Name: model.StageTest, Required: true, Conclusion: model.ConclusionSuccess})
	newer.AddStage(&model.StageResult{Name: model.StageBuild, Required: true, Conclusion: model.ConclusionSuccess})
	if _, err := db.SaveRun(ctx, newer); err != nil {
		t.Fatal(err)
	}

	decision := model.NewReleaseDecision("v1.2.3", model.TriggerTag)
	version, err := model.ParseVersion("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	decision.Version = version
	decision.Channel = model.ChannelStable
	decision.Allowed = true
	decision.RunConclusion = model.ConclusionSuccess
	decision.DecidedAt = base.Add(2 * time.Hour)
	if _, err := db.SaveDecision(ctx, decision); err != nil {
		t.Fatal(err)
	}

	return dbDir
}

// executeHistory runs the history command and captures its output.
func executeHistory(t *testing.T, dbDir string, extra ...string) (string, error) {
	t.Helper()

	args := []string{"history", "--db-dir", dbDir}
	args = append(args, extra...)

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		output, err := executeHistory(t, dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		first := strings.Index(output, "commit-two")
		second := strings.Index(output, "commit-one")
		if first == -1 || second == -1 {
			t.Fatalf("expected both commits in output:\n%s", output)
		}
		if first > second {
			t.Error("expected newest run listed first")
		}
	})

	t.Run("filters by branch", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		output, err := executeHistory(t, dbDir, "-b", "unknown-branch")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, "No runs recorded") {
			t.Errorf("expected empty listing for unknown branch, got:\n%s", output)
		}
	})

	t.Run("lists release decisions", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		output, err := executeHistory(t, dbDir, "--releases")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, "v1.2.3") {
			t.Errorf("expected decision ref in output:\n%s", output)
		}
		if !strings.Contains(output, "allowed") {
			t.Errorf("expected verdict in output:\n%s", output)
		}
	})

	t.Run("diff shows stage conclusion changes", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		output, err := executeHistory(t, dbDir, "--diff", "-b", "main")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, "failure -> success") {
			t.Errorf("expected test stage change in diff:\n%s", output)
		}
		if !strings.Contains(output, "skipped -> success") {
			t.Errorf("expected build stage change in diff:\n%s", output)
		}
	})

	t.Run("diff requires branch", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		if _, err := executeHistory(t, dbDir, "--diff"); err == nil {
			t.Fatal("expected error when --diff is used without --branch")
		}
	})

	t.Run("diff needs two runs", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		if _, err := executeHistory(t, dbDir, "--diff", "-b", "unknown-branch"); err == nil {
			t.Fatal("expected error for a branch with no history")
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		dbDir := seedHistory(t)
		output, err := executeHistory(t, dbDir, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, `"Branch": "main"`) {
			t.Errorf("expected JSON run metadata, got:\n%s", output)
		}
	})
}
