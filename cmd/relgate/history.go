package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/database"
	"github.com/webextract/relgate/internal/model"
)

// defaultHistoryLimit is how many entries history listings show.
const defaultHistoryLimit = 10

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs and release decisions",
		Long: `History lists validation runs and release decisions from the local database.

Every run and release decision is persisted (unless --no-save was used),
so the history shows how a branch has been trending and which versions
were allowed out the door.

Examples:
  # List recent runs across all branches
  relgate history

  # List recent runs for one branch
  relgate history --branch main

  # Show what changed between the two most recent runs of a branch
  relgate history --diff --branch main

  # List release decisions
  relgate history --releases

  # Output history as JSON
  relgate history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("branch", "b", "",
		"Restrict the listing to one branch")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of entries to list")
	cmd.Flags().BoolP("releases", "r", false,
		"List release decisions instead of runs")
	cmd.Flags().Bool("diff", false,
		"Compare stage conclusions of the two most recent runs (requires --branch)")
	cmd.Flags().BoolP("json", "j", false,
		"Output history in JSON format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	branch, err := cmd.Flags().GetString("branch")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	releases, err := cmd.Flags().GetBool("releases")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	if diff && branch == "" {
		return errors.New("--diff requires --branch")
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case diff:
		return diffRecentRuns(ctx, out, db, branch)
	case releases:
		return listDecisions(ctx, out, db, limit, asJSON)
	default:
		return listRuns(ctx, out, db, branch, limit, asJSON)
	}
}

// listRuns prints recent run metadata, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, branch string, limit int, asJSON bool) error {
	runs, err := db.ListRuns(ctx, branch, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if asJSON {
		return writeIndented(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-5s %-20s %-12s %-20s %-10s\n", "ID", "BRANCH", "COMMIT", "STARTED", "RESULT")
	for _, run := range runs {
		result := run.Conclusion.String()
		if run.Superseded {
			result += " (superseded)"
		}
		commit := run.Commit
		if commit == "" {
			commit = "-"
		} else if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(out, "%-5d %-20s %-12s %-20s %-10s\n",
			run.ID, run.Branch, commit,
			run.StartedAt.Format("2006-01-02 15:04:05"), result)
	}

	return nil
}

// listDecisions prints recent release decisions, newest first.
func listDecisions(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int, asJSON bool) error {
	decisions, err := db.ListDecisions(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list decisions: %w", err)
	}

	if asJSON {
		return writeIndented(out, decisions)
	}

	if len(decisions) == 0 {
		fmt.Fprintln(out, "No release decisions recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-5s %-16s %-12s %-12s %-20s %s\n", "ID", "REF", "VERSION", "CHANNEL", "DECIDED", "VERDICT")
	for _, d := range decisions {
		verdict := "rejected"
		if d.Allowed {
			verdict = "allowed"
		}
		version := d.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(out, "%-5d %-16s %-12s %-12s %-20s %s\n",
			d.ID, d.Ref, version, d.Channel,
			d.DecidedAt.Format("2006-01-02 15:04:05"), verdict)
		if !d.Allowed && d.Reason != "" {
			fmt.Fprintf(out, "      reason: %s\n", d.Reason)
		}
	}

	return nil
}

// diffRecentRuns compares the stage conclusions of a branch's two most
// recent runs.
func diffRecentRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, branch string) error {
	runs, err := db.RunHistory(ctx, branch, 2)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	if len(runs) < 2 {
		return fmt.Errorf("need at least two runs for branch %q, have %d", branch, len(runs))
	}

	// RunHistory returns newest first.
	latest, previous := runs[0], runs[1]

	fmt.Fprintf(out, "Comparing run %d (%s) with run %d (%s) on %s\n\n",
		previous.ID, previous.StartedAt.Format("2006-01-02 15:04:05"),
		latest.ID, latest.StartedAt.Format("2006-01-02 15:04:05"),
		branch)

	changed := false
	for _, stage := range latest.Stages {
		before := previous.Stage(stage.Name)
		switch {
		case before == nil:
			fmt.Fprintf(out, "  %-18s (new stage) -> %s\n", stage.Name, stage.Conclusion)
			changed = true
		case before.Conclusion != stage.Conclusion:
			fmt.Fprintf(out, "  %-18s %s -> %s\n", stage.Name, before.Conclusion, stage.Conclusion)
			changed = true
		}
	}
	for _, stage := range previous.Stages {
		if latest.Stage(stage.Name) == nil {
			fmt.Fprintf(out, "  %-18s %s -> (removed)\n", stage.Name, stage.Conclusion)
			changed = true
		}
	}

	if !changed {
		fmt.Fprintln(out, "  No stage conclusion changes.")
	}

	fmt.Fprintf(out, "\nOverall: %s -> %s\n",
		runConclusion(previous), runConclusion(latest))

	return nil
}

// runConclusion formats a run's aggregate conclusion for the diff view.
func runConclusion(r *model.RunReport) string {
	s := r.Conclusion.String()
	if r.Superseded {
		s += " (superseded)"
	}
	return s
}

// writeIndented writes v as indented JSON.
func writeIndented(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
