package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/database"
	"github.com/webextract/relgate/internal/log"
	"github.com/webextract/relgate/internal/model"
	"github.com/webextract/relgate/internal/release"
)

// maxPlanHistory is the number of previously released versions carried
// into the publish plan.
const maxPlanHistory = 10

// NewReleaseCmd creates the release command.
func NewReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release <ref>",
		Short: "Evaluate the release gate for a version",
		Long: `Release decides whether the given version may be published.

The decision procedure, in order:
 1. Validate the ref against the MAJOR.MINOR.PATCH[-suffix] contract
    (a single leading "v" is stripped first). Invalid versions are
    rejected before the pipeline runs.
 2. Classify the release channel: a suffix containing "alpha", "beta",
    or "rc" marks a pre-release, anything else is stable.
 3. Cross-check the version declared in the project's version file.
 4. Run the full validation pipeline; only a passing run allows the
    release.

An allowed release produces a version.json publish plan recording the
version, channel, commit, and recent release history.

Examples:
  # Gate a tag push
  relgate release v1.2.3

  # Gate a manual dispatch with an explicit version
  relgate release --dispatch 2.0.0-rc1

  # Write the publish plan somewhere other than docs/
  relgate release v1.2.3 --plan-dir site

  # Emit the decision as JSON
  relgate release --json v1.2.3`,
		Args: cobra.ExactArgs(1),
		RunE: runReleaseCmd,
	}

	// Trigger flags
	cmd.Flags().BoolP("dispatch", "d", false,
		"Treat the ref as a manual dispatch input instead of a pushed tag")

	// Run identity flags
	cmd.Flags().StringP("branch", "b", "",
		"Branch the backing pipeline run validates (default: detected from .git/HEAD, else \"main\")")
	cmd.Flags().String("commit", "",
		"Commit identifier recorded with the run and publish plan")

	// Pipeline flags
	cmd.Flags().StringP("config", "c", "",
		"Pipeline file path (default: relgate.yml in current or home directory)")
	cmd.Flags().StringP("workdir", "w", "",
		"Working directory for stage commands (default: current directory)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultStageTimeout,
		"Default timeout per stage (stages can override in relgate.yml)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultMatrixConcurrency,
		"Number of matrix variants run concurrently")

	// Publish plan flags
	cmd.Flags().String("plan-dir", "docs",
		"Directory the version.json publish plan is written to")
	cmd.Flags().Bool("no-plan", false,
		"Do not write a publish plan for allowed releases")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON decision (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown decision (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write decision to specified file path (creates directories if needed)")

	// Persistence flags
	cmd.Flags().Bool("no-save", false,
		"Do not persist the decision to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runReleaseCmd executes the release command.
func runReleaseCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	verbose := getVerboseFlag(cmd)
	cfg.Verbose = verbose
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger := model.TriggerTag
	dispatch, err := cmd.Flags().GetBool("dispatch")
	if err != nil {
		return err
	}
	if dispatch {
		trigger = model.TriggerDispatch
	}

	planDir, err := cmd.Flags().GetString("plan-dir")
	if err != nil {
		return err
	}
	noPlan, err := cmd.Flags().GetBool("no-plan")
	if err != nil {
		return err
	}

	return runRelease(ctx, cmd, cfg, releaseRequest{
		ref:      args[0],
		trigger:  trigger,
		planDir:  planDir,
		skipPlan: noPlan,
	}, logger)
}

// releaseRequest carries the release-specific inputs of one gate evaluation.
type releaseRequest struct {
	ref      string
	trigger  model.Trigger
	planDir  string
	skipPlan bool
}

// runRelease evaluates the release gate and reports the decision.
func runRelease(ctx context.Context, cmd *cobra.Command, cfg *config.Config, req releaseRequest, logger *slog.Logger) error {
	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	// The version file lives in the project being gated, so resolve it
	// against the stage working directory.
	versionFile := cfg.Pipeline.VersionFile()
	if cfg.WorkDir != "" && !filepath.IsAbs(versionFile) {
		versionFile = filepath.Join(cfg.WorkDir, versionFile)
	}

	var rep *model.RunReport
	gate := release.NewGate(
		func(ctx context.Context) (*model.RunReport, error) {
			rep = model.NewRunReport(cfg.Branch, cfg.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Running validation pipeline for %s...\n", req.ref)
			err := runner.Execute(ctx, rep)
			return rep, err
		},
		release.WithVersionFile(versionFile),
		release.WithGateLogger(logger),
	)

	decision, err := gate.Decide(ctx, req.ref, req.trigger)
	if err != nil {
		return fmt.Errorf("release gate failed: %w", err)
	}

	if err := outputDecision(cfg, decision); err != nil {
		logger.Error("decision output failed", "error", err)
	}

	// The plan's version history is read before this decision is saved,
	// so the current version appears in it exactly once.
	var planErr error
	if decision.Allowed && !req.skipPlan {
		planErr = writePublishPlan(ctx, cmd, db, decision, cfg.Commit, req.planDir)
	}

	// Persistence is detached from the signal context so an interrupted
	// run still lands in history.
	if db != nil {
		saveCtx := context.WithoutCancel(ctx)
		if rep != nil {
			if _, err := db.SaveRun(saveCtx, rep); err != nil {
				logger.Error("failed to save run", "error", err)
			}
		}
		if _, err := db.SaveDecision(saveCtx, decision); err != nil {
			logger.Error("failed to save decision", "error", err)
		}
	}

	if !decision.Allowed {
		return fmt.Errorf("release rejected: %s", decision.Reason)
	}

	return planErr
}

// outputDecision outputs the release decision in the requested format.
func outputDecision(cfg *config.Config, decision *model.ReleaseDecision) error {
	output, closer, err := reportDestination(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closer()

	writer := selectWriter(cfg, output)
	_, err = writer.WriteDecision(decision)
	return err
}

// writePublishPlan writes the version.json publish plan for an allowed
// release. Release history comes from the database when available.
func writePublishPlan(ctx context.Context, cmd *cobra.Command, db *database.HistoryDB, decision *model.ReleaseDecision, commit, planDir string) error {
	var previous []string
	if db != nil {
		var err error
		previous, err = db.ReleasedVersions(ctx, maxPlanHistory)
		if err != nil {
			return fmt.Errorf("failed to load release history: %w", err)
		}
	}

	plan, err := release.NewPublishPlan(decision, commit, previous)
	if err != nil {
		return err
	}

	path, err := plan.Write(planDir)
	if err != nil {
		return fmt.Errorf("failed to write publish plan: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Publish plan written to %s\n", path)
	return nil
}
