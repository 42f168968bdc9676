package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/database"
	"github.com/webextract/relgate/internal/log"
	"github.com/webextract/relgate/internal/model"
	"github.com/webextract/relgate/internal/pipeline"
	"github.com/webextract/relgate/internal/report"
	"github.com/webextract/relgate/internal/stage"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the validation pipeline for a branch",
		Long: `Run executes the validation pipeline declared in relgate.yml.

Stages run in dependency order: a stage whose dependencies did not all pass
is skipped, and skipped conditional stages count as passed. The summary is
always produced, even when an earlier stage fails. The run passes only if
every required stage that was not skipped concluded successfully.

Examples:
  # Run the pipeline for the current branch
  relgate run

  # Run for a specific branch and commit
  relgate run --branch develop --commit abc1234

  # Use a custom pipeline file
  relgate run -c ci/relgate.yml

  # Output JSON report to a file
  relgate run --json -o report.json

  # Run without persisting to the history database
  relgate run --no-save`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	// Run identity flags
	cmd.Flags().StringP("branch", "b", "",
		"Branch being validated (default: detected from .git/HEAD, else \"main\")")
	cmd.Flags().String("commit", "",
		"Commit identifier recorded with the run")

	// Pipeline flags
	cmd.Flags().StringP("config", "c", "",
		"Pipeline file path (default: relgate.yml in current or home directory)")
	cmd.Flags().StringP("workdir", "w", "",
		"Working directory for stage commands (default: current directory)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultStageTimeout,
		"Default timeout per stage (stages can override in relgate.yml)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultMatrixConcurrency,
		"Number of matrix variants run concurrently")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Persistence flags
	cmd.Flags().Bool("no-save", false,
		"Do not persist the run to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with secret sanitization
	verbose := getVerboseFlag(cmd)
	cfg.Verbose = verbose
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runValidation(ctx, cmd, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildRunConfig creates a Config from cobra command flags.
func buildRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	branch, err := cmd.Flags().GetString("branch")
	if err != nil {
		return nil, err
	}
	if branch != "" {
		cfg.Branch = branch
	} else if detected := detectBranch(""); detected != "" {
		cfg.Branch = detected
	}

	cfg.Commit, err = cmd.Flags().GetString("commit")
	if err != nil {
		return nil, err
	}

	cfg.PipelineFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.WorkDir, err = cmd.Flags().GetString("workdir")
	if err != nil {
		return nil, err
	}

	cfg.StageTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MatrixConcurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	// Load and validate the pipeline definition.
	// If user explicitly specified a pipeline file path, error if not found.
	explicitPath := cfg.PipelineFilePath != ""
	pipelinePath := config.FindPipelineFile(cfg.PipelineFilePath)
	if pipelinePath == "" {
		if explicitPath {
			return nil, fmt.Errorf("pipeline file not found: %s", cfg.PipelineFilePath)
		}
		return nil, fmt.Errorf("no %s found (run 'relgate init' to create one)", config.DefaultPipelineFile)
	}

	cfg.Pipeline, err = config.LoadPipelineFile(pipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline file %s: %w", pipelinePath, err)
	}

	return cfg, nil
}

// detectBranch reads the current branch from .git/HEAD under dir.
// Returns empty string when the branch cannot be determined (detached
// HEAD, not a repository).
func detectBranch(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, ".git", "HEAD"))
	if err != nil {
		return ""
	}

	head := strings.TrimSpace(string(data))
	const refPrefix = "ref: refs/heads/"
	if !strings.HasPrefix(head, refPrefix) {
		return ""
	}
	return strings.TrimPrefix(head, refPrefix)
}

// buildRunner assembles a pipeline runner from the loaded configuration.
func buildRunner(cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, error) {
	opts := []stage.Option{
		stage.WithDefaultTimeout(cfg.StageTimeout),
		stage.WithConcurrency(cfg.MatrixConcurrency),
		stage.WithStageLogger(logger),
	}
	if cfg.WorkDir != "" {
		opts = append(opts, stage.WithWorkDir(cfg.WorkDir))
	}

	// The integration-test stage runs against a live extraction provider
	// and needs the WEBEXTRACT_* environment. The rest of the pipeline
	// does not, so an invalid provider environment only blocks runs that
	// would actually select that stage.
	environ, err := loadProviderEnviron(cfg, logger)
	if err != nil {
		return nil, err
	}
	if environ != nil {
		opts = append(opts, stage.WithEnviron(environ))
	}

	return stage.FromFile(cfg.Pipeline, opts...)
}

// loadProviderEnviron loads the WEBEXTRACT_* provider environment for the
// integration-test stage. Validation failures are fatal only when the
// pipeline selects integration testing for the configured branch.
func loadProviderEnviron(cfg *config.Config, logger *slog.Logger) ([]string, error) {
	env, err := config.LoadEnv()
	if err != nil {
		if !isEnvValidationError(err) {
			return nil, fmt.Errorf("failed to load provider environment: %w", err)
		}
		if integrationSelected(cfg.Pipeline, cfg.Branch) {
			return nil, fmt.Errorf("provider environment invalid and integration-test is selected for branch %q: %w", cfg.Branch, err)
		}
		logger.Warn("provider environment invalid; integration-test would not run with it",
			"error", err,
		)
		return nil, nil
	}

	return env.Environ(), nil
}

// isEnvValidationError reports whether err is a provider-environment
// validation failure rather than a resolution failure.
func isEnvValidationError(err error) bool {
	for _, sentinel := range []error{
		config.ErrInvalidProvider,
		config.ErrMissingAPIKey,
		config.ErrInvalidTemperature,
		config.ErrInvalidEnvValue,
		config.ErrNegativeDelay,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// integrationSelected reports whether the pipeline's integration-test
// stage would run for the given branch.
func integrationSelected(file *config.File, branch string) bool {
	stageCfg, ok := file.Stages[model.StageIntegration]
	if !ok {
		return false
	}
	if len(stageCfg.Branches) == 0 {
		return true
	}
	return slices.Contains(stageCfg.Branches, branch)
}

// runValidation executes the pipeline and reports the result.
func runValidation(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("starting validation run",
		"branch", cfg.Branch,
		"commit", cfg.Commit,
		"stages", len(cfg.Pipeline.Stages),
	)

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	rep := model.NewRunReport(cfg.Branch, cfg.Commit)

	fmt.Fprintf(cmd.OutOrStdout(), "Validating branch %s...\n", cfg.Branch)
	startTime := time.Now()

	scheduler := pipeline.NewScheduler(pipeline.WithSchedulerLogger(logger))
	runErr := scheduler.Submit(ctx, runner, rep)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("run aborted", "branch", cfg.Branch, "error", runErr)
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(cmd.OutOrStdout(), "Run completed in %s\n\n", elapsed.Round(time.Millisecond))

	if err := outputRunReport(cfg, rep); err != nil {
		logger.Error("report output failed", "error", err)
	}

	if err := saveRunReport(ctx, db, rep, logger); err != nil {
		logger.Error("failed to save run", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	if rep.Failed() {
		summary := model.Summarize(rep)
		return fmt.Errorf("validation %s: failed stages: %s",
			summary.Conclusion, strings.Join(summary.FailedStages, ", "))
	}

	return nil
}

// outputRunReport outputs the run report in the requested format.
func outputRunReport(cfg *config.Config, rep *model.RunReport) error {
	output, closer, err := reportDestination(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closer()

	writer := selectWriter(cfg, output)
	_, err = writer.WriteRun(rep)
	return err
}

// selectWriter picks the report writer matching the configured format.
func selectWriter(cfg *config.Config, output *os.File) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// reportDestination opens the report output destination.
// An empty path means stdout; the returned closer is a no-op for stdout.
func reportDestination(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports can carry command output with sensitive content, so keep
	// them owner-readable only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// saveRunReport saves the run to the history database if enabled.
// If db is nil, this function is a no-op. Saving is detached from the
// run's cancellation so interrupted and superseded runs still land in
// history.
func saveRunReport(ctx context.Context, db *database.HistoryDB, rep *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	if _, err := db.SaveRun(ctx, rep); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run saved to history", "branch", rep.Branch, "id", rep.ID)
	return nil
}
