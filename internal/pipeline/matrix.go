package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webextract/relgate/internal/model"
	"golang.org/x/sync/errgroup"
)

// RuntimeEnvVar is the variable each matrix variant receives so the stage
// command can select its runtime version.
const RuntimeEnvVar = "RELGATE_RUNTIME"

// VariantFunc executes the stage command for one runtime variant and
// returns its result. Implementations must be safe for concurrent use;
// variants share nothing.
type VariantFunc func(ctx context.Context, runtime string) model.VariantResult

// MatrixExecutor runs the same stage command across multiple runtime
// variants concurrently. It uses errgroup to manage goroutines and respect
// the concurrency limit.
//
// Design decision: We use a separate MatrixExecutor rather than putting
// fan-out in the Runner because:
// 1. It keeps the Runner focused on sequential stage ordering
// 2. Only matrix stages need concurrency; other stages are single commands
// 3. Variant isolation (no shared mutable state) is enforced in one place
type MatrixExecutor struct {
	// concurrency is the maximum number of variants running at once.
	concurrency int

	// logger is used for variant-level logging.
	logger *slog.Logger
}

// MatrixOption configures a MatrixExecutor.
type MatrixOption func(*MatrixExecutor)

// WithMatrixLogger sets a custom logger for matrix execution.
func WithMatrixLogger(logger *slog.Logger) MatrixOption {
	return func(m *MatrixExecutor) {
		m.logger = logger
	}
}

// WithMatrixConcurrency sets the maximum number of concurrent variants.
// Default is 4 if not specified.
func WithMatrixConcurrency(n int) MatrixOption {
	return func(m *MatrixExecutor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// NewMatrixExecutor creates a new MatrixExecutor.
func NewMatrixExecutor(opts ...MatrixOption) *MatrixExecutor {
	m := &MatrixExecutor{
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m
}

// Execute runs fn once per runtime, at most 'concurrency' variants at a
// time, and returns results in the order of the runtimes slice.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Variant failures are recorded in their results and never abort the
// other variants; the error return only reports cancellation.
func (m *MatrixExecutor) Execute(ctx context.Context, runtimes []string, fn VariantFunc) ([]model.VariantResult, error) {
	m.logger.Info("starting matrix execution",
		"variants", len(runtimes),
		"concurrency", m.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results to keep variant order stable.
	results := make([]model.VariantResult, len(runtimes))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, runtime := range runtimes {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				mu.Lock()
				results[i] = model.VariantResult{
					Runtime:    runtime,
					Conclusion: model.ConclusionCancelled,
				}
				mu.Unlock()
				return ctx.Err()
			default:
			}

			m.logger.Info("running variant",
				"runtime", runtime,
				"index", i+1,
				"total", len(runtimes),
			)

			result := fn(ctx, runtime)

			mu.Lock()
			results[i] = result
			mu.Unlock()

			if result.Conclusion != model.ConclusionSuccess {
				m.logger.Warn("variant did not pass",
					"runtime", runtime,
					"conclusion", result.Conclusion.String(),
				)
				// Failures stay in the result; other variants keep
				// running so the report covers the whole matrix.
				return nil
			}

			m.logger.Debug("variant passed",
				"runtime", runtime,
			)

			return nil
		})
	}

	err := g.Wait()

	m.logger.Info("matrix execution complete",
		"variants", len(runtimes),
		"elapsed", time.Since(startTime),
	)

	return results, err
}
