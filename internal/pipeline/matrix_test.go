package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webextract/relgate/internal/model"
)

// TestMatrixExecutorExecute tests fan-out, isolation, and result order.
func TestMatrixExecutorExecute(t *testing.T) {
	t.Parallel()

	t.Run("all variants pass in stable order", func(t *testing.T) {
		t.Parallel()

		runtimes := []string{"3.9", "3.10", "3.11", "3.12"}
		m := NewMatrixExecutor(WithMatrixLogger(quietLogger()))

		results, err := m.Execute(context.Background(), runtimes, func(_ context.Context, runtime string) model.VariantResult {
			return model.VariantResult{Runtime: runtime, Conclusion: model.ConclusionSuccess}
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(results) != len(runtimes) {
			t.Fatalf("got %d results, expected %d", len(results), len(runtimes))
		}
		for i, r := range results {
			if r.Runtime != runtimes[i] {
				t.Errorf("result %d: got runtime %q, expected %q", i, r.Runtime, runtimes[i])
			}
			if r.Conclusion != model.ConclusionSuccess {
				t.Errorf("variant %q: got %s, expected success", r.Runtime, r.Conclusion)
			}
		}
	})

	t.Run("one failure does not stop the others", func(t *testing.T) {
		t.Parallel()

		runtimes := []string{"3.9", "3.10", "3.11"}
		m := NewMatrixExecutor(WithMatrixLogger(quietLogger()))

		var ran atomic.Int32
		results, err := m.Execute(context.Background(), runtimes, func(_ context.Context, runtime string) model.VariantResult {
			ran.Add(1)
			if runtime == "3.10" {
				return model.VariantResult{Runtime: runtime, Conclusion: model.ConclusionFailure}
			}
			return model.VariantResult{Runtime: runtime, Conclusion: model.ConclusionSuccess}
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := ran.Load(); got != 3 {
			t.Errorf("got %d variants run, expected 3", got)
		}
		if results[1].Conclusion != model.ConclusionFailure {
			t.Errorf("got %s for failing variant, expected failure", results[1].Conclusion)
		}
		if results[0].Conclusion != model.ConclusionSuccess || results[2].Conclusion != model.ConclusionSuccess {
			t.Error("sibling variants should still pass")
		}
	})

	t.Run("concurrency limit is respected", func(t *testing.T) {
		t.Parallel()

		const limit = 2
		m := NewMatrixExecutor(
			WithMatrixLogger(quietLogger()),
			WithMatrixConcurrency(limit),
		)

		var (
			mu      sync.Mutex
			running int
			peak    int
		)
		runtimes := []string{"a", "b", "c", "d", "e", "f"}

		_, err := m.Execute(context.Background(), runtimes, func(_ context.Context, runtime string) model.VariantResult {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()

			return model.VariantResult{Runtime: runtime, Conclusion: model.ConclusionSuccess}
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if peak > limit {
			t.Errorf("got peak concurrency %d, expected at most %d", peak, limit)
		}
	})

	t.Run("empty matrix", func(t *testing.T) {
		t.Parallel()

		m := NewMatrixExecutor(WithMatrixLogger(quietLogger()))
		results, err := m.Execute(context.Background(), nil, func(_ context.Context, runtime string) model.VariantResult {
			t.Error("variant func should not be called")
			return model.VariantResult{}
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("got %d results, expected 0", len(results))
		}
	})
}
