package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/webextract/relgate/internal/model"
)

// ErrSuperseded is the cancellation cause recorded when a newer run for
// the same branch replaces an in-flight one.
var ErrSuperseded = errors.New("run superseded by newer submission")

// Scheduler serializes pipeline runs per branch. At most one run per
// branch executes at a time; submitting a run for a branch cancels any
// in-flight run for that branch and waits for it to unwind before the
// newer run starts.
//
// Design decision: The newer submission always wins. A run validates a
// commit, and once a newer commit exists on the branch the older verdict
// is moot, so finishing the older run would only waste the matrix slots.
type Scheduler struct {
	// active maps branch names to their in-flight runs.
	active map[string]*activeRun

	// mu guards active.
	mu sync.Mutex

	// logger is used for scheduling decisions.
	logger *slog.Logger
}

// activeRun tracks one in-flight run for supersede handling.
type activeRun struct {
	// cancel tears the run down with ErrSuperseded as the cause.
	cancel context.CancelCauseFunc

	// done closes when the run has fully unwound.
	done chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets a custom logger for the scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		active: make(map[string]*activeRun),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Submit executes the report's run on the given runner, superseding any
// in-flight run for the same branch first. It blocks until the run
// finishes and returns the runner's error; a run that was itself
// superseded returns context.Canceled with the report marked Superseded.
func (s *Scheduler) Submit(ctx context.Context, runner *Runner, report *model.RunReport) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	current := &activeRun{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	previous := s.active[report.Branch]
	s.active[report.Branch] = current
	s.mu.Unlock()

	if previous != nil {
		s.logger.Info("superseding in-flight run",
			"branch", report.Branch,
			"commit", report.Commit,
		)
		previous.cancel(ErrSuperseded)
		<-previous.done
	}

	defer func() {
		close(current.done)
		cancel(nil)

		s.mu.Lock()
		if s.active[report.Branch] == current {
			delete(s.active, report.Branch)
		}
		s.mu.Unlock()
	}()

	return runner.Execute(runCtx, report)
}

// Busy reports whether a run is in flight for the branch.
func (s *Scheduler) Busy(branch string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[branch]
	return ok
}
