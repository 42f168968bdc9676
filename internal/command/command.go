package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrCommandStart is returned when a command cannot be started at all,
// as opposed to running and exiting non-zero.
var ErrCommandStart = errors.New("command could not be started")

// truncationNotice is appended to output that exceeded the capture limit.
const truncationNotice = "\n... [output truncated]"

// Result holds the outcome of a single command execution.
// A non-zero ExitCode is not an error at this layer; callers decide
// whether a failing command fails the surrounding stage or check.
type Result struct {
	// ExitCode is the process exit code. -1 when the process was
	// killed before exiting normally (e.g. timeout).
	ExitCode int

	// Output is the combined stdout and stderr, truncated to the
	// configured limit.
	Output string

	// Duration is the wall-clock execution time.
	Duration time.Duration

	// TimedOut reports whether the command was killed because its
	// context deadline expired.
	TimedOut bool
}

// Success reports whether the command exited with code zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes shell scripts as subprocesses.
// A single Runner is safe for concurrent use; each Run call spawns an
// independent process.
type Runner struct {
	// shell is the interpreter invoked with -c.
	shell string

	// workDir is the working directory for spawned processes.
	// Empty means the current process working directory.
	workDir string

	// extraEnv is appended to the inherited process environment.
	extraEnv []string

	// maxOutput caps the captured combined output in bytes.
	maxOutput int

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell sets the shell used to interpret scripts.
func WithShell(shell string) Option {
	return func(r *Runner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// WithWorkDir sets the working directory for spawned processes.
func WithWorkDir(dir string) Option {
	return func(r *Runner) {
		r.workDir = dir
	}
}

// WithEnv appends KEY=value pairs to the inherited environment.
// Later entries override earlier ones with the same key.
func WithEnv(env []string) Option {
	return func(r *Runner) {
		r.extraEnv = append(r.extraEnv, env...)
	}
}

// WithMaxOutput caps the captured combined output in bytes.
func WithMaxOutput(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// DefaultMaxOutput is the default capture limit for combined output.
const DefaultMaxOutput = 16 * 1024

// New creates a Runner with the given options.
func New(opts ...Option) *Runner {
	r := &Runner{
		shell:     "/bin/sh",
		maxOutput: DefaultMaxOutput,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run executes script through the configured shell and waits for it to
// finish. The context bounds the execution; an expired deadline kills the
// process and is reported via Result.TimedOut rather than an error.
//
// Design decision: non-zero exit codes return a nil error. The pipeline
// needs the captured output and exit code of failing commands to record
// them in stage results, so only failures to launch the process at all
// surface as errors.
func (r *Runner) Run(ctx context.Context, script string, extraEnv ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", script)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), r.extraEnv...)
	cmd.Env = append(cmd.Env, extraEnv...)

	out := newCapWriter(r.maxOutput)
	cmd.Stdout = out
	cmd.Stderr = out

	r.logger.Debug("running command",
		"shell", r.shell,
		"script", script,
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommandStart, err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	result := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   out.String(),
		Duration: elapsed,
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return result, fmt.Errorf("failed to wait for command: %w", waitErr)
		}
	}

	r.logger.Debug("command finished",
		"exit_code", result.ExitCode,
		"duration", elapsed,
		"timed_out", result.TimedOut,
	)

	return result, nil
}

// capWriter captures writes up to a fixed byte limit.
// It is safe for concurrent use because stdout and stderr share it.
type capWriter struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCapWriter(limit int) *capWriter {
	return &capWriter{limit: limit}
}

// Write implements io.Writer. Bytes beyond the limit are discarded but
// the write still reports full success so the child process never sees
// a write error.
func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if remaining := w.limit - len(w.buf); remaining > 0 {
		if len(p) > remaining {
			w.buf = append(w.buf, p[:remaining]...)
			w.truncated = true
		} else {
			w.buf = append(w.buf, p...)
		}
	} else if len(p) > 0 {
		w.truncated = true
	}

	return len(p), nil
}

// String returns the captured output, with a notice when truncated.
func (w *capWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.truncated {
		return string(w.buf) + truncationNotice
	}
	return string(w.buf)
}
