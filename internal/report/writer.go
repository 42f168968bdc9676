package report

import (
	"io"

	"github.com/webextract/relgate/internal/model"
)

// Writer defines the interface for report output.
// Implementations render run reports and release decisions in various
// formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// WriteRun outputs a pipeline run report to the configured
	// destination. Returns the number of bytes written and any error
	// encountered.
	WriteRun(report *model.RunReport) (int, error)

	// WriteDecision outputs a release-gate decision.
	WriteDecision(decision *model.ReleaseDecision) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteRun outputs the run report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteRun(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRun(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDecision outputs the release decision to all configured Writers.
func (m *MultiWriter) WriteDecision(decision *model.ReleaseDecision) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDecision(decision)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
