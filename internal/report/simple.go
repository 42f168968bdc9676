package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/webextract/relgate/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables per-stage output dumps.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with captured stage output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteRun outputs the run report in human-readable format.
func (w *SimpleWriter) WriteRun(report *model.RunReport) (int, error) {
	summary := model.Summarize(report)

	var sb strings.Builder

	writeRule(&sb, "=")
	sb.WriteString("                      RELGATE VALIDATION RUN\n")
	writeRule(&sb, "=")
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Branch:     %s\n", report.Branch))
	if report.Commit != "" {
		sb.WriteString(fmt.Sprintf("Commit:     %s\n", report.Commit))
	}
	sb.WriteString(fmt.Sprintf("Started:    %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	if summary.Duration > 0 {
		sb.WriteString(fmt.Sprintf("Duration:   %s\n", summary.Duration.Round(10*time.Millisecond)))
	}
	if report.Superseded {
		sb.WriteString("Status:     SUPERSEDED by a newer run\n")
	} else if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Status:     ERROR - %s\n", report.ErrorMessage))
	}
	sb.WriteString("\n")

	writeRule(&sb, "-")
	sb.WriteString("STAGES\n")
	writeRule(&sb, "-")
	sb.WriteString("\n")

	for _, stage := range report.Stages {
		w.writeStage(&sb, stage)
	}

	writeRule(&sb, "=")
	sb.WriteString(fmt.Sprintf("RESULT: %s\n", strings.ToUpper(summary.Conclusion.String())))
	if len(summary.FailedStages) > 0 {
		sb.WriteString(fmt.Sprintf("Failed stages: %s\n", strings.Join(summary.FailedStages, ", ")))
	}
	if len(summary.NeutralChecks) > 0 {
		sb.WriteString(fmt.Sprintf("Advisory check failures (non-blocking): %s\n", strings.Join(summary.NeutralChecks, ", ")))
	}
	writeRule(&sb, "=")

	return w.output.Write([]byte(sb.String()))
}

// writeStage renders one stage block.
func (w *SimpleWriter) writeStage(sb *strings.Builder, stage *model.StageResult) {
	marker := conclusionMarker(stage.Conclusion)
	line := fmt.Sprintf("  [%s] %-18s %s", marker, stage.Name, stage.Conclusion)
	if stage.Duration > 0 {
		line += fmt.Sprintf(" (%s)", stage.Duration.Round(10*time.Millisecond))
	}
	if stage.SkipReason != "" {
		line += " - " + stage.SkipReason
	}
	sb.WriteString(line + "\n")

	for _, check := range stage.Checks {
		kind := "blocking"
		if !check.Blocking {
			kind = "advisory"
		}
		sb.WriteString(fmt.Sprintf("        %-16s %s (%s)\n", check.Name, check.Conclusion, kind))
	}
	for _, variant := range stage.Variants {
		sb.WriteString(fmt.Sprintf("        runtime %-8s %s\n", variant.Runtime, variant.Conclusion))
	}
	for _, artifact := range stage.Artifacts {
		sb.WriteString(fmt.Sprintf("        artifact %s (%d bytes, sha256 %s)\n",
			artifact.Path, artifact.Size, shortDigest(artifact.SHA256)))
	}

	if w.verbose && stage.Output != "" {
		for _, line := range strings.Split(strings.TrimRight(stage.Output, "\n"), "\n") {
			sb.WriteString("        | " + line + "\n")
		}
	}
}

// WriteDecision outputs the release decision in human-readable format.
func (w *SimpleWriter) WriteDecision(decision *model.ReleaseDecision) (int, error) {
	var sb strings.Builder

	writeRule(&sb, "=")
	sb.WriteString("                      RELGATE RELEASE DECISION\n")
	writeRule(&sb, "=")
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Ref:        %s (%s trigger)\n", decision.Ref, decision.Trigger))
	if !decision.Version.IsZero() {
		sb.WriteString(fmt.Sprintf("Version:    %s\n", decision.Version))
		sb.WriteString(fmt.Sprintf("Channel:    %s\n", decision.Channel))
	}
	if decision.RunConclusion != model.ConclusionPending {
		sb.WriteString(fmt.Sprintf("Pipeline:   %s\n", decision.RunConclusion))
	}
	sb.WriteString("\n")

	if decision.Allowed {
		sb.WriteString("DECISION: ALLOWED\n")
	} else {
		sb.WriteString("DECISION: REJECTED\n")
		sb.WriteString(fmt.Sprintf("Reason:   %s\n", decision.Reason))
	}
	writeRule(&sb, "=")

	return w.output.Write([]byte(sb.String()))
}

// writeRule writes a 70-column horizontal rule.
func writeRule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

// conclusionMarker returns a one-character indicator for terminal output.
func conclusionMarker(c model.Conclusion) string {
	switch c {
	case model.ConclusionSuccess:
		return "+"
	case model.ConclusionFailure:
		return "x"
	case model.ConclusionSkipped:
		return "-"
	case model.ConclusionCancelled:
		return "~"
	case model.ConclusionNeutral:
		return "?"
	default:
		return " "
	}
}

// shortDigest abbreviates a hex digest for display.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
