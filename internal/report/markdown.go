package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/webextract/relgate/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for CI job summaries and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteRun outputs the run report in Markdown format.
func (w *MarkdownWriter) WriteRun(report *model.RunReport) (int, error) {
	summary := model.Summarize(report)
	md := markdown.NewMarkdown(w.output)

	w.writeRunHeader(md, report, summary)
	w.writeStageTable(md, report)
	w.writeConclusionChart(md, summary)
	w.writeStageDetails(md, report)
	w.writeRunAlert(md, summary)

	return len(md.String()), md.Build()
}

// writeRunHeader writes the run header with basic information.
func (w *MarkdownWriter) writeRunHeader(md *markdown.Markdown, report *model.RunReport, summary *model.RunSummary) {
	md.H1("Validation Run")
	md.PlainText("")

	commit := report.Commit
	if commit == "" {
		commit = "-"
	}
	status := "Complete"
	if report.Superseded {
		status = "Superseded by a newer run"
	} else if report.ErrorMessage != "" {
		status = "Error - " + report.ErrorMessage
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Branch", "`" + report.Branch + "`"},
			{"Commit", "`" + commit + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(10 * time.Millisecond).String()},
			{"Status", status},
			{"Conclusion", conclusionBadge(summary.Conclusion)},
		},
	})
	md.PlainText("")
}

// writeStageTable writes the per-stage conclusion table.
func (w *MarkdownWriter) writeStageTable(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Stages")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Stages))
	for _, stage := range report.Stages {
		required := "yes"
		if !stage.Required {
			required = "no"
		}
		detail := stage.SkipReason
		switch {
		case len(stage.Checks) > 0:
			detail = fmt.Sprintf("%d checks", len(stage.Checks))
		case len(stage.Variants) > 0:
			detail = fmt.Sprintf("%d runtime variants", len(stage.Variants))
		case len(stage.Artifacts) > 0:
			detail = fmt.Sprintf("%d artifacts", len(stage.Artifacts))
		}
		if detail == "" {
			detail = "-"
		}

		rows = append(rows, []string{
			stage.Name,
			required,
			conclusionBadge(stage.Conclusion),
			stage.Duration.Round(10 * time.Millisecond).String(),
			detail,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Stage", "Required", "Conclusion", "Duration", "Details"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeConclusionChart writes a mermaid pie chart of stage conclusions.
func (w *MarkdownWriter) writeConclusionChart(md *markdown.Markdown, summary *model.RunSummary) {
	total := summary.SuccessCount + summary.FailureCount + summary.SkippedCount + summary.CancelledCount
	if total == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Stage Conclusions"),
		piechart.WithShowData(true),
	)

	if summary.SuccessCount > 0 {
		chart.LabelAndIntValue("Success", uint64(summary.SuccessCount))
	}
	if summary.FailureCount > 0 {
		chart.LabelAndIntValue("Failure", uint64(summary.FailureCount))
	}
	if summary.SkippedCount > 0 {
		chart.LabelAndIntValue("Skipped", uint64(summary.SkippedCount))
	}
	if summary.CancelledCount > 0 {
		chart.LabelAndIntValue("Cancelled", uint64(summary.CancelledCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeStageDetails writes check, variant, and artifact tables for stages
// that have them.
func (w *MarkdownWriter) writeStageDetails(md *markdown.Markdown, report *model.RunReport) {
	for _, stage := range report.Stages {
		if len(stage.Checks) == 0 && len(stage.Variants) == 0 && len(stage.Artifacts) == 0 {
			continue
		}

		md.H2(titleCase(stage.Name))
		md.PlainText("")

		if len(stage.Checks) > 0 {
			rows := make([][]string, len(stage.Checks))
			for i, check := range stage.Checks {
				kind := "blocking"
				if !check.Blocking {
					kind = "advisory"
				}
				rows[i] = []string{
					check.Name,
					kind,
					conclusionBadge(check.Conclusion),
					check.Duration.Round(10 * time.Millisecond).String(),
				}
			}
			md.Table(markdown.TableSet{
				Header: []string{"Check", "Kind", "Conclusion", "Duration"},
				Rows:   rows,
			})
			md.PlainText("")
		}

		if len(stage.Variants) > 0 {
			rows := make([][]string, len(stage.Variants))
			for i, variant := range stage.Variants {
				rows[i] = []string{
					"`" + variant.Runtime + "`",
					conclusionBadge(variant.Conclusion),
					variant.Duration.Round(10 * time.Millisecond).String(),
				}
			}
			md.Table(markdown.TableSet{
				Header: []string{"Runtime", "Conclusion", "Duration"},
				Rows:   rows,
			})
			md.PlainText("")
		}

		if len(stage.Artifacts) > 0 {
			rows := make([][]string, len(stage.Artifacts))
			for i, artifact := range stage.Artifacts {
				rows[i] = []string{
					"`" + artifact.Path + "`",
					strconv.FormatInt(artifact.Size, 10),
					"`" + shortDigest(artifact.SHA256) + "`",
				}
			}
			md.Table(markdown.TableSet{
				Header: []string{"Artifact", "Size (bytes)", "SHA-256"},
				Rows:   rows,
			})
			md.PlainText("")
		}
	}
}

// writeRunAlert writes an appropriate alert based on the run verdict.
func (w *MarkdownWriter) writeRunAlert(md *markdown.Markdown, summary *model.RunSummary) {
	switch summary.Conclusion {
	case model.ConclusionFailure:
		md.Cautionf("Validation failed. Failed stages: %s.", strings.Join(summary.FailedStages, ", "))
	case model.ConclusionCancelled:
		md.Warning("The run was cancelled before completing.")
	default:
		if len(summary.NeutralChecks) > 0 {
			md.Notef("All required stages passed. Advisory (non-blocking) check failures: %s.", strings.Join(summary.NeutralChecks, ", "))
		} else {
			md.Tip("All required stages passed.")
		}
	}
	md.PlainText("")
}

// WriteDecision outputs the release decision in Markdown format.
func (w *MarkdownWriter) WriteDecision(decision *model.ReleaseDecision) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Release Decision")
	md.PlainText("")

	version := "-"
	channel := "-"
	if !decision.Version.IsZero() {
		version = "`" + decision.Version.String() + "`"
		channel = decision.Channel.String()
	}
	verdict := "Rejected"
	if decision.Allowed {
		verdict = "Allowed"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Ref", "`" + decision.Ref + "`"},
			{"Trigger", decision.Trigger.String()},
			{"Version", version},
			{"Channel", channel},
			{"Pipeline", conclusionBadge(decision.RunConclusion)},
			{"Decided", decision.DecidedAt.Format("2006-01-02 15:04:05 MST")},
			{"Verdict", verdict},
		},
	})
	md.PlainText("")

	if decision.Allowed {
		md.Tipf("Release %s may be published on the %s channel.", decision.Version, decision.Channel)
	} else {
		md.Cautionf("Release rejected: %s", decision.Reason)
	}
	md.PlainText("")

	return len(md.String()), md.Build()
}

// conclusionBadge maps a conclusion to a badge-like cell value.
func conclusionBadge(c model.Conclusion) string {
	switch c {
	case model.ConclusionSuccess:
		return "✅ success"
	case model.ConclusionFailure:
		return "❌ failure"
	case model.ConclusionSkipped:
		return "⏭️ skipped"
	case model.ConclusionCancelled:
		return "🚫 cancelled"
	case model.ConclusionNeutral:
		return "⚪ neutral"
	default:
		return "⏳ pending"
	}
}

// titleCase converts a stage name like "code-quality" into "Code Quality".
func titleCase(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
