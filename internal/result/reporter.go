package result

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/riverglass/catalogflow/internal/ports"
)

// Reporter consumes a PipelineResult and writes human-readable output
// through a logger (spec §4.9).
type Reporter interface {
	Report(ctx context.Context, logger ports.Logger, pr *PipelineResult)
}

// maxStackLines bounds the error excerpt printed for a failing node, so one
// deeply wrapped error cannot flood the report (spec §4.9: "bounded stack
// excerpt").
const maxStackLines = 10

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	bannerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// TextReporter renders a PipelineResult as a colored, line-oriented report:
// a banner, overall status, total duration, and one line per node.
type TextReporter struct{}

// NewTextReporter constructs the default text reporter.
func NewTextReporter() *TextReporter { return &TextReporter{} }

// Report writes the banner, overall status, and per-node lines through
// logger.Info, with the failing node's error excerpt (if any) through
// logger.Error.
func (r *TextReporter) Report(ctx context.Context, logger ports.Logger, pr *PipelineResult) {
	logger.Info(ctx, bannerStyle.Render(fmt.Sprintf("pipeline %q", pr.PipelineName)))

	status := successStyle.Render("SUCCESS")
	if !pr.Success {
		status = failureStyle.Render("FAILURE")
	}
	logger.Info(ctx, fmt.Sprintf("status: %s  duration: %s", status, pr.ExecutionTime))

	for _, n := range pr.Nodes {
		mark := successStyle.Render("✓")
		if !n.Success {
			mark = failureStyle.Render("✗")
		}
		logger.Info(ctx, fmt.Sprintf("  %s %s  %s  in=%d out=%d",
			mark, n.Name, n.ExecutionTime, n.InputCount, n.OutputCount))

		if !n.Success && n.Err != nil {
			logger.Error(ctx, dimStyle.Render(excerpt(n.Err)))
		}
	}

	if pr.Err != nil && (len(pr.Nodes) == 0 || pr.Nodes[len(pr.Nodes)-1].Success) {
		// Failure originated outside any node (validation or cancellation).
		logger.Error(ctx, dimStyle.Render(excerpt(pr.Err)))
	}
}

// excerpt keeps at most maxStackLines lines of err's message; when lines
// were cut, a final "..." line marks the truncation.
func excerpt(err error) string {
	lines := strings.Split(err.Error(), "\n")
	if len(lines) > maxStackLines {
		lines = append(lines[:maxStackLines], "...")
	}
	return strings.Join(lines, "\n")
}
