package result_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	cblog "github.com/charmbracelet/log"
	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/logging"
	"github.com/riverglass/catalogflow/internal/result"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer) *logging.Logger {
	t.Helper()
	l, err := logging.New(logging.Options{Writer: buf, Formatter: cblog.TextFormatter})
	require.NoError(t, err)
	return l
}

func TestTextReporterReportsSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)

	pr := &result.PipelineResult{
		PipelineName:  "doubling",
		Success:       true,
		ExecutionTime: 12 * time.Millisecond,
		Nodes: []result.NodeResult{
			{Name: "stage1", Success: true, ExecutionTime: 5 * time.Millisecond, InputCount: 3, OutputCount: 3},
			{Name: "stage2", Success: true, ExecutionTime: 7 * time.Millisecond, InputCount: 3, OutputCount: 3},
		},
	}

	result.NewTextReporter().Report(context.Background(), logger, pr)

	out := buf.String()
	require.Contains(t, out, "doubling")
	require.Contains(t, out, "stage1")
	require.Contains(t, out, "stage2")
	require.Contains(t, out, "SUCCESS")
}

func TestTextReporterReportsFailingNodeWithExcerpt(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)

	nodeErr := catalogerr.NewNodeError("broken", errors.New("boom"))
	pr := &result.PipelineResult{
		PipelineName:  "p",
		Success:       false,
		Err:           nodeErr,
		ExecutionTime: 3 * time.Millisecond,
		Nodes: []result.NodeResult{
			{Name: "broken", Success: false, Err: nodeErr, ExecutionTime: 3 * time.Millisecond},
		},
	}

	result.NewTextReporter().Report(context.Background(), logger, pr)

	out := buf.String()
	require.Contains(t, out, "broken")
	require.Contains(t, out, "boom")
	require.Contains(t, out, "FAILURE")
}

func TestExcerptTruncatesLongErrorMessages(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "frame")
	}
	longErr := errors.New(strings.Join(lines, "\n"))

	var buf bytes.Buffer
	logger := newTestLogger(t, &buf)
	pr := &result.PipelineResult{
		PipelineName: "p",
		Success:      false,
		Nodes: []result.NodeResult{
			{Name: "broken", Success: false, Err: longErr},
		},
	}

	result.NewTextReporter().Report(context.Background(), logger, pr)
	require.LessOrEqual(t, strings.Count(buf.String(), "frame"), 10)
}
