// Package logging adapts github.com/charmbracelet/log to ports.Logger. The
// scheduler and the reporter log through the ports.Logger seam;
// this package is the one concrete implementation engine callers construct
// and inject, alongside NoOpLogger for tests and NodeLogBuffer for deferring
// a single node's log lines until its outcome is known (see buffer.go).
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	cblog "github.com/charmbracelet/log"

	"github.com/riverglass/catalogflow/internal/ports"
)

// Options configures the charmbracelet/log adapter.
type Options struct {
	Writer       io.Writer
	Level        string
	TimeFormat   string
	ReportCaller bool
	Formatter    cblog.Formatter
	Layer        string
	Component    string
	Fields       map[string]interface{}
}

// Logger implements ports.Logger using charmbracelet/log.
type Logger struct {
	logger *cblog.Logger
	fields []interface{}
	layer  string
}

// New creates a Logger adapter with the supplied options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	staticFields := make([]interface{}, 0, 4)
	keys := make([]string, 0, len(opts.Fields))
	for k := range opts.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		staticFields = append(staticFields, k, opts.Fields[k])
	}

	base := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		TimeFormat:      opts.TimeFormat,
		ReportTimestamp: true,
		ReportCaller:    opts.ReportCaller,
		Formatter:       opts.Formatter,
		Fields:          staticFields,
	})

	var fields []interface{}
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}
	layer := opts.Layer
	if layer == "" {
		layer = "engine"
	}

	return &Logger{logger: base, fields: fields, layer: layer}, nil
}

// Debug emits a debug log entry.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.DebugLevel, msg, fields...)
}

// Info emits an info log entry.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.InfoLevel, msg, fields...)
}

// Warn emits a warning log entry.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.WarnLevel, msg, fields...)
}

// Error emits an error log entry.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.ErrorLevel, msg, fields...)
}

// With derives a new logger carrying fields on every subsequent call. The
// scheduler uses this to pin a node's name onto every log line the node
// itself emits, without the node implementation knowing about logging
// fields at all.
func (l *Logger) With(fields ...interface{}) ports.Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	next := make([]interface{}, len(l.fields), len(l.fields)+len(fields))
	copy(next, l.fields)
	next = append(next, fields...)
	return &Logger{logger: l.logger, fields: next, layer: l.layer}
}

func (l *Logger) log(ctx context.Context, level cblog.Level, msg string, fields ...interface{}) {
	if l == nil || l.logger == nil {
		return
	}
	payload := l.withRunCorrelation(ctx, append(dedupe(l.fields, fields), "layer", l.layer))

	switch level {
	case cblog.DebugLevel:
		l.logger.Debug(msg, payload...)
	case cblog.WarnLevel:
		l.logger.Warn(msg, payload...)
	case cblog.ErrorLevel:
		l.logger.Error(msg, payload...)
	default:
		l.logger.Info(msg, payload...)
	}
}

// withRunCorrelation appends the context's run id, if any, to payload. The
// run id is read from context rather than stored on the Logger because a
// single Logger instance is shared across an entire pipeline run, while the
// run id is stamped once per run by scheduler.Run, unless its caller already
// put one on the context (see ports.WithRunID and scheduler.Run).
func (l *Logger) withRunCorrelation(ctx context.Context, payload []interface{}) []interface{} {
	id := ports.RunID(ctx)
	if id == "" {
		return payload
	}
	return append(payload, "run_id", id)
}

// dedupe folds additions on top of base, keeping base's key order and
// letting a later value for the same key win — so a field set via With
// (e.g. "node_id") is not duplicated by an identical field passed at the
// call site.
func dedupe(base, additions []interface{}) []interface{} {
	order := make([]string, 0, len(base)/2+len(additions)/2)
	values := make(map[string]interface{}, len(order))

	set := func(pairs []interface{}) {
		for i := 0; i+1 < len(pairs); i += 2 {
			key, ok := pairs[i].(string)
			if !ok || key == "" {
				continue
			}
			if _, exists := values[key]; !exists {
				order = append(order, key)
			}
			values[key] = pairs[i+1]
		}
	}
	set(base)
	set(additions)

	out := make([]interface{}, 0, len(order)*2)
	for _, k := range order {
		out = append(out, k, values[k])
	}
	return out
}

// compile-time assurance
var _ ports.Logger = (*Logger)(nil)
