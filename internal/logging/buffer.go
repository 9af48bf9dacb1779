package logging

import (
	"context"
	"sync"

	cblog "github.com/charmbracelet/log"

	"github.com/riverglass/catalogflow/internal/ports"
)

// bufferedCall is one log call captured by a NodeLogBuffer before the
// node's outcome is known.
type bufferedCall struct {
	ctx    context.Context
	level  cblog.Level
	msg    string
	fields []interface{}
}

// NodeLogBuffer implements ports.Logger by holding every call in memory
// instead of emitting it immediately. The scheduler hands a node one of
// these instead of its real logger, so a node's log lines (spec places no
// requirement on node-level logging itself, but nodes may still log through
// ports.Logger) are only forwarded via Flush once the node's success or
// failure is known, tagged with that outcome rather than interleaved with
// the scheduler's own "node starting"/"node finished" lines mid-run.
type NodeLogBuffer struct {
	log    *callLog
	fields []interface{}
}

// callLog is the call list a buffer shares with every buffer derived from it
// via With.
type callLog struct {
	mu    sync.Mutex
	calls []bufferedCall
}

// NewNodeLogBuffer returns an empty buffer.
func NewNodeLogBuffer() *NodeLogBuffer {
	return &NodeLogBuffer{log: &callLog{}}
}

// Debug buffers a debug call.
func (b *NodeLogBuffer) Debug(ctx context.Context, msg string, fields ...interface{}) {
	b.record(ctx, cblog.DebugLevel, msg, fields)
}

// Info buffers an info call.
func (b *NodeLogBuffer) Info(ctx context.Context, msg string, fields ...interface{}) {
	b.record(ctx, cblog.InfoLevel, msg, fields)
}

// Warn buffers a warning call.
func (b *NodeLogBuffer) Warn(ctx context.Context, msg string, fields ...interface{}) {
	b.record(ctx, cblog.WarnLevel, msg, fields)
}

// Error buffers an error call.
func (b *NodeLogBuffer) Error(ctx context.Context, msg string, fields ...interface{}) {
	b.record(ctx, cblog.ErrorLevel, msg, fields)
}

// With returns a child buffer sharing the same backing call slice but
// prefixing every subsequent call with fields.
func (b *NodeLogBuffer) With(fields ...interface{}) ports.Logger {
	next := make([]interface{}, len(b.fields), len(b.fields)+len(fields))
	copy(next, b.fields)
	return &NodeLogBuffer{log: b.log, fields: append(next, fields...)}
}

func (b *NodeLogBuffer) record(ctx context.Context, level cblog.Level, msg string, fields []interface{}) {
	payload := append(append([]interface{}{}, b.fields...), fields...)
	b.log.mu.Lock()
	defer b.log.mu.Unlock()
	b.log.calls = append(b.log.calls, bufferedCall{ctx: ctx, level: level, msg: msg, fields: payload})
}

// Flush replays every buffered call into delegate, tagging each with the
// node's name and whether it succeeded, then clears the buffer. Safe to
// call on an empty buffer (a node that never logged).
func (b *NodeLogBuffer) Flush(delegate ports.Logger, nodeName string, success bool) {
	b.log.mu.Lock()
	calls := b.log.calls
	b.log.calls = nil
	b.log.mu.Unlock()
	if delegate == nil || len(calls) == 0 {
		return
	}
	tagged := delegate.With("node_id", nodeName, "success", success)
	for _, c := range calls {
		switch c.level {
		case cblog.DebugLevel:
			tagged.Debug(c.ctx, c.msg, c.fields...)
		case cblog.WarnLevel:
			tagged.Warn(c.ctx, c.msg, c.fields...)
		case cblog.ErrorLevel:
			tagged.Error(c.ctx, c.msg, c.fields...)
		default:
			tagged.Info(c.ctx, c.msg, c.fields...)
		}
	}
}
