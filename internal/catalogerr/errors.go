// Package catalogerr defines the error taxonomy shared by every layer of the
// engine: build-time structural failures, inspector validation failures, and
// the runtime errors a scheduler run can produce. Every error is a
// *DomainError* carrying an ErrorCode and a context map, so callers can branch
// on kind with errors.Is/errors.As without parsing messages.
package catalogerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies a DomainError. See spec §7 for the taxonomy this
// mirrors.
type ErrorCode string

const (
	CodeBuildError            ErrorCode = "build_error"
	CodeValidationError       ErrorCode = "validation_error"
	CodeMissingDataError      ErrorCode = "missing_data_error"
	CodeCodecError            ErrorCode = "codec_error"
	CodeNodeError             ErrorCode = "node_error"
	CodeInvalidOutputMapError ErrorCode = "invalid_output_map_error"
	CodeCanceled              ErrorCode = "canceled"
)

// DomainError is the single error type used across the engine. Context keys
// are kind-specific (e.g. "node_id", "entry_key", "cycle") and are rendered in
// Error() sorted by key for deterministic messages.
type DomainError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the wrapped cause, if any.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is a DomainError with the same Code, so callers
// can write `errors.Is(err, catalogerr.Sentinel(catalogerr.CodeMissingDataError))`.
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// Sentinel returns a bare DomainError usable only as an errors.Is comparison
// target for the given code.
func Sentinel(code ErrorCode) *DomainError {
	return &DomainError{Code: code}
}

// CodeOf extracts the ErrorCode from err, if err is or wraps a DomainError.
func CodeOf(err error) (ErrorCode, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

func newError(code ErrorCode, message string, err error, ctx map[string]interface{}) *DomainError {
	return &DomainError{Code: code, Message: message, Context: ctx, Err: err}
}

// NewBuildError reports a structural failure discovered while building a
// pipeline: duplicate node name, type mismatch, incomplete mapping, multiple
// producers, or a circular dependency. Always reported before execution.
func NewBuildError(message string, ctx map[string]interface{}) error {
	return newError(CodeBuildError, message, nil, ctx)
}

// NewValidationError reports an inspector failure. verdicts carries the
// per-entry failure payload (entry key -> reason); it is copied into Context
// under "verdicts" so callers inspecting the error can enumerate every
// failing entry, not just the first.
func NewValidationError(message string, verdicts map[string]string) error {
	ctx := map[string]interface{}{"verdicts": verdicts}
	return newError(CodeValidationError, message, nil, ctx)
}

// NewMissingDataError reports that an input entry's storage does not exist at
// read time.
func NewMissingDataError(entryKey string, err error) error {
	return newError(CodeMissingDataError, "entry storage not found", err, map[string]interface{}{
		"entry_key": entryKey,
	})
}

// NewCodecError reports an unsupported codec operation or a format/IO
// failure.
func NewCodecError(entryKey, operation string, err error) error {
	return newError(CodeCodecError, "codec operation failed", err, map[string]interface{}{
		"entry_key": entryKey,
		"operation": operation,
	})
}

// NewNodeError wraps any error surfaced by a user node's Transform.
func NewNodeError(nodeID string, err error) error {
	return newError(CodeNodeError, "node transform failed", err, map[string]interface{}{
		"node_id": nodeID,
	})
}

// NewInvalidOutputMapError reports an attempt to save through a catalog-map
// that contains parameter bindings.
func NewInvalidOutputMapError(nodeID string, paramFields []string) error {
	return newError(CodeInvalidOutputMapError, "output map contains parameter-bound fields", nil, map[string]interface{}{
		"node_id":      nodeID,
		"param_fields": paramFields,
	})
}

// NewCanceled reports cooperative cancellation observed mid-run.
func NewCanceled(stage string) error {
	return newError(CodeCanceled, "run canceled", nil, map[string]interface{}{
		"stage": stage,
	})
}
