// Package catalog declares the catalog entry contract and the registry that
// owns entry identity for the lifetime of a run. Entries are opaque handles
// over a codec; the catalog never inspects the data a codec stores.
package catalog

import (
	"context"
	"reflect"

	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/codec"
)

// Entry is the non-generic handle every catalog entry satisfies. Engine
// components that need to hold entries of many payload types in one
// collection (the catalog registry, the producer map, the analyzer) operate
// against this interface; TypedEntry[T] narrows back to a concrete Go type
// for node and catalog-map authors.
type Entry interface {
	// Key is the entry's stable, catalog-unique identifier.
	Key() string
	// DataType is the reflect.Type of the payload T the entry carries.
	DataType() reflect.Type
	// Capability reports whether this entry supports Load, Save, or both.
	Capability() codec.Capability
	// Kind reports whether the entry is a dataset or a single object.
	Kind() codec.Kind
	// PreferredInspectionLevel is the hint an inspector uses by default.
	PreferredInspectionLevel() codec.InspectionLevel
	// Exists reports whether the entry's backing storage currently exists.
	Exists(ctx context.Context) (bool, error)
	// Inspector returns the entry's codec as a codec.Inspector, and false
	// if the codec does not support inspection at all (distinct from a
	// codec that implements Inspector but returns VerdictNotApplicable).
	Inspector() (codec.Inspector, bool)
}

// existsChecker is satisfied by every reference codec in this repo
// regardless of capability (MemoryObject, MemoryDataset, JSONFile,
// CSVDataset all expose Exists directly).
type existsChecker interface {
	Exists(ctx context.Context) (bool, error)
}

// TypedEntry is the typed accessor node and catalog-map authors use to call
// Load/Save against a specific Go payload type. It wraps a codec.Reader[T],
// codec.Writer[T], or codec.ReadWriter[T] along with the metadata every
// Entry exposes.
type TypedEntry[T any] struct {
	key                      string
	capability               codec.Capability
	kind                     codec.Kind
	preferredInspectionLevel codec.InspectionLevel
	reader                   codec.Reader[T]
	writer                   codec.Writer[T]
	exists                   existsChecker
	inspector                codec.Inspector
	filepather               filepathProvider
}

// filepathProvider is implemented by file-backed reference codecs
// (JSONFile, CSVDataset) so the DAG metadata exporter can report a
// filepath without depending on any concrete codec type.
type filepathProvider interface {
	Filepath() string
}

// NewEntry builds a TypedEntry bound to the given codec. c must implement at
// least one of codec.Reader[T] or codec.Writer[T] matching capability, plus
// Exists; codec.Inspector is used if the concrete codec implements it.
func NewEntry[T any](key string, c codec.Codec) *TypedEntry[T] {
	e := &TypedEntry[T]{
		key:                      key,
		capability:               c.Capability(),
		kind:                     c.Kind(),
		preferredInspectionLevel: c.PreferredInspectionLevel(),
	}
	if r, ok := c.(codec.Reader[T]); ok {
		e.reader = r
	}
	if w, ok := c.(codec.Writer[T]); ok {
		e.writer = w
	}
	if ex, ok := c.(existsChecker); ok {
		e.exists = ex
	}
	if insp, ok := c.(codec.Inspector); ok {
		e.inspector = insp
	}
	if fp, ok := c.(filepathProvider); ok {
		e.filepather = fp
	}
	return e
}

// Filepath returns the entry's backing file path and true if its codec is
// file-backed, or "", false otherwise (e.g. the in-memory reference codecs).
func (e *TypedEntry[T]) Filepath() (string, bool) {
	if e.filepather == nil {
		return "", false
	}
	return e.filepather.Filepath(), true
}

func (e *TypedEntry[T]) Key() string { return e.key }
func (e *TypedEntry[T]) DataType() reflect.Type { return reflect.TypeFor[T]() }
func (e *TypedEntry[T]) Capability() codec.Capability { return e.capability }
func (e *TypedEntry[T]) Kind() codec.Kind { return e.kind }
func (e *TypedEntry[T]) PreferredInspectionLevel() codec.InspectionLevel {
	return e.preferredInspectionLevel
}

func (e *TypedEntry[T]) Exists(ctx context.Context) (bool, error) {
	if e.exists == nil {
		return false, nil
	}
	return e.exists.Exists(ctx)
}

func (e *TypedEntry[T]) Inspector() (codec.Inspector, bool) {
	return e.inspector, e.inspector != nil
}

// Load reads the entry's payload. Returns a catalogerr MissingDataError if
// the backing storage does not exist, or a CodecError for any other
// failure (including calling Load on a write-only entry).
func (e *TypedEntry[T]) Load(ctx context.Context) (T, error) {
	var zero T
	if e.reader == nil {
		return zero, catalogerr.NewCodecError(e.key, "load", errUnsupportedLoad(e.key))
	}
	v, err := e.reader.Load(ctx)
	if err != nil {
		if codec.IsMissing(err) {
			return zero, catalogerr.NewMissingDataError(e.key, err)
		}
		return zero, catalogerr.NewCodecError(e.key, "load", err)
	}
	return v, nil
}

// Save writes the entry's payload. Returns a catalogerr CodecError on
// failure, including calling Save on a read-only entry.
func (e *TypedEntry[T]) Save(ctx context.Context, value T) error {
	if e.writer == nil {
		return catalogerr.NewCodecError(e.key, "save", errUnsupportedSave(e.key))
	}
	if err := e.writer.Save(ctx, value); err != nil {
		return catalogerr.NewCodecError(e.key, "save", err)
	}
	return nil
}

type unsupportedOpError struct {
	key string
	op  string
}

func (e unsupportedOpError) Error() string {
	return "catalog: " + e.op + " not supported on entry " + e.key
}

func errUnsupportedLoad(key string) error { return unsupportedOpError{key: key, op: "load"} }
func errUnsupportedSave(key string) error { return unsupportedOpError{key: key, op: "save"} }

// reservedKeyPrefix marks entries the dependency analyzer treats as
// non-data placeholders and ignores entirely when collecting referenced
// entries (spec §4.5 step 1).
const reservedKeyPrefix = "_nodata"

// IsReserved reports whether key is excluded from dependency analysis.
func IsReserved(key string) bool {
	return len(key) >= len(reservedKeyPrefix) && key[:len(reservedKeyPrefix)] == reservedKeyPrefix
}
