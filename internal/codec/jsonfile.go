package codec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// JSONFile is a reference file-backed codec storing a dataset of T as a
// single JSON array on disk. Writes are atomic: a sibling temp file is
// written and fsynced, then renamed over the target; the temp file is
// removed on any failure path and the parent directory is created lazily
// (spec §4.1 invariants).
type JSONFile[T any] struct {
	path       string
	capability Capability
}

// NewJSONFile constructs a codec bound to path with the given capability.
func NewJSONFile[T any](path string, capability Capability) *JSONFile[T] {
	return &JSONFile[T]{path: path, capability: capability}
}

// Filepath returns the backing file's path, for the DAG metadata exporter.
func (f *JSONFile[T]) Filepath() string { return f.path }

func (f *JSONFile[T]) Capability() Capability { return f.capability }
func (f *JSONFile[T]) Kind() Kind { return Dataset }
func (f *JSONFile[T]) PreferredInspectionLevel() InspectionLevel { return InspectShallow }

func (f *JSONFile[T]) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *JSONFile[T]) Load(ctx context.Context) ([]T, error) {
	if !f.capability.CanRead() {
		return nil, errUnsupported("load not supported: write-only codec")
	}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, errMissing("file does not exist: " + f.path)
	}
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *JSONFile[T]) Save(ctx context.Context, value []T) error {
	if !f.capability.CanWrite() {
		return errUnsupported("save not supported: read-only codec")
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(f.path, data)
}

// Inspect performs a shallow or deep structural check: shallow decodes the
// top-level JSON array without validating elements beyond unmarshal
// success; deep additionally walks every record (for []T that is the same
// work, since json.Unmarshal validates every element — deep and shallow
// only diverge meaningfully for codecs like CSV that can skip rows).
func (f *JSONFile[T]) Inspect(ctx context.Context, level InspectionLevel) (Verdict, error) {
	exists, err := f.Exists(ctx)
	if err != nil {
		return Verdict{}, err
	}
	if !exists {
		return Verdict{Status: VerdictFileMissing}, nil
	}
	if level == InspectNone {
		return Verdict{Status: VerdictNotApplicable}, nil
	}
	if _, err := f.Load(ctx); err != nil {
		return Verdict{Status: VerdictFormatInvalid, Reason: err.Error()}, nil
	}
	return Verdict{Status: VerdictOK}, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".catalogflow-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

type unsupportedError string

func (e unsupportedError) Error() string { return string(e) }

func errUnsupported(msg string) error { return unsupportedError(msg) }

// IsUnsupported reports whether err signals an unsupported codec operation
// (e.g. save on a read-only entry).
func IsUnsupported(err error) bool {
	_, ok := err.(unsupportedError)
	return ok
}
