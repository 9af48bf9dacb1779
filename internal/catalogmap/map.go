// Package catalogmap implements the two catalog-map modes a pipeline node's
// inputs and outputs bind through: pass-through (a single catalog entry
// stands in directly for the node's input/output type) and mapped (named
// properties of a structural schema bind individually to catalog entries
// or literal parameter values).
package catalogmap

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/ports"
)

// Erased is the reflection-erased form of Map[S]: the pipeline builder and
// scheduler hold a node's inputs/outputs as a list of Erased maps since
// different nodes bind different schema types S. SchemaType lets the
// builder verify a map's S matches the node's declared input/output type
// without either side needing runtime generic-argument walking.
type Erased interface {
	SchemaType() reflect.Type
	Entries() []catalog.Entry
	RequiredUnmapped() []string
	Load(ctx context.Context) ([]interface{}, error)
	Save(ctx context.Context, values []interface{}) error
}

type erasedMap[S any] struct {
	inner Map[S]
}

// Erase wraps a typed Map[S] into its capability-erased form.
func Erase[S any](m Map[S]) Erased {
	return &erasedMap[S]{inner: m}
}

func (e *erasedMap[S]) SchemaType() reflect.Type   { return reflect.TypeFor[S]() }
func (e *erasedMap[S]) Entries() []catalog.Entry   { return e.inner.Entries() }
func (e *erasedMap[S]) RequiredUnmapped() []string { return e.inner.RequiredUnmapped() }

func (e *erasedMap[S]) Load(ctx context.Context) ([]interface{}, error) {
	values, err := e.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out, nil
}

func (e *erasedMap[S]) Save(ctx context.Context, values []interface{}) error {
	typed := make([]S, len(values))
	for i, v := range values {
		t, ok := v.(S)
		if !ok {
			return fmt.Errorf("catalogmap: save value %d has unexpected type %T", i, v)
		}
		typed[i] = t
	}
	return e.inner.Save(ctx, typed)
}

// Map is the common contract a pipeline node's input/output slot is bound
// through, whichever mode backs it.
type Map[S any] interface {
	// Load yields the sequence of S the node transform observes. For
	// pass-through this is the full dataset (or the wrapped single
	// object); for mapped it is always a one-element sequence (spec §9,
	// "mapped-input singleton convention").
	Load(ctx context.Context) ([]S, error)
	// Save persists values produced by the node. Pass-through writes the
	// full dataset through to the bound entry; mapped extracts each
	// entry-bound property from the single value and saves it
	// individually.
	Save(ctx context.Context, values []S) error
	// RequiredUnmapped lists required schema fields with no binding yet.
	// Always empty for PassThrough; checked by the pipeline builder's
	// Register call.
	RequiredUnmapped() []string
	// Entries returns every catalog entry this map touches, expanded for
	// the dependency analyzer (spec §4.5 step 1).
	Entries() []catalog.Entry
}

// PassThroughDataset wraps a single dataset entry directly: used when a
// node's input or output type is itself the dataset's element type.
type PassThroughDataset[S any] struct {
	entry *catalog.TypedEntry[[]S]
}

// NewPassThroughDataset constructs a pass-through map over a dataset entry.
func NewPassThroughDataset[S any](entry *catalog.TypedEntry[[]S]) *PassThroughDataset[S] {
	return &PassThroughDataset[S]{entry: entry}
}

func (p *PassThroughDataset[S]) Load(ctx context.Context) ([]S, error) {
	return p.entry.Load(ctx)
}

func (p *PassThroughDataset[S]) Save(ctx context.Context, values []S) error {
	return p.entry.Save(ctx, values)
}

func (p *PassThroughDataset[S]) RequiredUnmapped() []string { return nil }

func (p *PassThroughDataset[S]) Entries() []catalog.Entry {
	return []catalog.Entry{p.entry}
}

// PassThroughObject wraps a single object entry, presenting it to the node
// as a one-element sequence (spec §4.1: "wraps the single object as a
// one-element sequence of T").
type PassThroughObject[S any] struct {
	entry *catalog.TypedEntry[S]
}

// NewPassThroughObject constructs a pass-through map over an object entry.
func NewPassThroughObject[S any](entry *catalog.TypedEntry[S]) *PassThroughObject[S] {
	return &PassThroughObject[S]{entry: entry}
}

func (p *PassThroughObject[S]) Load(ctx context.Context) ([]S, error) {
	v, err := p.entry.Load(ctx)
	if err != nil {
		return nil, err
	}
	return []S{v}, nil
}

func (p *PassThroughObject[S]) Save(ctx context.Context, values []S) error {
	if len(values) != 1 {
		return catalogerr.NewCodecError(p.entry.Key(), "save", fmt.Errorf("object entry expects exactly one value, got %d", len(values)))
	}
	return p.entry.Save(ctx, values[0])
}

func (p *PassThroughObject[S]) RequiredUnmapped() []string { return nil }

func (p *PassThroughObject[S]) Entries() []catalog.Entry {
	return []catalog.Entry{p.entry}
}

// Field is an explicit, named accessor pair for one property of schema S
// holding values of type V. This replaces the source's lambda/expression-
// tree property selectors (spec §9) with a plain getter/setter generated
// once per schema — the engine only ever needs to read or write a named
// field given a schema instance.
type Field[S, V any] struct {
	Name string
	Get  func(S) V
	Set  func(*S, V)
}

type fieldBinding[S any] struct {
	name      string
	isLiteral bool
	entry     catalog.Entry
	fetch     func(ctx context.Context) (interface{}, error)
	apply     func(out *S, raw interface{})
	save      func(ctx context.Context, value S) (skipped bool, err error)
}

// Mapped binds named properties of schema S to catalog entries and/or
// literal parameter values.
type Mapped[S any] struct {
	mu       sync.Mutex
	bindings map[string]*fieldBinding[S]
	required map[string]bool
	logger   ports.Logger
}

// NewMapped constructs an empty mapped catalog-map. requiredFields names
// the schema's required properties (spec §4.3): pipeline.Builder.Register
// fails listing any that remain unbound.
func NewMapped[S any](requiredFields ...string) *Mapped[S] {
	required := make(map[string]bool, len(requiredFields))
	for _, f := range requiredFields {
		required[f] = true
	}
	return &Mapped[S]{
		bindings: make(map[string]*fieldBinding[S]),
		required: required,
		logger:   nil,
	}
}

// SetLogger attaches a logger used to warn when a save is skipped for an
// absent property value.
func (m *Mapped[S]) SetLogger(logger ports.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// BindEntry binds field to a catalog entry. Valid in both input and output
// position.
func BindEntry[S, V any](m *Mapped[S], field Field[S, V], entry *catalog.TypedEntry[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[field.Name] = &fieldBinding[S]{
		name:  field.Name,
		entry: entry,
		fetch: func(ctx context.Context) (interface{}, error) {
			return entry.Load(ctx)
		},
		apply: func(out *S, raw interface{}) {
			field.Set(out, raw.(V))
		},
		save: func(ctx context.Context, value S) (bool, error) {
			v := field.Get(value)
			if isAbsent(v) {
				return true, nil
			}
			return false, entry.Save(ctx, v)
		},
	}
}

// BindParameter binds field to a constant value. Valid only in input
// position; using a map with a parameter binding as an output fails at
// execution with InvalidOutputMapError.
func BindParameter[S, V any](m *Mapped[S], field Field[S, V], value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[field.Name] = &fieldBinding[S]{
		name:      field.Name,
		isLiteral: true,
		fetch: func(ctx context.Context) (interface{}, error) {
			return value, nil
		},
		apply: func(out *S, raw interface{}) {
			field.Set(out, raw.(V))
		},
	}
}

// RequiredUnmapped returns the required field names with no binding, sorted
// for deterministic error reporting.
func (m *Mapped[S]) RequiredUnmapped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []string
	for name := range m.required {
		if _, ok := m.bindings[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Entries returns every entry any field is bound to (literal bindings
// contribute none), for the dependency analyzer.
func (m *Mapped[S]) Entries() []catalog.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Entry
	for _, name := range m.sortedNames() {
		if b := m.bindings[name]; b.entry != nil {
			out = append(out, b.entry)
		}
	}
	return out
}

// Load fetches every entry-bound property concurrently (fan-out), then
// joins and constructs a single schema instance (spec §5: "a mapped input
// loads all of its entries concurrently"). Literal bindings go through the
// same fan-out; their fetch returns the bound value without any I/O.
func (m *Mapped[S]) Load(ctx context.Context) ([]S, error) {
	m.mu.Lock()
	names := m.sortedNames()
	bindings := make(map[string]*fieldBinding[S], len(names))
	for _, n := range names {
		bindings[n] = m.bindings[n]
	}
	m.mu.Unlock()

	raws := make(map[string]interface{}, len(names))
	var raMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		b := bindings[name]
		g.Go(func() error {
			raw, err := b.fetch(gctx)
			if err != nil {
				return err
			}
			raMu.Lock()
			raws[name] = raw
			raMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out S
	for _, name := range names {
		bindings[name].apply(&out, raws[name])
	}
	return []S{out}, nil
}

// Save persists the single produced value's entry-bound properties. Fails
// with InvalidOutputMapError if any bound field is parameter-only; skips
// (with a warning) any entry-bound property whose extracted value is a nil
// pointer/interface/slice/map (spec's "non-null-guard").
func (m *Mapped[S]) Save(ctx context.Context, values []S) error {
	if len(values) != 1 {
		return catalogerr.NewCodecError("", "save", fmt.Errorf("mapped output expects exactly one value, got %d", len(values)))
	}

	m.mu.Lock()
	names := m.sortedNames()
	var literalFields []string
	for _, n := range names {
		if m.bindings[n].isLiteral {
			literalFields = append(literalFields, n)
		}
	}
	logger := m.logger
	m.mu.Unlock()

	if len(literalFields) > 0 {
		return catalogerr.NewInvalidOutputMapError("", literalFields)
	}

	value := values[0]
	for _, name := range names {
		b := m.bindings[name]
		skipped, err := b.save(ctx, value)
		if err != nil {
			return err
		}
		if skipped && logger != nil {
			logger.Warn(ctx, "skipped save for absent mapped property", "field", name)
		}
	}
	return nil
}

func (m *Mapped[S]) sortedNames() []string {
	names := make([]string, 0, len(m.bindings))
	for n := range m.bindings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// isAbsent reports whether v is a nil interface or a nil pointer, slice,
// map, channel, or func — the kinds that can represent "no value" in Go.
func isAbsent(v interface{}) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
