// Package node declares the node abstraction: a stateless, typed
// transformation the scheduler invokes once per run. TypedNode is the
// interface implementers write against; Node is the reflection-erased
// interface the engine holds nodes through, recovered via NewNode.
//
// This replaces the source's reflective (TInput, TOutput, TParams)
// extraction by walking generic arguments (spec §9, "reflective type
// discovery on nodes") with Go generics: the adapter captures TI/TO/TP as
// compile-time type parameters and exposes their reflect.Type via
// reflect.TypeFor, no runtime generic-argument walking required.
package node

import (
	"context"
	"fmt"
	"reflect"

	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/ports"
	"github.com/riverglass/catalogflow/internal/validate"
)

// Node is the capability-erased interface the pipeline builder, analyzer,
// and scheduler hold node instances through.
type Node interface {
	InputType() reflect.Type
	OutputType() reflect.Type
	ParamsType() reflect.Type
	// ImplType is the concrete type of the wrapped TypedNode implementation,
	// used by the DAG metadata exporter's node_type field.
	ImplType() reflect.Type
	// SetParameters validates and assigns params, which must be
	// assignable to the node's TP. Returns a catalogerr BuildError on type
	// mismatch or struct-tag validation failure.
	SetParameters(params interface{}) error
	SetLogger(logger ports.Logger)
	// Transform invokes the underlying typed transform with type-erased
	// inputs/outputs. Callers (the scheduler) are responsible for
	// constructing inputs of the node's declared InputType and for
	// attributing any returned error to this node.
	Transform(ctx context.Context, inputs []interface{}) ([]interface{}, error)
}

// TypedNode is the interface node implementers satisfy. TP may be
// struct{} when the node takes no parameters (spec's "params_type may be
// the unit type").
type TypedNode[TI, TO, TP any] interface {
	// Transform is the pure transformation body. It must be stateless
	// across invocations, reading only inputs, the parameters set through
	// ParameterizedNode.SetParameters, and its logger.
	Transform(ctx context.Context, inputs []TI) ([]TO, error)
}

// ParameterizedNode is optionally implemented by a TypedNode that accepts a
// parameters value. Nodes with TP == struct{} need not implement it.
type ParameterizedNode[TP any] interface {
	SetParameters(params TP)
}

// LoggerAwareNode is optionally implemented by a TypedNode that wants a
// logger injected.
type LoggerAwareNode interface {
	SetLogger(logger ports.Logger)
}

type adapter[TI, TO, TP any] struct {
	impl TypedNode[TI, TO, TP]
}

// NewNode adapts a TypedNode[TI,TO,TP] implementation into the
// capability-erased Node interface the rest of the engine uses. The node is
// constructible with no arguments by the caller (spec: "a node is
// constructible with no arguments so the scheduler may instantiate it by
// type reference") — NewNode itself takes the already-constructed
// implementation, leaving instantiation to the caller (the pipeline
// builder's Register call).
func NewNode[TI, TO, TP any](impl TypedNode[TI, TO, TP]) Node {
	return &adapter[TI, TO, TP]{impl: impl}
}

func (a *adapter[TI, TO, TP]) InputType() reflect.Type { return reflect.TypeFor[TI]() }
func (a *adapter[TI, TO, TP]) OutputType() reflect.Type { return reflect.TypeFor[TO]() }
func (a *adapter[TI, TO, TP]) ParamsType() reflect.Type { return reflect.TypeFor[TP]() }
func (a *adapter[TI, TO, TP]) ImplType() reflect.Type { return reflect.TypeOf(a.impl) }

func (a *adapter[TI, TO, TP]) SetParameters(params interface{}) error {
	typed, ok := params.(TP)
	if !ok {
		return catalogerr.NewBuildError("parameters type mismatch", map[string]interface{}{
			"expected": reflect.TypeFor[TP]().String(),
			"got":      fmt.Sprintf("%T", params),
		})
	}
	if err := validate.Struct(typed); err != nil {
		return catalogerr.NewBuildError("parameters failed validation", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	if settable, ok := a.impl.(ParameterizedNode[TP]); ok {
		settable.SetParameters(typed)
	}
	return nil
}

func (a *adapter[TI, TO, TP]) SetLogger(logger ports.Logger) {
	if aware, ok := a.impl.(LoggerAwareNode); ok {
		aware.SetLogger(logger)
	}
}

func (a *adapter[TI, TO, TP]) Transform(ctx context.Context, inputs []interface{}) ([]interface{}, error) {
	typedInputs := make([]TI, len(inputs))
	for i, in := range inputs {
		typed, ok := in.(TI)
		if !ok {
			return nil, catalogerr.NewNodeError("", fmt.Errorf("input %d: expected %s, got %T", i, reflect.TypeFor[TI]().String(), in))
		}
		typedInputs[i] = typed
	}

	outputs, err := a.impl.Transform(ctx, typedInputs)
	if err != nil {
		return nil, err
	}

	erased := make([]interface{}, len(outputs))
	for i, out := range outputs {
		erased[i] = out
	}
	return erased, nil
}
