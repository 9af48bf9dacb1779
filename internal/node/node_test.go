package node_test

import (
	"context"
	"testing"

	"github.com/riverglass/catalogflow/internal/node"
	"github.com/riverglass/catalogflow/internal/ports"
	"github.com/stretchr/testify/require"
)

type doubleParams struct {
	Factor int `validate:"required,min=1"`
}

type doubleNode struct {
	params doubleParams
	logger ports.Logger
}

func (n *doubleNode) Transform(ctx context.Context, inputs []int) ([]int, error) {
	factor := n.params.Factor
	if factor == 0 {
		factor = 1
	}
	out := make([]int, len(inputs))
	for i, v := range inputs {
		out[i] = v * factor
	}
	return out, nil
}

func (n *doubleNode) SetParameters(p doubleParams) { n.params = p }
func (n *doubleNode) SetLogger(l ports.Logger)      { n.logger = l }

func TestNodeTransformErasesAndRestoresTypes(t *testing.T) {
	n := node.NewNode[int, int, doubleParams](&doubleNode{params: doubleParams{Factor: 2}})

	out, err := n.Transform(context.Background(), []interface{}{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []interface{}{2, 4, 6}, out)
}

func TestNodeSetParametersValidates(t *testing.T) {
	n := node.NewNode[int, int, doubleParams](&doubleNode{})

	err := n.SetParameters(doubleParams{Factor: 3})
	require.NoError(t, err)

	out, err := n.Transform(context.Background(), []interface{}{5})
	require.NoError(t, err)
	require.Equal(t, []interface{}{15}, out)
}

func TestNodeSetParametersRejectsInvalidStruct(t *testing.T) {
	n := node.NewNode[int, int, doubleParams](&doubleNode{})

	err := n.SetParameters(doubleParams{Factor: 0})
	require.Error(t, err)
}

func TestNodeSetParametersRejectsWrongType(t *testing.T) {
	n := node.NewNode[int, int, doubleParams](&doubleNode{})

	err := n.SetParameters("not-the-right-type")
	require.Error(t, err)
}

func TestNodeTransformRejectsWrongInputType(t *testing.T) {
	n := node.NewNode[int, int, doubleParams](&doubleNode{params: doubleParams{Factor: 1}})

	_, err := n.Transform(context.Background(), []interface{}{"oops"})
	require.Error(t, err)
}

// passthroughNode documents the resolution of spec open question 9(a): a
// pass-through diagnostic node is just an ordinary node with TI == TO.
type passthroughNode[T any] struct{}

func (passthroughNode[T]) Transform(ctx context.Context, inputs []T) ([]T, error) {
	return inputs, nil
}

func TestPassthroughNodePattern(t *testing.T) {
	n := node.NewNode[string, string, struct{}](passthroughNode[string]{})

	out, err := n.Transform(context.Background(), []interface{}{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"a", "b"}, out)
}
