package scheduler_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/catalogerr"
	"github.com/riverglass/catalogflow/internal/catalogmap"
	"github.com/riverglass/catalogflow/internal/codec"
	"github.com/riverglass/catalogflow/internal/logging"
	"github.com/riverglass/catalogflow/internal/node"
	"github.com/riverglass/catalogflow/internal/pipeline"
	"github.com/riverglass/catalogflow/internal/scheduler"
	"github.com/stretchr/testify/require"
)

type doubleNode struct{}

func (doubleNode) Transform(ctx context.Context, inputs []int) ([]int, error) {
	out := make([]int, len(inputs))
	for i, v := range inputs {
		out[i] = v * 2
	}
	return out, nil
}

func passThroughIntMap(entry *catalog.TypedEntry[[]int]) catalogmap.Erased {
	return catalogmap.Erase[int](catalogmap.NewPassThroughDataset[int](entry))
}

// TestSchedulerRunsLinearPipeline grounds spec scenario 1: a two-node
// pass-through chain raw -> doubled -> quadrupled runs to completion with
// expected per-entry outputs and success results in execution order.
func TestSchedulerRunsLinearPipeline(t *testing.T) {
	ctx := context.Background()

	rawEntry := catalog.NewEntry[[]int]("raw", codec.NewMemoryDataset[int]([]int{1, 2, 3}))
	doubledEntry := catalog.NewEntry[[]int]("doubled", codec.NewMemoryDataset[int]())
	quadrupledEntry := catalog.NewEntry[[]int]("quadrupled", codec.NewMemoryDataset[int]())

	b := pipeline.NewBuilder("doubling")
	n1 := node.NewNode[int, int, struct{}](doubleNode{})
	n2 := node.NewNode[int, int, struct{}](doubleNode{})

	require.NoError(t, b.Register("stage1", n1,
		[]catalogmap.Erased{passThroughIntMap(rawEntry)},
		[]catalogmap.Erased{passThroughIntMap(doubledEntry)}))
	require.NoError(t, b.Register("stage2", n2,
		[]catalogmap.Erased{passThroughIntMap(doubledEntry)},
		[]catalogmap.Erased{passThroughIntMap(quadrupledEntry)}))

	p, err := b.Build()
	require.NoError(t, err)

	runner := scheduler.New(logging.NewNoOpLogger(), nil)
	pr, err := runner.Run(ctx, p)
	require.NoError(t, err)
	require.True(t, pr.Success)
	require.Equal(t, "doubling", pr.PipelineName)
	require.Len(t, pr.Nodes, 2)
	require.Equal(t, "stage1", pr.Nodes[0].Name)
	require.Equal(t, "stage2", pr.Nodes[1].Name)
	require.True(t, pr.Nodes[0].Success)
	require.True(t, pr.Nodes[1].Success)

	quadrupled, err := quadrupledEntry.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{4, 8, 12}, quadrupled)
}

type failingNode struct{}

func (failingNode) Transform(ctx context.Context, inputs []int) ([]int, error) {
	return nil, fmt.Errorf("boom")
}

// TestSchedulerHaltsOnNodeErrorAndSkipsLaterLayers grounds spec §7's
// propagation policy: a node failure is attributed to that node and the
// remaining layer(s) never run.
func TestSchedulerHaltsOnNodeErrorAndSkipsLaterLayers(t *testing.T) {
	ctx := context.Background()

	rawEntry := catalog.NewEntry[[]int]("raw", codec.NewMemoryDataset[int]([]int{1}))
	midEntry := catalog.NewEntry[[]int]("mid", codec.NewMemoryDataset[int]())
	finalEntry := catalog.NewEntry[[]int]("final", codec.NewMemoryDataset[int]())

	b := pipeline.NewBuilder("p")
	n1 := node.NewNode[int, int, struct{}](failingNode{})
	n2 := node.NewNode[int, int, struct{}](doubleNode{})

	require.NoError(t, b.Register("broken", n1,
		[]catalogmap.Erased{passThroughIntMap(rawEntry)},
		[]catalogmap.Erased{passThroughIntMap(midEntry)}))
	require.NoError(t, b.Register("never-runs", n2,
		[]catalogmap.Erased{passThroughIntMap(midEntry)},
		[]catalogmap.Erased{passThroughIntMap(finalEntry)}))

	p, err := b.Build()
	require.NoError(t, err)

	runner := scheduler.New(logging.NewNoOpLogger(), nil)
	pr, err := runner.Run(ctx, p)
	require.Error(t, err)
	require.False(t, pr.Success)
	require.Len(t, pr.Nodes, 1, "the second layer's node must never have run")
	require.Equal(t, "broken", pr.Nodes[0].Name)
	require.False(t, pr.Nodes[0].Success)

	code, ok := catalogerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, catalogerr.CodeNodeError, code)
}

type rejectingValidator struct{ err error }

func (r rejectingValidator) Validate(ctx context.Context, p *pipeline.Pipeline) error {
	return r.err
}

// TestSchedulerRunsValidatorBeforeAnyNode grounds the inspector integration
// point: a failing pre-execution check prevents every node from running.
func TestSchedulerRunsValidatorBeforeAnyNode(t *testing.T) {
	ctx := context.Background()

	rawEntry := catalog.NewEntry[[]int]("raw", codec.NewMemoryDataset[int]([]int{1}))
	outEntry := catalog.NewEntry[[]int]("out", codec.NewMemoryDataset[int]())

	b := pipeline.NewBuilder("p")
	n1 := node.NewNode[int, int, struct{}](doubleNode{})
	require.NoError(t, b.Register("only", n1,
		[]catalogmap.Erased{passThroughIntMap(rawEntry)},
		[]catalogmap.Erased{passThroughIntMap(outEntry)}))
	p, err := b.Build()
	require.NoError(t, err)

	wantErr := catalogerr.NewValidationError("inspection failed", map[string]string{"raw": "file missing"})
	runner := scheduler.New(logging.NewNoOpLogger(), rejectingValidator{err: wantErr})
	pr, err := runner.Run(ctx, p)
	require.Error(t, err)
	require.False(t, pr.Success)
	require.Empty(t, pr.Nodes)

	exists, existsErr := outEntry.Exists(ctx)
	require.NoError(t, existsErr)
	require.False(t, exists, "no node should have run, so the output entry must remain unwritten")
}

func TestSchedulerRespectsCanceledContext(t *testing.T) {
	rawEntry := catalog.NewEntry[[]int]("raw", codec.NewMemoryDataset[int]([]int{1}))
	outEntry := catalog.NewEntry[[]int]("out", codec.NewMemoryDataset[int]())

	b := pipeline.NewBuilder("p")
	n1 := node.NewNode[int, int, struct{}](doubleNode{})
	require.NoError(t, b.Register("only", n1,
		[]catalogmap.Erased{passThroughIntMap(rawEntry)},
		[]catalogmap.Erased{passThroughIntMap(outEntry)}))
	p, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := scheduler.New(logging.NewNoOpLogger(), nil)
	_, err = runner.Run(ctx, p)
	require.Error(t, err)

	code, ok := catalogerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, catalogerr.CodeCanceled, code)
}
