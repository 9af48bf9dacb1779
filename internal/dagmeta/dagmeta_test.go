package dagmeta_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/catalogmap"
	"github.com/riverglass/catalogflow/internal/codec"
	"github.com/riverglass/catalogflow/internal/dagmeta"
	"github.com/riverglass/catalogflow/internal/node"
	"github.com/riverglass/catalogflow/internal/pipeline"
	"github.com/stretchr/testify/require"
)

type identityNode[T any] struct{}

func (identityNode[T]) Transform(ctx context.Context, inputs []T) ([]T, error) {
	return inputs, nil
}

func buildLinearPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	rawEntry := catalog.NewEntry[[]int]("raw", codec.NewMemoryDataset[int]([]int{1, 2, 3}))
	doubledEntry := catalog.NewEntry[[]int]("doubled", codec.NewMemoryDataset[int]())

	b := pipeline.NewBuilder("doubling")
	n1 := node.NewNode[int, int, struct{}](identityNode[int]{})
	require.NoError(t, b.Register("stage1", n1,
		[]catalogmap.Erased{catalogmap.Erase[int](catalogmap.NewPassThroughDataset[int](rawEntry))},
		[]catalogmap.Erased{catalogmap.Erase[int](catalogmap.NewPassThroughDataset[int](doubledEntry))}))

	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestExtractProducesNodesEntriesAndEdges(t *testing.T) {
	p := buildLinearPipeline(t)
	snap := dagmeta.Extract(context.Background(), p)

	require.Equal(t, "doubling", snap.PipelineName)
	require.NotEmpty(t, snap.RunID)
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, "stage1", snap.Nodes[0].ID)
	require.Equal(t, "doubling", snap.Nodes[0].OriginPipeline)
	require.Equal(t, []string{"raw"}, snap.Nodes[0].Inputs)
	require.Equal(t, []string{"doubled"}, snap.Nodes[0].Outputs)

	require.Len(t, snap.CatalogEntries, 2)
	var raw, doubled dagmeta.EntrySnapshot
	for _, e := range snap.CatalogEntries {
		switch e.Key {
		case "raw":
			raw = e
		case "doubled":
			doubled = e
		}
	}
	require.Empty(t, raw.Producer)
	require.Equal(t, []string{"stage1"}, raw.Consumers)
	require.Equal(t, "stage1", doubled.Producer)

	require.Len(t, snap.Edges, 2)
}

type salesRow struct {
	ID   int    `csv:"id"`
	Name string `csv:"name"`
}

// TestExtractInfersSchemaForStructBackedEntry grounds spec §4.8's optional
// per-entry "schema: { fields: [...] }" for a struct-typed catalog entry
// (the CSV reference codec), one FieldDescriptor per exported field, named
// from the struct's csv tag.
func TestExtractInfersSchemaForStructBackedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	salesIn := catalog.NewEntry[[]salesRow]("sales_in", codec.NewCSVDataset[salesRow](path, codec.ReadWrite))
	salesOut := catalog.NewEntry[[]salesRow]("sales_out", codec.NewMemoryDataset[salesRow]())

	b := pipeline.NewBuilder("sales")
	n1 := node.NewNode[salesRow, salesRow, struct{}](identityNode[salesRow]{})
	require.NoError(t, b.Register("stage1", n1,
		[]catalogmap.Erased{catalogmap.Erase[salesRow](catalogmap.NewPassThroughDataset[salesRow](salesIn))},
		[]catalogmap.Erased{catalogmap.Erase[salesRow](catalogmap.NewPassThroughDataset[salesRow](salesOut))}))
	p, err := b.Build()
	require.NoError(t, err)

	snap := dagmeta.Extract(context.Background(), p)

	var salesInSnap dagmeta.EntrySnapshot
	for _, e := range snap.CatalogEntries {
		if e.Key == "sales_in" {
			salesInSnap = e
		}
	}
	require.Len(t, salesInSnap.Schema, 2)
	require.Equal(t, "id", salesInSnap.Schema[0].Name)
	require.Equal(t, "int", salesInSnap.Schema[0].Type)
	require.False(t, salesInSnap.Schema[0].IsNullable)
	require.Equal(t, "name", salesInSnap.Schema[1].Name)
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	p := buildLinearPipeline(t)
	snap := dagmeta.Extract(context.Background(), p)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.Contains(t, string(data), `"pipelineName"`)
	require.Contains(t, string(data), `"catalogEntries"`)

	var restored dagmeta.Snapshot
	require.NoError(t, json.Unmarshal(data, &restored))

	require.Equal(t, snap.PipelineName, restored.PipelineName)
	require.Equal(t, snap.Nodes, restored.Nodes)
	require.Equal(t, snap.CatalogEntries, restored.CatalogEntries)
	require.Equal(t, snap.Edges, restored.Edges)

	// deserialize(serialize(d)) stable under a second round trip too.
	data2, err := json.Marshal(&restored)
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(data2))
}

func TestRenderDiagramProducesFlowchart(t *testing.T) {
	p := buildLinearPipeline(t)
	snap := dagmeta.Extract(context.Background(), p)
	out := dagmeta.RenderDiagram(snap)

	require.True(t, strings.HasPrefix(out, "flowchart TD\n"))
	require.Contains(t, out, "subgraph")
	require.Contains(t, out, "stage1")
}

func TestFileBaseNameSanitizesPipelineName(t *testing.T) {
	ts, err := time.Parse(time.RFC3339, "2026-07-30T10:20:30Z")
	require.NoError(t, err)
	name := dagmeta.FileBaseName("my pipeline/v2", ts)
	require.Equal(t, "dag-my_pipeline_v2-20260730-102030", name)
}
