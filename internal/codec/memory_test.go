package codec_test

import (
	"context"
	"testing"

	"github.com/riverglass/catalogflow/internal/codec"
	"github.com/stretchr/testify/require"
)

func TestMemoryDatasetSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := codec.NewMemoryDataset[int]()

	exists, err := d.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, d.Save(ctx, []int{1, 2, 3}))

	exists, err = d.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	values, err := d.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, values)
}

func TestMemoryDatasetSeeded(t *testing.T) {
	ctx := context.Background()
	d := codec.NewMemoryDataset[int]([]int{1, 2, 3})

	values, err := d.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, values)
}

func TestMemoryObjectLoadMissing(t *testing.T) {
	ctx := context.Background()
	o := codec.NewMemoryObject[string]()

	_, err := o.Load(ctx)
	require.Error(t, err)
}

func TestMemoryObjectSaveLoad(t *testing.T) {
	ctx := context.Background()
	o := codec.NewMemoryObject[string]()

	require.NoError(t, o.Save(ctx, "hello"))
	value, err := o.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "hello", value)
}
