package catalog_test

import (
	"testing"

	"github.com/riverglass/catalogflow/internal/catalog"
	"github.com/riverglass/catalogflow/internal/codec"
	"github.com/stretchr/testify/require"
)

func TestCatalogRegisterAndGetReturnsSameInstance(t *testing.T) {
	c := catalog.New()
	entry := catalog.NewEntry[int]("numbers", codec.NewMemoryDataset[int]([]int{1, 2, 3}))
	c.Register(entry)

	first, ok := catalog.Get[int](c, "numbers")
	require.True(t, ok)

	second, ok := catalog.Get[int](c, "numbers")
	require.True(t, ok)

	require.Same(t, first, second)
}

func TestCatalogGetMissingKey(t *testing.T) {
	c := catalog.New()
	_, ok := catalog.Get[int](c, "missing")
	require.False(t, ok)
}

func TestCatalogRegisterDuplicatePanics(t *testing.T) {
	c := catalog.New()
	c.Register(catalog.NewEntry[int]("numbers", codec.NewMemoryDataset[int]()))

	require.Panics(t, func() {
		c.Register(catalog.NewEntry[int]("numbers", codec.NewMemoryDataset[int]()))
	})
}

func TestCatalogKeysPreservesRegistrationOrder(t *testing.T) {
	c := catalog.New()
	c.Register(catalog.NewEntry[int]("b", codec.NewMemoryDataset[int]()))
	c.Register(catalog.NewEntry[int]("a", codec.NewMemoryDataset[int]()))

	require.Equal(t, []string{"b", "a"}, c.Keys())
	require.Equal(t, []string{"a", "b"}, c.SortedKeys())
}

func TestIsReserved(t *testing.T) {
	require.True(t, catalog.IsReserved("_nodata_sink"))
	require.False(t, catalog.IsReserved("sales_raw"))
}
