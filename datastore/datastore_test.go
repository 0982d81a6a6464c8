package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) *DataStore {
	t.Helper()
	ds, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestDataStore_AddGetDelete(t *testing.T) {
	ds := newStore(t, filepath.Join(t.TempDir(), "data.json"))

	_, ok := ds.Get("missing")
	assert.False(t, ok)

	ds.Add("g1", map[string]any{"hello": "world"})
	v, ok := ds.Get("g1")
	require.True(t, ok)
	assert.NotNil(t, v)

	ds.Delete("g1")
	_, ok = ds.Get("g1")
	assert.False(t, ok)
}

func TestDataStore_Keys(t *testing.T) {
	ds := newStore(t, filepath.Join(t.TempDir(), "data.json"))

	ds.Add("a", 1)
	ds.Add("b", 2)
	assert.ElementsMatch(t, []string{"a", "b"}, ds.Keys())
}

func TestDataStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	ds, err := New(path)
	require.NoError(t, err)
	ds.Add("g1", map[string]any{"n": float64(42)})
	require.NoError(t, ds.SaveToFile())
	require.NoError(t, ds.Close())

	reopened := newStore(t, path)
	v, ok := reopened.Get("g1")
	require.True(t, ok)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), m["n"])
}

func TestDataStore_SaveUnchangedIsNoop(t *testing.T) {
	ds := newStore(t, filepath.Join(t.TempDir(), "data.json"))

	ds.Add("g1", "v")
	require.NoError(t, ds.SaveToFile())
	// Second save with identical content must not fail.
	require.NoError(t, ds.SaveToFile())
}
