package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagview/internal/catalog"
)

func openTestStorage(t *testing.T) *BoltStorage {
	t.Helper()
	store, err := NewBoltStorage(filepath.Join(t.TempDir(), "diagview.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStorageSettings(t *testing.T) {
	store := openTestStorage(t)

	_, err := store.GetSettings()
	assert.ErrorIs(t, err, ErrNotFound)

	want := &Settings{
		Layout:      "flow",
		RowsPerPage: 3,
		Attributes:  []string{"FAULTS", "TEMPERATURE"},
		UpdatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedBy:   "admin",
	}
	require.NoError(t, store.SaveSettings(want))

	got, err := store.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBoltStorageComponentData(t *testing.T) {
	store := openTestStorage(t)

	t.Run("Missing", func(t *testing.T) {
		_, err := store.Get("mqtt", "discoveryPublished")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete("mqtt", "discoveryPublished"), ErrNotFound)

		list, err := store.List("mqtt")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("TypedValues", func(t *testing.T) {
		require.NoError(t, store.SetBool("mqtt", "discoveryPublished", true))
		require.NoError(t, store.SetInt("mqtt", "discoveryCount", 43))

		published, err := store.GetBool("mqtt", "discoveryPublished")
		require.NoError(t, err)
		assert.True(t, published)

		count, err := store.GetInt("mqtt", "discoveryCount")
		require.NoError(t, err)
		assert.Equal(t, 43, count)

		require.NoError(t, store.Set("mqtt", "raw", []byte("not a number")))
		_, err = store.GetInt("mqtt", "raw")
		assert.Error(t, err)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		list, err := store.List("mqtt")
		require.NoError(t, err)
		assert.Len(t, list, 3)

		require.NoError(t, store.Delete("mqtt", "raw"))
		_, err = store.Get("mqtt", "raw")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ComponentsAreIsolated", func(t *testing.T) {
		_, err := store.Get("diagnostics", "discoveryCount")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBoltStorageSnapshot(t *testing.T) {
	store := openTestStorage(t)

	_, err := store.LoadSnapshot("board")
	assert.ErrorIs(t, err, ErrNoSnapshot)

	saved := time.Date(2024, 3, 1, 12, 30, 15, 123456789, time.UTC)
	snap := &Snapshot{
		SavedAt: saved,
		Values: map[string]catalog.Value{
			"Motors Grid/FL/Faults":        catalog.TextValue("Stall,Brownout"),
			"Motors Grid/FL/Temp":          catalog.NumberValue(48.25),
			"Summary/Grid Fault Indicator": catalog.BoolValue(false),
		},
	}
	require.NoError(t, store.SaveSnapshot("board", snap))

	got, err := store.LoadSnapshot("board")
	require.NoError(t, err)
	assert.True(t, saved.Equal(got.SavedAt))
	assert.Equal(t, snap.Values, got.Values)
}

func TestBoltStoragePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagview.db")

	store, err := NewBoltStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveSettings(&Settings{Layout: "list", RowsPerPage: 4}))
	require.NoError(t, store.Close())

	store, err = NewBoltStorage(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, "list", got.Layout)
}
