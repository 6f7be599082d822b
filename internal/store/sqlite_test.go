package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2, "Expected kv and activity tables")
}

func TestValueRoundTripAndOverwrite(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.GetValue(ctx, "cachedKeyActors")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutValue(ctx, "cachedKeyActors", `[{"name":"ECB"}]`))
	require.NoError(t, store.PutValue(ctx, "cachedKeyActors", `[{"name":"Energy Sector"}]`))

	v, ok, err := store.GetValue(ctx, "cachedKeyActors")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"name":"Energy Sector"}]`, v)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cachedKeyActors"}, keys)

	require.NoError(t, store.DeleteValue(ctx, "cachedKeyActors"))
	_, ok, err = store.GetValue(ctx, "cachedKeyActors")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	ctx := context.Background()

	s1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.PutValue(ctx, "k", "v"))
	require.NoError(t, s1.Close())

	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()
	v, ok, err := s2.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, path, s2.Path())
}

func TestActivityLogAndReset(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.RecordActivity(ctx, Activity{
		Action:    ActionReportsUploaded,
		Details:   map[string]interface{}{"created": 2, "errors": 1},
		CreatedAt: base,
	}))
	require.NoError(t, store.RecordActivity(ctx, Activity{
		Action:    ActionReportDeleted,
		ReportID:  "rep-1",
		CreatedAt: base.Add(time.Second),
	}))

	entries, err := store.ListActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionReportDeleted, entries[0].Action)
	assert.Equal(t, "rep-1", entries[0].ReportID)
	assert.Equal(t, ActionReportsUploaded, entries[1].Action)
	assert.EqualValues(t, 2, entries[1].Details["created"])
	assert.Empty(t, entries[1].ReportID)

	limited, err := store.ListActivity(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.PutValue(ctx, "k", "v"))
	require.NoError(t, store.Reset(ctx))
	entries, err = store.ListActivity(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, ok, err := store.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
