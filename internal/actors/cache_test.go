package actors

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/store"
)

type staticReports []api.Report

func (s staticReports) All() []api.Report { return s }

type mapDurable struct {
	values map[string]string
	getErr error
}

func (m *mapDurable) GetValue(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapDurable) PutValue(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

var aiActors = []api.Actor{
	{Name: "ECB", Description: "Monetary policy", Icon: "fa-solid fa-euro-sign"},
	{Name: "Households", Description: "Consumers", Icon: "fa-solid fa-users"},
}

func TestSetSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s1, err := store.NewStore(path)
	require.NoError(t, err)
	c1 := NewCache(s1, nil, nil)
	require.NoError(t, c1.Set(ctx, aiActors))
	require.NoError(t, s1.Close())

	s2, err := store.NewStore(path)
	require.NoError(t, err)
	defer s2.Close()
	c2 := NewCache(s2, nil, nil)

	got, src := c2.Get(ctx)
	assert.Equal(t, SourceDurable, src)
	assert.Equal(t, aiActors, got)

	// promoted to memory
	_, src = c2.Get(ctx)
	assert.Equal(t, SourceMemory, src)
}

func TestEmptySetNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	d := &mapDurable{}
	c := NewCache(d, nil, nil)

	require.NoError(t, c.Set(ctx, aiActors))
	before := d.values[StorageKey]

	require.NoError(t, c.Set(ctx, nil))
	require.NoError(t, c.Set(ctx, []api.Actor{}))

	assert.Equal(t, before, d.values[StorageKey])
	got, src := c.Get(ctx)
	assert.Equal(t, SourceMemory, src)
	assert.Equal(t, aiActors, got)
}

func TestMalformedDurableIsMiss(t *testing.T) {
	d := &mapDurable{values: map[string]string{StorageKey: "{not json"}}
	reports := staticReports{{ID: "r1", Actors: []api.Actor{{Name: "ECB"}}}}
	c := NewCache(d, reports, nil)

	got, src := c.Get(context.Background())
	assert.Equal(t, SourceComputed, src)
	require.Len(t, got, 1)
	assert.Equal(t, "ECB", got[0].Name)
}

func TestDurableReadErrorFallsThrough(t *testing.T) {
	d := &mapDurable{getErr: errors.New("disk gone")}
	c := NewCache(d, nil, nil)

	got, src := c.Get(context.Background())
	assert.Equal(t, SourceDefault, src)
	assert.Len(t, got, 6)
}

func TestAggregateGroupsByName(t *testing.T) {
	reports := []api.Report{
		{ID: "r1", Actors: []api.Actor{{Name: "ECB", Description: "first"}, {Name: "Industry"}}},
		{ID: "r2", Actors: []api.Actor{{Name: "ECB", Description: "second"}}},
		{ID: "r3"},
	}
	got := Aggregate(reports)
	require.Len(t, got, 2)
	assert.Equal(t, "ECB", got[0].Name)
	assert.Equal(t, "first", got[0].Description)
	assert.Equal(t, []string{"r1", "r2"}, got[0].Reports)
	assert.Equal(t, []string{"r1"}, got[1].Reports)
}

func TestDefaultsWhenNothingElse(t *testing.T) {
	c := NewCache(nil, staticReports{{ID: "r1"}}, nil)
	got, src := c.Get(context.Background())
	assert.Equal(t, SourceDefault, src)
	require.Len(t, got, 6)
	assert.Equal(t, "Policymakers (Federal/State/Municipal)", got[0].Name)
	assert.Equal(t, "fa-solid fa-euro-sign", got[5].Icon)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewCache(nil, nil, nil)
	require.NoError(t, c.Set(ctx, aiActors))

	got, _ := c.Get(ctx)
	got[0].Name = "mutated"

	again, _ := c.Get(ctx)
	assert.Equal(t, "ECB", again[0].Name)
}

func TestInvalidateRereadsSharedDurable(t *testing.T) {
	ctx := context.Background()
	shared := &mapDurable{}
	mine := NewCache(shared, nil, nil)
	theirs := NewCache(shared, nil, nil)

	old := []api.Actor{{Name: "Old"}}
	require.NoError(t, mine.Set(ctx, old))
	require.NoError(t, theirs.Set(ctx, aiActors))

	got, src := mine.Get(ctx)
	assert.Equal(t, SourceMemory, src)
	assert.Equal(t, old, got, "memory tier still answers before invalidation")

	mine.Invalidate()
	got, src = mine.Get(ctx)
	assert.Equal(t, SourceDurable, src)
	assert.Equal(t, aiActors, got)
}
