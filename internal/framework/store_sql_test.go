package framework_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coach/internal/db/dbtest"
	"github.com/mind-engage/mindengage-coach/internal/framework"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

func TestSQLStore_CreateGetList(t *testing.T) {
	ctx := context.Background()
	store := framework.NewSQLStore(dbtest.Open(t))

	f, err := framework.LoadYAML("testdata/discovery.yaml")
	require.NoError(t, err)
	f.TenantID = "t1"

	created, err := store.Create(ctx, f, "admin-1")
	require.NoError(t, err)

	got, err := store.Get(ctx, "t1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	require.Len(t, got.Levels, 4)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "Opening", got.Steps[0].Title)
	require.Len(t, got.Steps[0].Substeps, 2)
	assert.Equal(t, created.Steps[0].Substeps[0].Behaviors[0].ID, got.Steps[0].Substeps[0].Behaviors[0].ID)
	assert.Equal(t, created.Steps[0].Substeps[1].Behaviors[1].LevelID, got.Steps[0].Substeps[1].Behaviors[1].LevelID)

	_, err = store.Get(ctx, "other-tenant", created.ID)
	assert.ErrorIs(t, err, framework.ErrNotFound)

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Steps)

	list, err = store.List(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLStore_CreateRequiresTenant(t *testing.T) {
	store := framework.NewSQLStore(dbtest.Open(t))
	_, err := store.Create(context.Background(), framework.Framework{Name: "x", Levels: []framework.Level{{Name: "A", PointValue: 1}}}, "")
	assert.ErrorIs(t, err, framework.ErrInvalid)
}

func demoFramework(tenant string) framework.Framework {
	return framework.Framework{
		ID:       "fw-fixed",
		TenantID: tenant,
		Name:     "Demo",
		Levels:   []framework.Level{{ID: "lvl", Name: "Learner", PointValue: 1}},
		Steps: []framework.Step{{ID: "s1", Number: 1, Substeps: []framework.Substep{{ID: "ss1", Behaviors: []framework.Behavior{
			{ID: "b", Description: "greets", LevelID: "lvl"},
		}}}}},
	}
}

func TestSQLStore_CreateSameClientIDsAcrossTenants(t *testing.T) {
	ctx := context.Background()
	store := framework.NewSQLStore(dbtest.Open(t))

	a, err := store.Create(ctx, demoFramework("tA"), "u1")
	require.NoError(t, err)
	b, err := store.Create(ctx, demoFramework("tB"), "u2")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = store.Get(ctx, "tB", a.ID)
	assert.ErrorIs(t, err, framework.ErrNotFound)
	got, err := store.Get(ctx, "tB", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Steps[0].Substeps[0].Behaviors[0].ID, got.Steps[0].Substeps[0].Behaviors[0].ID)
}

func TestSQLStore_CreateRejectsDuplicateBehaviorIDs(t *testing.T) {
	store := framework.NewSQLStore(dbtest.Open(t))
	f := demoFramework("t1")
	ss := &f.Steps[0].Substeps[0]
	ss.Behaviors = append(ss.Behaviors, framework.Behavior{ID: "b", Description: "again", LevelID: "lvl"})

	_, err := store.Create(context.Background(), f, "u1")
	assert.ErrorIs(t, err, framework.ErrInvalid)
}

func TestSQLStore_CreateRecordsEvent(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	store := framework.NewSQLStore(dbh)

	created, err := store.Create(ctx, demoFramework("t1"), "admin-1")
	require.NoError(t, err)

	events, err := syncx.NewEventRepo(dbh).List(ctx, "t1", created.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, syncx.TypeFrameworkCreated, events[0].Type)
	assert.Equal(t, "admin-1", events[0].Actor)
}

func TestSQLStore_CreateRollsBackWithoutEventLog(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	store := framework.NewSQLStore(dbh)
	_, err := dbh.Exec(`DROP TABLE event_log`)
	require.NoError(t, err)

	_, err = store.Create(ctx, demoFramework("t1"), "admin-1")
	require.Error(t, err)

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
