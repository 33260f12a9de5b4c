package syncx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coach/internal/db/dbtest"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

func TestEventRepo_AppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := syncx.NewEventRepo(dbtest.Open(t))

	require.NoError(t, repo.Append(ctx, syncx.NewEvent("t1", syncx.TypeSessionSaved, "s1", "coach-1", map[string]int{"scores": 3})))
	require.NoError(t, repo.Append(ctx, syncx.NewEvent("t1", syncx.TypeSessionStatus, "s1", "coach-1", nil)))
	require.NoError(t, repo.Append(ctx, syncx.NewEvent("t2", syncx.TypeSessionSaved, "s1", "coach-9", nil)))

	events, err := repo.List(ctx, "t1", "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, syncx.TypeSessionSaved, events[0].Type)
	assert.JSONEq(t, `{"scores":3}`, events[0].DataJSON)
	assert.Equal(t, "{}", events[1].DataJSON)
	assert.Less(t, events[0].Seq, events[1].Seq)
}

func TestEventRepo_Search(t *testing.T) {
	ctx := context.Background()
	repo := syncx.NewEventRepo(dbtest.Open(t))

	require.NoError(t, repo.Append(ctx, syncx.NewEvent("t1", syncx.TypeFrameworkCreated, "fw-1", "admin", nil)))
	require.NoError(t, repo.Append(ctx, syncx.NewEvent("t1", syncx.TypeSessionSaved, "s-1", "coach", nil)))
	require.NoError(t, repo.Append(ctx, syncx.NewEvent("t2", syncx.TypeSessionSaved, "s-2", "coach", nil)))

	got, err := repo.Search(ctx, "t1", "Session", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s-1", got[0].Key)

	all, err := repo.Search(ctx, "t1", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s-1", all[0].Key, "newest first")
}
