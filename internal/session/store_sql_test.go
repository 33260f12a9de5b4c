package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coach/internal/proficiency"
	"github.com/mind-engage/mindengage-coach/internal/session"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

func TestSQLStore_SaveReplacesState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	first := session.SaveRecord{
		TenantID: "t1", SessionID: s.ID, Actor: coach.ID, Context: "first",
		Notes: session.Notes{Strengths: "a"},
		Scores: []session.Score{
			session.BehaviorCheck{BehaviorID: "b1", Checked: true},
			session.BehaviorCheck{BehaviorID: "b2", Checked: false},
			session.StepOverride{StepID: "step1", Level: "Master"},
		},
		Records: []proficiency.Record{
			{SessionID: s.ID, StepID: "step1", StepNumber: 1, Type: proficiency.TypeStep, LevelName: "Learner"},
			{SessionID: s.ID, StepID: "step1", StepNumber: 1, Type: proficiency.TypeStep, LevelName: "Master", IsManual: true},
			{SessionID: s.ID, Type: proficiency.TypeOverall, LevelName: "Master"},
		},
	}
	require.NoError(t, f.sessions.Save(ctx, first))

	scores, err := f.sessions.Scores(ctx, s.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Scores, scores)

	recs, err := f.sessions.Proficiencies(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2, "duplicates collapse")
	assert.Equal(t, "Master", recs[0].LevelName)
	assert.True(t, recs[0].IsManual)
	assert.Equal(t, proficiency.TypeOverall, recs[1].Type)

	second := session.SaveRecord{
		TenantID: "t1", SessionID: s.ID, Actor: coach.ID, Context: "second",
		Notes:  session.Notes{Improvements: "b"},
		Scores: []session.Score{session.BehaviorCheck{BehaviorID: "b3", Checked: true}},
	}
	require.NoError(t, f.sessions.Save(ctx, second))

	scores, err = f.sessions.Scores(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Scores, scores)
	recs, err = f.sessions.Proficiencies(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)

	notes, err := f.sessions.Notes(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Notes{Improvements: "b"}, notes)

	got, err := f.sessions.Get(ctx, "t1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Context)

	events, err := syncx.NewEventRepo(f.db).List(ctx, "t1", s.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, syncx.TypeSessionSaved, events[0].Type)
}

func TestSQLStore_SaveRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	require.NoError(t, f.sessions.Save(ctx, session.SaveRecord{
		TenantID: "t1", SessionID: s.ID, Context: "kept",
		Scores: []session.Score{session.BehaviorCheck{BehaviorID: "b1", Checked: true}},
	}))

	// the save fails after scores were already rewritten inside the tx
	_, err := f.db.Exec(`DROP TABLE session_proficiencies`)
	require.NoError(t, err)

	err = f.sessions.Save(ctx, session.SaveRecord{
		TenantID: "t1", SessionID: s.ID, Context: "lost",
		Scores: []session.Score{session.BehaviorCheck{BehaviorID: "b2", Checked: true}},
	})
	require.Error(t, err)

	got, err := f.sessions.Get(ctx, "t1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Context)
	scores, err := f.sessions.Scores(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []session.Score{session.BehaviorCheck{BehaviorID: "b1", Checked: true}}, scores)
}

func TestSQLStore_DraftLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	err := f.sessions.Save(ctx, session.SaveRecord{TenantID: "t2", SessionID: s.ID})
	assert.ErrorIs(t, err, session.ErrNotFound)

	out, err := f.sessions.SetStatus(ctx, "t1", s.ID, coach.ID, session.StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSubmitted, out.Status)
	require.NotNil(t, out.SubmittedAt)

	err = f.sessions.Save(ctx, session.SaveRecord{TenantID: "t1", SessionID: s.ID})
	assert.ErrorIs(t, err, session.ErrNotDraft)

	_, err = f.sessions.SetStatus(ctx, "t1", s.ID, coach.ID, session.StatusDraft)
	assert.ErrorIs(t, err, session.ErrNotDraft)
}

func TestSQLStore_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newDraft(t)
	_, err := f.svc.Create(ctx, other, session.CreateInput{CoacheeID: "coachee-2", FrameworkID: f.ids["fw1"]})
	require.NoError(t, err)

	mine, err := f.sessions.List(ctx, session.ListOpts{TenantID: "t1", ParticipantID: coachee.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	all, err := f.sessions.List(ctx, session.ListOpts{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := f.sessions.List(ctx, session.ListOpts{TenantID: "t1", CoachID: other.ID, Status: session.StatusDraft})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	none, err := f.sessions.List(ctx, session.ListOpts{TenantID: "t2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
