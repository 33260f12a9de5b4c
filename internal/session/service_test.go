package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coach/internal/proficiency"
	"github.com/mind-engage/mindengage-coach/internal/session"
)

func TestService_SaveRecomputesWithOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	v, err := f.svc.Save(ctx, coach, s.ID, session.SaveInput{
		Context: "quarterly",
		Notes:   session.Notes{Strengths: "curious"},
		Scores: []session.ScoreInput{
			{BehaviorID: f.ids["b1"], Checked: false},
		},
		StepScores: map[string]string{f.ids["step1"]: "Master"},
		// stale client numbers are ignored
		CalculatedProficiencies: []proficiency.Record{
			{StepNumber: 1, Type: proficiency.TypeStep, LevelName: "Learner", PointsEarned: 99},
		},
	})
	require.NoError(t, err)

	require.Len(t, v.Proficiencies, 3)
	step1 := v.Proficiencies[0]
	assert.Equal(t, "Master", step1.LevelName)
	assert.True(t, step1.IsManual)
	assert.Equal(t, 0, step1.PointsEarned)
	assert.Equal(t, 11, step1.TotalPossible)
	assert.Equal(t, 0, step1.Percentage)

	assert.Equal(t, proficiency.NotEvaluated, v.Proficiencies[1].LevelName)

	overall := v.Proficiencies[2]
	assert.Equal(t, proficiency.TypeOverall, overall.Type)
	assert.Equal(t, "Master", overall.LevelName)
	assert.Equal(t, 11, overall.TotalPossible)

	assert.Equal(t, map[string]string{f.ids["step1"]: "Master"}, v.StepScores)
	assert.Empty(t, v.CheckedBehaviorIDs)
	assert.Equal(t, "quarterly", v.Session.Context)
	assert.Equal(t, "curious", v.Notes.Strengths)
}

func TestService_SaveQualifiedScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	v, err := f.svc.Save(ctx, coach, s.ID, session.SaveInput{
		Scores: []session.ScoreInput{
			{BehaviorID: f.ids["b1"], Checked: true},
			{BehaviorID: f.ids["b2"], Checked: true},
			{BehaviorID: f.ids["b3"], Checked: true},
			{BehaviorID: f.ids["b4"], Checked: false},
		},
		StepScores: map[string]string{f.ids["step1"]: proficiency.AutoCalculate},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{f.ids["b1"], f.ids["b2"], f.ids["b3"]}, v.CheckedBehaviorIDs)
	step1 := v.Proficiencies[0]
	assert.Equal(t, "Qualified", step1.LevelName)
	assert.False(t, step1.IsManual)
	assert.Equal(t, 4, step1.PointsEarned)
	assert.Equal(t, 36, step1.Percentage)
	assert.Equal(t, proficiency.AutoCalculate, v.StepScores[f.ids["step1"]])

	loaded, err := f.svc.Load(ctx, coachee, s.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Proficiencies, loaded.Proficiencies)
}

func TestService_SaveValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	_, err := f.svc.Save(ctx, coach, s.ID, session.SaveInput{
		Scores: []session.ScoreInput{{BehaviorID: "nope", Checked: true}},
	})
	assert.ErrorIs(t, err, session.ErrInvalid)

	_, err = f.svc.Save(ctx, coach, s.ID, session.SaveInput{StepScores: map[string]string{f.ids["step1"]: "Wizard"}})
	assert.ErrorIs(t, err, session.ErrInvalid)

	_, err = f.svc.Save(ctx, coach, s.ID, session.SaveInput{StepScores: map[string]string{"ghost": "Master"}})
	assert.ErrorIs(t, err, session.ErrInvalid)
}

func TestService_Visibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	_, err := f.svc.Load(ctx, coachee, s.ID)
	assert.NoError(t, err)
	_, err = f.svc.Load(ctx, admin, s.ID)
	assert.NoError(t, err)

	_, err = f.svc.Load(ctx, other, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = f.svc.Load(ctx, foreign, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// only the coach edits
	_, err = f.svc.Save(ctx, coachee, s.ID, session.SaveInput{})
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = f.svc.Save(ctx, admin, s.ID, session.SaveInput{})
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.True(t, session.IsNotFound(err))

	list, err := f.svc.List(ctx, other, session.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = f.svc.List(ctx, admin, session.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fw := f.ids["fw1"]

	_, err := f.svc.Create(ctx, coach, session.CreateInput{FrameworkID: fw})
	assert.ErrorIs(t, err, session.ErrInvalid)

	_, err = f.svc.Create(ctx, foreign, session.CreateInput{CoacheeID: "coachee-9", FrameworkID: fw})
	assert.True(t, session.IsNotFound(err))

	_, err = f.svc.Create(ctx, coach, session.CreateInput{CoacheeID: "ghost", FrameworkID: fw})
	assert.ErrorIs(t, err, session.ErrInvalid)

	// coachee-9 exists, but in t2
	_, err = f.svc.Create(ctx, coach, session.CreateInput{CoacheeID: "coachee-9", FrameworkID: fw})
	assert.ErrorIs(t, err, session.ErrInvalid)

	s, err := f.svc.Create(ctx, coach, session.CreateInput{CoacheeID: "coachee-2", FrameworkID: fw})
	require.NoError(t, err)
	assert.Equal(t, "coachee-2", s.CoacheeID)
}

func TestService_CalculateDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.newDraft(t)

	recs, err := f.svc.Calculate(ctx, coach, s.ID, session.SaveInput{
		Scores: []session.ScoreInput{{BehaviorID: f.ids["b5"], Checked: true}},
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 4, recs[0].PointsEarned)

	stored, err := f.sessions.Proficiencies(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

type fakePublisher struct {
	key   string
	err   error
	calls int
}

func (p *fakePublisher) Publish(_ context.Context, v session.View) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.key + v.Session.ID, nil
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pub := &fakePublisher{key: "reports/"}
	f.svc.Reports = pub
	s := f.newDraft(t)

	_, err := f.svc.UpdateStatus(ctx, coach, s.ID, "archived")
	assert.ErrorIs(t, err, session.ErrInvalid)

	out, err := f.svc.UpdateStatus(ctx, coach, s.ID, session.StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSubmitted, out.Status)
	assert.Equal(t, "reports/"+s.ID, out.ReportKey)
	assert.Equal(t, 1, pub.calls)

	got, err := f.sessions.Get(ctx, "t1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, "reports/"+s.ID, got.ReportKey)

	_, err = f.svc.UpdateStatus(ctx, coach, s.ID, session.StatusDraft)
	assert.ErrorIs(t, err, session.ErrNotDraft)
	_, err = f.svc.Save(ctx, coach, s.ID, session.SaveInput{})
	assert.ErrorIs(t, err, session.ErrNotDraft)
}

func TestService_UpdateStatusSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.Reports = &fakePublisher{err: errors.New("browser crashed")}
	s := f.newDraft(t)

	out, err := f.svc.UpdateStatus(ctx, coach, s.ID, session.StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSubmitted, out.Status)
	assert.Empty(t, out.ReportKey)
}
