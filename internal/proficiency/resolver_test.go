package proficiency

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	calc := Calculate(standardLevels(), sampleStep(), set("b1", "b2", "b3"))

	t.Run("absent", func(t *testing.T) {
		r, err := Resolve(calc, "", standardLevels())
		require.NoError(t, err)
		assert.Equal(t, "Qualified", r.LevelName)
		assert.False(t, r.IsManual)
	})
	t.Run("auto", func(t *testing.T) {
		r, err := Resolve(calc, AutoCalculate, standardLevels())
		require.NoError(t, err)
		assert.Equal(t, "Qualified", r.LevelName)
		assert.False(t, r.IsManual)
	})
	t.Run("manual", func(t *testing.T) {
		r, err := Resolve(calc, "Master", standardLevels())
		require.NoError(t, err)
		assert.Equal(t, "Master", r.LevelName)
		assert.Equal(t, "Qualified", r.CalculatedLevel)
		assert.True(t, r.IsManual)
		assert.Equal(t, 4, r.PointsEarned)
		assert.Equal(t, 36, r.Percentage)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := Resolve(calc, "Wizard", standardLevels())
		assert.True(t, errors.Is(err, ErrUnknownLevel))
	})
}

func TestValidOverride(t *testing.T) {
	assert.True(t, ValidOverride("", standardLevels()))
	assert.True(t, ValidOverride(AutoCalculate, standardLevels()))
	assert.True(t, ValidOverride("Learner", standardLevels()))
	assert.False(t, ValidOverride("learner", standardLevels()))
}

func TestOverall(t *testing.T) {
	levels := standardLevels()
	step := func(level string, earned, total int) Resolved {
		return Resolved{Result: Result{LevelName: level, PointsEarned: earned, TotalPossible: total}}
	}

	t.Run("average snaps to nearest", func(t *testing.T) {
		// (1 + 4 + 4) / 3 = 3.0
		res := Overall([]Resolved{step("Learner", 1, 10), step("Master", 9, 10), step("Master", 10, 10)}, levels)
		assert.Equal(t, "Experienced", res.LevelName)
		assert.Equal(t, 20, res.PointsEarned)
		assert.Equal(t, 30, res.TotalPossible)
		assert.Equal(t, 67, res.Percentage)
	})
	t.Run("tie goes to lower level", func(t *testing.T) {
		// (2 + 3) / 2 = 2.5
		res := Overall([]Resolved{step("Qualified", 0, 0), step("Experienced", 0, 0)}, levels)
		assert.Equal(t, "Qualified", res.LevelName)
	})
	t.Run("not evaluated steps skipped", func(t *testing.T) {
		res := Overall([]Resolved{step(NotEvaluated, 0, 0), step("Master", 4, 4)}, levels)
		assert.Equal(t, "Master", res.LevelName)
	})
	t.Run("nothing evaluated", func(t *testing.T) {
		res := Overall([]Resolved{step(NotEvaluated, 0, 0)}, levels)
		assert.Equal(t, NotEvaluated, res.LevelName)
		assert.Zero(t, res.Percentage)
	})
}

func TestEvaluate_ManualOverrideWithoutChecks(t *testing.T) {
	steps := []StepInput{
		{ID: "step1", Number: 1, Behaviors: sampleStep()},
		{ID: "step2", Number: 2, Behaviors: []Behavior{{ID: "c1", LevelID: "q"}}},
	}
	recs, err := Evaluate("s1", standardLevels(), steps, nil, map[string]string{"step1": "Master"})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, Record{
		SessionID: "s1", StepID: "step1", StepNumber: 1, Type: TypeStep,
		LevelName: "Master", IsManual: true, PointsEarned: 0, TotalPossible: 11, Percentage: 0,
	}, recs[0])
	assert.Equal(t, "Learner", recs[1].LevelName)
	assert.False(t, recs[1].IsManual)

	overall := recs[2]
	assert.Equal(t, TypeOverall, overall.Type)
	assert.Empty(t, overall.StepID)
	// (4 + 1) / 2 = 2.5 -> Qualified
	assert.Equal(t, "Qualified", overall.LevelName)
	assert.Equal(t, 13, overall.TotalPossible)
}

func TestEvaluate_BadOverride(t *testing.T) {
	steps := []StepInput{{ID: "step1", Number: 1, Behaviors: sampleStep()}}
	_, err := Evaluate("s1", standardLevels(), steps, nil, map[string]string{"step1": "Guru"})
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestDedupe(t *testing.T) {
	in := []Record{
		{StepNumber: 1, Type: TypeStep, LevelName: "Learner"},
		{StepNumber: 2, Type: TypeStep, LevelName: "Learner"},
		{StepNumber: 1, Type: TypeStep, LevelName: "Master"},
		{StepNumber: 0, Type: TypeOverall, LevelName: "Qualified"},
	}
	out := Dedupe(in)
	require.Len(t, out, 3)
	assert.Equal(t, "Master", out[0].LevelName)
	assert.Equal(t, 2, out[1].StepNumber)
	assert.Equal(t, TypeOverall, out[2].Type)
}
