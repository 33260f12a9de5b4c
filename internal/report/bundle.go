package report

import (
	"time"

	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/proficiency"
	"github.com/mind-engage/mindengage-coach/internal/session"
)

type BehaviorLine struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Level       string `json:"level"`
	PointValue  int    `json:"point_value"`
	Checked     bool   `json:"checked"`
}

type SubstepReport struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Behaviors   []BehaviorLine     `json:"behaviors"`
	Calculation proficiency.Result `json:"calculation"`
}

type StepReport struct {
	ID          string             `json:"id"`
	Number      int                `json:"step_number"`
	Title       string             `json:"title"`
	Substeps    []SubstepReport    `json:"substeps"`
	Calculation proficiency.Result `json:"calculation"`
	Proficiency proficiency.Record `json:"proficiency"`
}

// Bundle is everything the report renderer needs for one session.
type Bundle struct {
	Session            session.Session    `json:"session"`
	Notes              session.Notes      `json:"notes"`
	FrameworkName      string             `json:"framework_name"`
	Levels             []framework.Level  `json:"levels"`
	StepProficiencies  []StepReport       `json:"stepProficiencies"`
	OverallProficiency proficiency.Record `json:"overallProficiency"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// Assemble resolves substep -> behavior -> level for every step and attaches the
// checked state. Stored proficiency records are used as is; steps without one are
// recomputed from the ledger.
func Assemble(v session.View) Bundle {
	fw := v.Framework
	levels := fw.ScoringLevels()
	checked := v.Ledger.Checked()

	stored := map[int]proficiency.Record{}
	var overall *proficiency.Record
	for _, r := range v.Proficiencies {
		r := r
		switch r.Type {
		case proficiency.TypeStep:
			stored[r.StepNumber] = r
		case proficiency.TypeOverall:
			overall = &r
		}
	}

	b := Bundle{
		Session:       v.Session,
		Notes:         v.Notes,
		FrameworkName: fw.Name,
		Levels:        fw.Levels,
		GeneratedAt:   time.Now().UTC(),
	}

	resolved := make([]proficiency.Resolved, 0, len(fw.Steps))
	for _, st := range fw.Steps {
		sr := StepReport{ID: st.ID, Number: st.Number, Title: st.Title}
		for _, ss := range st.Substeps {
			sub := SubstepReport{
				ID:          ss.ID,
				Title:       ss.Title,
				Calculation: proficiency.Calculate(levels, ss.ScoringBehaviors(), checked),
			}
			for _, bh := range ss.Behaviors {
				lvl, _ := fw.LevelByID(bh.LevelID)
				sub.Behaviors = append(sub.Behaviors, BehaviorLine{
					ID:          bh.ID,
					Description: bh.Description,
					Level:       lvl.Name,
					PointValue:  lvl.PointValue,
					Checked:     checked[bh.ID],
				})
			}
			sr.Substeps = append(sr.Substeps, sub)
		}
		sr.Calculation = proficiency.Calculate(levels, st.ScoringBehaviors(), checked)

		if rec, ok := stored[st.Number]; ok {
			sr.Proficiency = rec
		} else {
			res, err := proficiency.Resolve(sr.Calculation, v.Ledger.Overrides[st.ID], levels)
			if err != nil {
				res, _ = proficiency.Resolve(sr.Calculation, "", levels)
			}
			sr.Proficiency = proficiency.Record{
				SessionID: v.Session.ID, StepID: st.ID, StepNumber: st.Number, Type: proficiency.TypeStep,
				LevelName: res.LevelName, IsManual: res.IsManual,
				PointsEarned: res.PointsEarned, TotalPossible: res.TotalPossible, Percentage: res.Percentage,
			}
		}
		resolved = append(resolved, proficiency.Resolved{
			Result:   proficiency.Result{LevelName: sr.Proficiency.LevelName, PointsEarned: sr.Proficiency.PointsEarned, TotalPossible: sr.Proficiency.TotalPossible},
			IsManual: sr.Proficiency.IsManual,
		})
		b.StepProficiencies = append(b.StepProficiencies, sr)
	}

	if overall != nil {
		b.OverallProficiency = *overall
	} else {
		ov := proficiency.Overall(resolved, levels)
		b.OverallProficiency = proficiency.Record{
			SessionID: v.Session.ID, Type: proficiency.TypeOverall, LevelName: ov.LevelName,
			PointsEarned: ov.PointsEarned, TotalPossible: ov.TotalPossible, Percentage: ov.Percentage,
		}
	}
	return b
}
