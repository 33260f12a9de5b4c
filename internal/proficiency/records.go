package proficiency

import "fmt"

type Type string

const (
	TypeStep    Type = "step"
	TypeOverall Type = "overall"
)

// Record is one persisted proficiency row. Overall rows have no step.
type Record struct {
	SessionID     string `json:"session_id"`
	StepID        string `json:"step_id,omitempty"`
	StepNumber    int    `json:"step_number"`
	Type          Type   `json:"proficiency_type"`
	LevelName     string `json:"level_name"`
	IsManual      bool   `json:"is_manual"`
	PointsEarned  int    `json:"points_earned"`
	TotalPossible int    `json:"total_possible"`
	Percentage    int    `json:"percentage"`
}

// StepInput is one step of a framework as seen by Evaluate.
type StepInput struct {
	ID        string
	Number    int
	Behaviors []Behavior
}

// Evaluate computes one record per step plus the overall record.
// overrides maps step id to a level name or AutoCalculate.
func Evaluate(sessionID string, levels []Level, steps []StepInput, checked map[string]bool, overrides map[string]string) ([]Record, error) {
	resolved := make([]Resolved, 0, len(steps))
	out := make([]Record, 0, len(steps)+1)
	for _, s := range steps {
		r, err := Resolve(Calculate(levels, s.Behaviors, checked), overrides[s.ID], levels)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", s.Number, err)
		}
		resolved = append(resolved, r)
		out = append(out, Record{
			SessionID:     sessionID,
			StepID:        s.ID,
			StepNumber:    s.Number,
			Type:          TypeStep,
			LevelName:     r.LevelName,
			IsManual:      r.IsManual,
			PointsEarned:  r.PointsEarned,
			TotalPossible: r.TotalPossible,
			Percentage:    r.Percentage,
		})
	}
	ov := Overall(resolved, levels)
	out = append(out, Record{
		SessionID:     sessionID,
		Type:          TypeOverall,
		LevelName:     ov.LevelName,
		PointsEarned:  ov.PointsEarned,
		TotalPossible: ov.TotalPossible,
		Percentage:    ov.Percentage,
	})
	return out, nil
}

// Dedupe keeps one record per (step number, type). The last value wins but the
// position of the first occurrence is kept.
func Dedupe(records []Record) []Record {
	type key struct {
		n int
		t Type
	}
	pos := make(map[key]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := key{r.StepNumber, r.Type}
		if i, ok := pos[k]; ok {
			out[i] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out
}
