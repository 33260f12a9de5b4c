package framework

import "github.com/mind-engage/mindengage-coach/internal/proficiency"

type Level struct {
	ID           string `json:"id" yaml:"id,omitempty"`
	Name         string `json:"name" yaml:"name"`
	PointValue   int    `json:"point_value" yaml:"point_value"`
	DisplayOrder int    `json:"display_order" yaml:"display_order,omitempty"`
}

type Behavior struct {
	ID          string `json:"id" yaml:"id,omitempty"`
	Description string `json:"description" yaml:"description"`
	LevelID     string `json:"level_id" yaml:"level_id,omitempty"`
	SubstepID   string `json:"substep_id" yaml:"-"`
	// Level is a level name, accepted on input and resolved to LevelID.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

type Substep struct {
	ID        string     `json:"id" yaml:"id,omitempty"`
	Title     string     `json:"title" yaml:"title"`
	Position  int        `json:"position" yaml:"position,omitempty"`
	Behaviors []Behavior `json:"behaviors" yaml:"behaviors"`
}

type Step struct {
	ID       string    `json:"id" yaml:"id,omitempty"`
	Number   int       `json:"step_number" yaml:"number"`
	Title    string    `json:"title" yaml:"title"`
	Substeps []Substep `json:"substeps" yaml:"substeps"`
}

type Framework struct {
	ID          string  `json:"id" yaml:"id,omitempty"`
	TenantID    string  `json:"tenant_id" yaml:"-"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Levels      []Level `json:"levels" yaml:"levels"`
	Steps       []Step  `json:"steps" yaml:"steps"`

	CreatedAt int64 `json:"created_at,omitempty" yaml:"-"`
}

type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Steps     int    `json:"steps"`
	CreatedAt int64  `json:"created_at"`
}

// Step returns the step with the given id.
func (f Framework) Step(id string) (Step, bool) {
	for _, s := range f.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Behavior returns the behavior with the given id.
func (f Framework) Behavior(id string) (Behavior, bool) {
	for _, s := range f.Steps {
		for _, ss := range s.Substeps {
			for _, b := range ss.Behaviors {
				if b.ID == id {
					return b, true
				}
			}
		}
	}
	return Behavior{}, false
}

func (f Framework) LevelByID(id string) (Level, bool) {
	for _, l := range f.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return Level{}, false
}

// --- views for the proficiency package ---

func (f Framework) ScoringLevels() []proficiency.Level {
	out := make([]proficiency.Level, len(f.Levels))
	for i, l := range f.Levels {
		out[i] = proficiency.Level{ID: l.ID, Name: l.Name, PointValue: l.PointValue}
	}
	return out
}

// ScoringBehaviors flattens all substeps of the step.
func (s Step) ScoringBehaviors() []proficiency.Behavior {
	var out []proficiency.Behavior
	for _, ss := range s.Substeps {
		out = append(out, ss.ScoringBehaviors()...)
	}
	return out
}

func (ss Substep) ScoringBehaviors() []proficiency.Behavior {
	out := make([]proficiency.Behavior, len(ss.Behaviors))
	for i, b := range ss.Behaviors {
		out[i] = proficiency.Behavior{ID: b.ID, LevelID: b.LevelID}
	}
	return out
}

func (f Framework) StepInputs() []proficiency.StepInput {
	out := make([]proficiency.StepInput, len(f.Steps))
	for i, s := range f.Steps {
		out[i] = proficiency.StepInput{ID: s.ID, Number: s.Number, Behaviors: s.ScoringBehaviors()}
	}
	return out
}
