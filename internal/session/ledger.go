package session

import "sort"

// Score is one recorded row of a session: either a BehaviorCheck or a StepOverride.
type Score interface {
	isScore()
}

type BehaviorCheck struct {
	BehaviorID string
	Checked    bool
}

type StepOverride struct {
	StepID string
	Level  string
}

func (BehaviorCheck) isScore() {}
func (StepOverride) isScore()  {}

const (
	kindBehavior = "behavior"
	kindOverride = "override"
)

// Ledger is the shaped view of a session's scores.
type Ledger struct {
	Checks    map[string]bool
	Overrides map[string]string
}

func NewLedger(scores []Score) Ledger {
	l := Ledger{Checks: map[string]bool{}, Overrides: map[string]string{}}
	for _, s := range scores {
		switch v := s.(type) {
		case BehaviorCheck:
			l.Checks[v.BehaviorID] = v.Checked
		case StepOverride:
			l.Overrides[v.StepID] = v.Level
		}
	}
	return l
}

// Checked returns only the behaviors currently checked.
func (l Ledger) Checked() map[string]bool {
	out := make(map[string]bool, len(l.Checks))
	for id, ok := range l.Checks {
		if ok {
			out[id] = true
		}
	}
	return out
}

func (l Ledger) CheckedIDs() []string {
	out := make([]string, 0, len(l.Checks))
	for id, ok := range l.Checks {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Scores flattens the ledger back into rows, checks first, each group sorted by id.
func (l Ledger) Scores() []Score {
	ids := make([]string, 0, len(l.Checks))
	for id := range l.Checks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	steps := make([]string, 0, len(l.Overrides))
	for id := range l.Overrides {
		steps = append(steps, id)
	}
	sort.Strings(steps)

	out := make([]Score, 0, len(ids)+len(steps))
	for _, id := range ids {
		out = append(out, BehaviorCheck{BehaviorID: id, Checked: l.Checks[id]})
	}
	for _, id := range steps {
		out = append(out, StepOverride{StepID: id, Level: l.Overrides[id]})
	}
	return out
}
