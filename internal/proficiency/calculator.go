package proficiency

import (
	"math"
	"sort"
)

// NotEvaluated is reported for any scope without behaviors.
const NotEvaluated = "Not Evaluated"

// Level is a minimal view of a framework level needed for scoring.
type Level struct {
	ID         string
	Name       string
	PointValue int
}

// Behavior is a minimal view of a framework behavior needed for scoring.
type Behavior struct {
	ID      string
	LevelID string
}

// Threshold is the cumulative point range that resolves to Level.
// Min > Max means the range is empty (no behaviors at that level).
type Threshold struct {
	Level      string `json:"level"`
	PointValue int    `json:"point_value"`
	Min        int    `json:"min"`
	Max        int    `json:"max"`
}

// Result is the diagnostic breakdown for one scope (step, substep or overall).
type Result struct {
	LevelName     string      `json:"level_name"`
	Percentage    int         `json:"percentage"`
	PointsEarned  int         `json:"points_earned"`
	TotalPossible int         `json:"total_possible"`
	Thresholds    []Threshold `json:"thresholds,omitempty"`
}

// SortLevels returns a copy of levels ordered by point value, lowest first.
func SortLevels(levels []Level) []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PointValue < out[j].PointValue })
	return out
}

// Calculate resolves the proficiency level for the behaviors in scope.
// The same function serves a whole step (all substeps flattened) and a single substep.
// Behaviors whose level is not part of levels are ignored.
func Calculate(levels []Level, behaviors []Behavior, checked map[string]bool) Result {
	ordered := SortLevels(levels)
	idx := make(map[string]int, len(ordered))
	for i, l := range ordered {
		idx[l.ID] = i
	}

	levelCounts := make([]int, len(ordered))
	checkedCounts := make([]int, len(ordered))
	inScope := 0
	for _, b := range behaviors {
		i, ok := idx[b.LevelID]
		if !ok {
			continue
		}
		inScope++
		levelCounts[i]++
		if checked[b.ID] {
			checkedCounts[i]++
		}
	}
	if inScope == 0 {
		return Result{LevelName: NotEvaluated}
	}

	res := Result{}
	for i, l := range ordered {
		res.PointsEarned += checkedCounts[i] * l.PointValue
		res.TotalPossible += levelCounts[i] * l.PointValue
	}
	res.Thresholds = buildThresholds(ordered, levelCounts, res.TotalPossible)
	res.LevelName = assign(res.Thresholds, res.PointsEarned)
	res.Percentage = Percentage(res.PointsEarned, res.TotalPossible)
	return res
}

// buildThresholds accumulates count*point_value per level in ascending order.
// The first range starts at 0, every following one at previous max + 1, and the
// last one always ends at total.
func buildThresholds(ordered []Level, counts []int, total int) []Threshold {
	out := make([]Threshold, len(ordered))
	prevMax := 0
	for i, l := range ordered {
		bucket := counts[i] * l.PointValue
		t := Threshold{Level: l.Name, PointValue: l.PointValue}
		if i == 0 {
			t.Min, t.Max = 0, bucket
		} else {
			t.Min, t.Max = prevMax+1, prevMax+bucket
		}
		if i == len(ordered)-1 {
			t.Max = total
		}
		prevMax = t.Max
		out[i] = t
	}
	return out
}

// assign walks the thresholds from the top down and returns the first level whose
// minimum is reached. Zero points always resolve to the lowest level.
func assign(thresholds []Threshold, earned int) string {
	if len(thresholds) == 0 {
		return NotEvaluated
	}
	if earned > 0 {
		for i := len(thresholds) - 1; i > 0; i-- {
			if earned >= thresholds[i].Min {
				return thresholds[i].Level
			}
		}
	}
	return thresholds[0].Level
}

// Percentage returns round(earned/total*100), or 0 when total is 0.
func Percentage(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}
