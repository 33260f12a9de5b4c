package proficiency

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// AutoCalculate is the override value that keeps the calculated level.
const AutoCalculate = "Auto-Calculate"

var ErrUnknownLevel = errors.New("unknown proficiency level")

// Resolved is a calculation after the coach's override has been applied.
// Points and percentage always come from the calculation.
type Resolved struct {
	Result
	CalculatedLevel string `json:"calculated_level"`
	IsManual        bool   `json:"is_manual"`
}

// Resolve applies an optional manual override to a calculation.
// An empty override or AutoCalculate keeps the calculated level.
func Resolve(calc Result, override string, levels []Level) (Resolved, error) {
	out := Resolved{Result: calc, CalculatedLevel: calc.LevelName}
	override = strings.TrimSpace(override)
	if override == "" || override == AutoCalculate {
		return out, nil
	}
	if _, ok := levelByName(levels, override); !ok {
		return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownLevel, override)
	}
	out.LevelName = override
	out.IsManual = true
	return out, nil
}

// ValidOverride reports whether v is acceptable as a step override.
func ValidOverride(v string, levels []Level) bool {
	v = strings.TrimSpace(v)
	if v == "" || v == AutoCalculate {
		return true
	}
	_, ok := levelByName(levels, v)
	return ok
}

// Overall aggregates resolved steps into the session-wide result.
// Points are summed; the level is the mean point value of every evaluated step's
// resolved level, snapped to the nearest framework level. Ties go to the lower level.
func Overall(steps []Resolved, levels []Level) Result {
	ordered := SortLevels(levels)
	res := Result{LevelName: NotEvaluated}

	sum, n := 0, 0
	for _, s := range steps {
		res.PointsEarned += s.PointsEarned
		res.TotalPossible += s.TotalPossible
		if l, ok := levelByName(ordered, s.LevelName); ok {
			sum += l.PointValue
			n++
		}
	}
	res.Percentage = Percentage(res.PointsEarned, res.TotalPossible)
	if n == 0 || len(ordered) == 0 {
		return res
	}

	avg := float64(sum) / float64(n)
	best, bestDist := ordered[0], math.Inf(1)
	for _, l := range ordered {
		if d := math.Abs(float64(l.PointValue) - avg); d < bestDist {
			best, bestDist = l, d
		}
	}
	res.LevelName = best.Name
	return res
}

func levelByName(levels []Level, name string) (Level, bool) {
	for _, l := range levels {
		if l.Name == name {
			return l, true
		}
	}
	return Level{}, false
}
