package framework

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound = errors.New("framework not found")
	ErrInvalid  = errors.New("invalid framework")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Normalize validates f, resolves behavior level references and replaces every
// id with a fresh server-side one. Client ids only link behaviors to levels and
// must be unique within the framework.
func Normalize(f *Framework) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return invalidf("name required")
	}
	if len(f.Levels) == 0 {
		return invalidf("at least one level required")
	}
	f.ID = uuid.NewString()

	seen := idSet{}
	byName := map[string]string{}
	levelIDs := map[string]string{}
	points := map[int]string{}
	for i := range f.Levels {
		l := &f.Levels[i]
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			return invalidf("level %d: name required", i+1)
		}
		if l.PointValue <= 0 {
			return invalidf("level %q: point_value must be positive", l.Name)
		}
		if other, dup := points[l.PointValue]; dup {
			return invalidf("levels %q and %q share point_value %d", other, l.Name, l.PointValue)
		}
		if _, dup := byName[l.Name]; dup {
			return invalidf("duplicate level name %q", l.Name)
		}
		if err := seen.claim("level", l.ID); err != nil {
			return err
		}
		id := uuid.NewString()
		if l.ID != "" {
			levelIDs[l.ID] = id
		}
		l.ID = id
		if l.DisplayOrder == 0 {
			l.DisplayOrder = i + 1
		}
		points[l.PointValue] = l.Name
		byName[l.Name] = id
	}

	numbers := map[int]bool{}
	for i := range f.Steps {
		s := &f.Steps[i]
		if s.Number == 0 {
			s.Number = i + 1
		}
		if numbers[s.Number] {
			return invalidf("duplicate step number %d", s.Number)
		}
		numbers[s.Number] = true
		if err := seen.claim("step", s.ID); err != nil {
			return err
		}
		s.ID = uuid.NewString()
		for j := range s.Substeps {
			ss := &s.Substeps[j]
			if err := seen.claim("substep", ss.ID); err != nil {
				return err
			}
			ss.ID = uuid.NewString()
			if ss.Position == 0 {
				ss.Position = j + 1
			}
			for k := range ss.Behaviors {
				b := &ss.Behaviors[k]
				if strings.TrimSpace(b.Description) == "" {
					return invalidf("step %d: behavior %d: description required", s.Number, k+1)
				}
				if err := seen.claim("behavior", b.ID); err != nil {
					return err
				}
				levelID, ok := "", false
				if b.LevelID != "" {
					levelID, ok = levelIDs[b.LevelID]
				} else if b.Level != "" {
					levelID, ok = byName[strings.TrimSpace(b.Level)]
				}
				if !ok {
					return invalidf("step %d: behavior %q: unknown level", s.Number, b.Description)
				}
				b.ID = uuid.NewString()
				b.LevelID = levelID
				b.SubstepID = ss.ID
				b.Level = ""
			}
		}
	}
	return nil
}

// idSet tracks client ids per kind.
type idSet map[string]bool

func (s idSet) claim(kind, id string) error {
	if id == "" {
		return nil
	}
	key := kind + "/" + id
	if s[key] {
		return invalidf("duplicate %s id %q", kind, id)
	}
	s[key] = true
	return nil
}

// LoadYAML reads a framework definition file.
func LoadYAML(path string) (Framework, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Framework{}, err
	}
	var f Framework
	if err := yaml.Unmarshal(content, &f); err != nil {
		return Framework{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := Normalize(&f); err != nil {
		return Framework{}, err
	}
	return f, nil
}
