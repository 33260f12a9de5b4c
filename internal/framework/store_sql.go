package framework

import (
	"context"
	"database/sql"
	"errors"
	"time"

	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

type Store interface {
	Create(ctx context.Context, f Framework, actor string) (Framework, error)
	Get(ctx context.Context, tenantID, id string) (Framework, error)
	List(ctx context.Context, tenantID string) ([]Summary, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Create normalizes f and writes it with all levels, steps, substeps and behaviors
// plus a FrameworkCreated event in one transaction.
func (s *SQLStore) Create(ctx context.Context, f Framework, actor string) (out Framework, err error) {
	if f.TenantID == "" {
		return Framework{}, invalidf("tenant required")
	}
	if err = Normalize(&f); err != nil {
		return Framework{}, err
	}
	f.CreatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO frameworks (id, tenant_id, name, description, created_at) VALUES ($1,$2,$3,$4,$5)`,
		f.ID, f.TenantID, f.Name, f.Description, f.CreatedAt); err != nil {
		return
	}
	for _, l := range f.Levels {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO framework_levels (id, framework_id, name, point_value, display_order) VALUES ($1,$2,$3,$4,$5)`,
			l.ID, f.ID, l.Name, l.PointValue, l.DisplayOrder); err != nil {
			return
		}
	}
	for _, st := range f.Steps {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO framework_steps (id, framework_id, step_number, title) VALUES ($1,$2,$3,$4)`,
			st.ID, f.ID, st.Number, st.Title); err != nil {
			return
		}
		for _, ss := range st.Substeps {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO framework_substeps (id, step_id, position, title) VALUES ($1,$2,$3,$4)`,
				ss.ID, st.ID, ss.Position, ss.Title); err != nil {
				return
			}
			for i, b := range ss.Behaviors {
				if _, err = tx.ExecContext(ctx,
					`INSERT INTO framework_behaviors (id, substep_id, level_id, description, position) VALUES ($1,$2,$3,$4,$5)`,
					b.ID, ss.ID, b.LevelID, b.Description, i+1); err != nil {
					return
				}
			}
		}
	}
	if err = syncx.Append(ctx, tx, syncx.NewEvent(f.TenantID, syncx.TypeFrameworkCreated, f.ID, actor,
		map[string]any{"name": f.Name, "steps": len(f.Steps)})); err != nil {
		return
	}
	return f, nil
}

func (s *SQLStore) Get(ctx context.Context, tenantID, id string) (Framework, error) {
	var f Framework
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, description, created_at FROM frameworks WHERE id=$1 AND tenant_id=$2`,
		id, tenantID).Scan(&f.ID, &f.TenantID, &f.Name, &f.Description, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Framework{}, ErrNotFound
	}
	if err != nil {
		return Framework{}, err
	}

	if f.Levels, err = s.levels(ctx, f.ID); err != nil {
		return Framework{}, err
	}
	if f.Steps, err = s.steps(ctx, f.ID); err != nil {
		return Framework{}, err
	}
	return f, nil
}

func (s *SQLStore) levels(ctx context.Context, frameworkID string) ([]Level, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, point_value, display_order FROM framework_levels WHERE framework_id=$1 ORDER BY point_value`,
		frameworkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ID, &l.Name, &l.PointValue, &l.DisplayOrder); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// steps loads the step tree with one query per table and stitches it in memory.
func (s *SQLStore) steps(ctx context.Context, frameworkID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, step_number, title FROM framework_steps WHERE framework_id=$1 ORDER BY step_number`,
		frameworkID)
	if err != nil {
		return nil, err
	}
	var steps []Step
	stepIdx := map[string]int{}
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.ID, &st.Number, &st.Title); err != nil {
			rows.Close()
			return nil, err
		}
		stepIdx[st.ID] = len(steps)
		steps = append(steps, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT ss.id, ss.step_id, ss.position, ss.title
		  FROM framework_substeps ss
		  JOIN framework_steps st ON st.id = ss.step_id
		 WHERE st.framework_id=$1
		 ORDER BY st.step_number, ss.position`, frameworkID)
	if err != nil {
		return nil, err
	}
	type loc struct{ step, sub int }
	subIdx := map[string]loc{}
	for rows.Next() {
		var ss Substep
		var stepID string
		if err := rows.Scan(&ss.ID, &stepID, &ss.Position, &ss.Title); err != nil {
			rows.Close()
			return nil, err
		}
		i, ok := stepIdx[stepID]
		if !ok {
			continue
		}
		subIdx[ss.ID] = loc{i, len(steps[i].Substeps)}
		steps[i].Substeps = append(steps[i].Substeps, ss)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT b.id, b.substep_id, b.level_id, b.description
		  FROM framework_behaviors b
		  JOIN framework_substeps ss ON ss.id = b.substep_id
		  JOIN framework_steps st ON st.id = ss.step_id
		 WHERE st.framework_id=$1
		 ORDER BY b.position`, frameworkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b Behavior
		if err := rows.Scan(&b.ID, &b.SubstepID, &b.LevelID, &b.Description); err != nil {
			return nil, err
		}
		l, ok := subIdx[b.SubstepID]
		if !ok {
			continue
		}
		ss := &steps[l.step].Substeps[l.sub]
		ss.Behaviors = append(ss.Behaviors, b)
	}
	return steps, rows.Err()
}

func (s *SQLStore) List(ctx context.Context, tenantID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.created_at,
		       (SELECT COUNT(1) FROM framework_steps st WHERE st.framework_id = f.id)
		  FROM frameworks f
		 WHERE f.tenant_id=$1
		 ORDER BY f.created_at DESC, f.name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.CreatedAt, &sm.Steps); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
