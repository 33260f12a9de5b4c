package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mind-engage/mindengage-coach/internal/proficiency"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

type Store interface {
	Create(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, tenantID, id string) (Session, error)
	List(ctx context.Context, opts ListOpts) ([]Session, error)

	Notes(ctx context.Context, sessionID string) (Notes, error)
	Scores(ctx context.Context, sessionID string) ([]Score, error)
	Proficiencies(ctx context.Context, sessionID string) ([]proficiency.Record, error)

	// Save replaces notes, scores and proficiencies of a draft session atomically.
	Save(ctx context.Context, rec SaveRecord) error
	// SetStatus moves a draft session to status; anything else is ErrNotDraft.
	SetStatus(ctx context.Context, tenantID, id, actor string, status Status) (Session, error)
	SetReportKey(ctx context.Context, tenantID, id, key string) error

	// UserExists reports whether userID is an account of tenantID.
	UserExists(ctx context.Context, tenantID, userID string) (bool, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) UserExists(ctx context.Context, tenantID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1 AND tenant_id=$2`, userID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

const sessionCols = `id, tenant_id, framework_id, coach_id, coachee_id, title, context, status, report_key, created_at, updated_at, submitted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	var status string
	var submitted sql.NullInt64
	if err := row.Scan(&s.ID, &s.TenantID, &s.FrameworkID, &s.CoachID, &s.CoacheeID, &s.Title,
		&s.Context, &status, &s.ReportKey, &s.CreatedAt, &s.UpdatedAt, &submitted); err != nil {
		return Session{}, err
	}
	s.Status = Status(status)
	if submitted.Valid {
		v := submitted.Int64
		s.SubmittedAt = &v
	}
	return s, nil
}

func (st *SQLStore) Create(ctx context.Context, s Session) (Session, error) {
	now := time.Now().Unix()
	s.Status = StatusDraft
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := st.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULL)`,
		s.ID, s.TenantID, s.FrameworkID, s.CoachID, s.CoacheeID, s.Title, s.Context,
		string(s.Status), s.ReportKey, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func (st *SQLStore) Get(ctx context.Context, tenantID, id string) (Session, error) {
	s, err := scanSession(st.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id=$1 AND tenant_id=$2`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

func (st *SQLStore) List(ctx context.Context, opts ListOpts) ([]Session, error) {
	q := `SELECT ` + sessionCols + ` FROM sessions WHERE tenant_id=$1`
	args := []any{opts.TenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(cond, len(args))
	}
	if opts.CoachID != "" {
		add(` AND coach_id=$%d`, opts.CoachID)
	}
	if opts.CoacheeID != "" {
		add(` AND coachee_id=$%d`, opts.CoacheeID)
	}
	if opts.ParticipantID != "" {
		args = append(args, opts.ParticipantID)
		n := strconv.Itoa(len(args))
		q += ` AND (coach_id=$` + n + ` OR coachee_id=$` + n + `)`
	}
	if opts.Status != "" {
		add(` AND status=$%d`, string(opts.Status))
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	q += ` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := st.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (st *SQLStore) Notes(ctx context.Context, sessionID string) (Notes, error) {
	var n Notes
	err := st.db.QueryRowContext(ctx,
		`SELECT strengths, improvements, action_items, general_notes FROM session_notes WHERE session_id=$1`,
		sessionID).Scan(&n.Strengths, &n.Improvements, &n.ActionItems, &n.General)
	if errors.Is(err, sql.ErrNoRows) {
		return Notes{}, nil
	}
	return n, err
}

func (st *SQLStore) Scores(ctx context.Context, sessionID string) ([]Score, error) {
	rows, err := st.db.QueryContext(ctx,
		`SELECT kind, behavior_id, checked, step_id, step_level FROM session_scores WHERE session_id=$1 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Score
	for rows.Next() {
		var kind string
		var behaviorID, stepID, level sql.NullString
		var checked sql.NullBool
		if err := rows.Scan(&kind, &behaviorID, &checked, &stepID, &level); err != nil {
			return nil, err
		}
		switch kind {
		case kindBehavior:
			out = append(out, BehaviorCheck{BehaviorID: behaviorID.String, Checked: checked.Bool})
		case kindOverride:
			out = append(out, StepOverride{StepID: stepID.String, Level: level.String})
		default:
			return nil, fmt.Errorf("session_scores: unknown kind %q", kind)
		}
	}
	return out, rows.Err()
}

func (st *SQLStore) Proficiencies(ctx context.Context, sessionID string) ([]proficiency.Record, error) {
	rows, err := st.db.QueryContext(ctx, `
		SELECT session_id, step_id, step_number, proficiency_type, level_name, is_manual,
		       points_earned, total_possible, percentage
		  FROM session_proficiencies
		 WHERE session_id=$1
		 ORDER BY CASE WHEN proficiency_type='overall' THEN 1 ELSE 0 END, step_number`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []proficiency.Record{}
	for rows.Next() {
		var r proficiency.Record
		var typ string
		if err := rows.Scan(&r.SessionID, &r.StepID, &r.StepNumber, &typ, &r.LevelName, &r.IsManual,
			&r.PointsEarned, &r.TotalPossible, &r.Percentage); err != nil {
			return nil, err
		}
		r.Type = proficiency.Type(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

// lockDraft touches the session row inside tx, failing unless it is a draft of tenantID.
func lockDraft(ctx context.Context, tx *sql.Tx, tenantID, id string, set string, args ...any) error {
	base := len(args)
	q := `UPDATE sessions SET ` + set + ` WHERE id=$` + strconv.Itoa(base+1) +
		` AND tenant_id=$` + strconv.Itoa(base+2) + ` AND status='draft'`
	res, err := tx.ExecContext(ctx, q, append(args, id, tenantID)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1 AND tenant_id=$2`, id, tenantID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNotDraft
}

func (st *SQLStore) Save(ctx context.Context, rec SaveRecord) (err error) {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	if err = lockDraft(ctx, tx, rec.TenantID, rec.SessionID, `context=$1, updated_at=$2`, rec.Context, now); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO session_notes (session_id, strengths, improvements, action_items, general_notes, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO UPDATE SET
			strengths=EXCLUDED.strengths,
			improvements=EXCLUDED.improvements,
			action_items=EXCLUDED.action_items,
			general_notes=EXCLUDED.general_notes,
			updated_at=EXCLUDED.updated_at`,
		rec.SessionID, rec.Notes.Strengths, rec.Notes.Improvements, rec.Notes.ActionItems, rec.Notes.General, now); err != nil {
		return fmt.Errorf("notes: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_scores WHERE session_id=$1`, rec.SessionID); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	for _, s := range rec.Scores {
		switch v := s.(type) {
		case BehaviorCheck:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO session_scores (session_id, kind, behavior_id, checked) VALUES ($1,$2,$3,$4)`,
				rec.SessionID, kindBehavior, v.BehaviorID, v.Checked)
		case StepOverride:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO session_scores (session_id, kind, step_id, step_level) VALUES ($1,$2,$3,$4)`,
				rec.SessionID, kindOverride, v.StepID, v.Level)
		}
		if err != nil {
			return fmt.Errorf("insert scores: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_proficiencies WHERE session_id=$1`, rec.SessionID); err != nil {
		return fmt.Errorf("delete proficiencies: %w", err)
	}
	for _, r := range proficiency.Dedupe(rec.Records) {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO session_proficiencies
			  (session_id, step_id, step_number, proficiency_type, level_name, is_manual, points_earned, total_possible, percentage)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			rec.SessionID, r.StepID, r.StepNumber, string(r.Type), r.LevelName, r.IsManual,
			r.PointsEarned, r.TotalPossible, r.Percentage); err != nil {
			return fmt.Errorf("insert proficiencies: %w", err)
		}
	}

	err = syncx.Append(ctx, tx, syncx.NewEvent(rec.TenantID, syncx.TypeSessionSaved, rec.SessionID, rec.Actor,
		map[string]int{"scores": len(rec.Scores), "proficiencies": len(rec.Records)}))
	return err
}

func (st *SQLStore) SetStatus(ctx context.Context, tenantID, id, actor string, status Status) (out Session, err error) {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	var submitted any
	if status == StatusSubmitted {
		submitted = now
	}
	if err = lockDraft(ctx, tx, tenantID, id, `status=$1, updated_at=$2, submitted_at=$3`, string(status), now, submitted); err != nil {
		return Session{}, err
	}
	if err = syncx.Append(ctx, tx, syncx.NewEvent(tenantID, syncx.TypeSessionStatus, id, actor,
		map[string]string{"status": string(status)})); err != nil {
		return Session{}, err
	}
	out, err = scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id=$1 AND tenant_id=$2`, id, tenantID))
	return out, err
}

func (st *SQLStore) SetReportKey(ctx context.Context, tenantID, id, key string) error {
	_, err := st.db.ExecContext(ctx,
		`UPDATE sessions SET report_key=$1 WHERE id=$2 AND tenant_id=$3`, key, id, tenantID)
	return err
}
