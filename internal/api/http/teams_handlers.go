package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type teamIn struct {
	Name      string   `json:"name"`
	CoachID   string   `json:"coach_id"`
	MemberIDs []string `json:"member_ids"`
}

type teamOut struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CoachID     string    `json:"coach_id,omitempty"`
	MemberCount int       `json:"member_count"`
	Members     []userOut `json:"members,omitempty"`
	CreatedAt   int64     `json:"created_at"`
}

var (
	errBadTeam      = errors.New("bad team")
	errTeamNotFound = errors.New("team not found")
	errTeamExists   = errors.New("team name already used")
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func writeTeamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadTeam):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, errTeamNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errTeamExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func ListTeamsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		rows, err := db.QueryContext(r.Context(), `
			SELECT t.id, t.name, t.coach_id, t.created_at,
			       (SELECT COUNT(1) FROM team_members m WHERE m.team_id = t.id)
			  FROM teams t
			 WHERE t.tenant_id=$1
			 ORDER BY t.name`, p.TenantID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []teamOut{}
		for rows.Next() {
			var t teamOut
			if err := rows.Scan(&t.ID, &t.Name, &t.CoachID, &t.CreatedAt, &t.MemberCount); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, t)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateTeamHandler creates a team in the caller's tenant. The coach and every
// member must be users of that tenant.
func CreateTeamHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		var in teamIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		id, err := createTeam(r.Context(), db, p.TenantID, in)
		if err != nil {
			writeTeamError(w, err)
			return
		}
		t, err := loadTeam(r.Context(), db, p.TenantID, id)
		if err != nil {
			writeTeamError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func GetTeamHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		t, err := loadTeam(r.Context(), db, p.TenantID, chi.URLParam(r, "teamID"))
		if err != nil {
			writeTeamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// SetTeamMembersHandler replaces the member list of a team.
func SetTeamMembersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		var req struct {
			MemberIDs []string `json:"member_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		teamID := chi.URLParam(r, "teamID")
		if err := replaceMembers(r.Context(), db, p.TenantID, teamID, req.MemberIDs); err != nil {
			writeTeamError(w, err)
			return
		}
		t, err := loadTeam(r.Context(), db, p.TenantID, teamID)
		if err != nil {
			writeTeamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func DeleteTeamHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		if err := deleteTeam(r.Context(), db, p.TenantID, chi.URLParam(r, "teamID")); err != nil {
			writeTeamError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createTeam(ctx context.Context, db *sql.DB, tenantID string, in teamIn) (id string, err error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CoachID = strings.TrimSpace(in.CoachID)
	if in.Name == "" {
		return "", fmt.Errorf("%w: name required", errBadTeam)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE tenant_id=$1 AND name=$2`, tenantID, in.Name).Scan(&one)
	switch {
	case err == nil:
		return "", fmt.Errorf("%w: %q", errTeamExists, in.Name)
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}
	if in.CoachID != "" {
		if err = requireTenantUsers(ctx, tx, tenantID, []string{in.CoachID}); err != nil {
			return "", err
		}
	}

	id = uuid.NewString()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO teams (id, tenant_id, name, coach_id, created_at) VALUES ($1,$2,$3,$4,$5)`,
		id, tenantID, in.Name, in.CoachID, time.Now().Unix()); err != nil {
		return "", err
	}
	if err = insertMembers(ctx, tx, tenantID, id, in.MemberIDs); err != nil {
		return "", err
	}
	return id, nil
}

func replaceMembers(ctx context.Context, db *sql.DB, tenantID, teamID string, memberIDs []string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
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

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id=$1 AND tenant_id=$2`, teamID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return errTeamNotFound
	}
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id=$1`, teamID); err != nil {
		return err
	}
	return insertMembers(ctx, tx, tenantID, teamID, memberIDs)
}

func deleteTeam(ctx context.Context, db *sql.DB, tenantID, teamID string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
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

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id IN (SELECT id FROM teams WHERE id=$1 AND tenant_id=$2)`,
		teamID, tenantID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id=$1 AND tenant_id=$2`, teamID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errTeamNotFound
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, tenantID, teamID string, memberIDs []string) error {
	seen := map[string]bool{}
	var ids []string
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if err := requireTenantUsers(ctx, tx, tenantID, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id) VALUES ($1,$2)`, teamID, id); err != nil {
			return err
		}
	}
	return nil
}

// requireTenantUsers fails with errBadTeam for the first id that is not a user
// of tenantID.
func requireTenantUsers(ctx context.Context, q queryer, tenantID string, ids []string) error {
	for _, id := range ids {
		var one int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1 AND tenant_id=$2`, id, tenantID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown user %q", errBadTeam, id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func loadTeam(ctx context.Context, q queryer, tenantID, teamID string) (teamOut, error) {
	var t teamOut
	err := q.QueryRowContext(ctx,
		`SELECT id, name, coach_id, created_at FROM teams WHERE id=$1 AND tenant_id=$2`,
		teamID, tenantID).Scan(&t.ID, &t.Name, &t.CoachID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return teamOut{}, errTeamNotFound
	}
	if err != nil {
		return teamOut{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.role
		  FROM team_members m
		  JOIN users u ON u.id = m.user_id
		 WHERE m.team_id=$1 AND u.tenant_id=$2
		 ORDER BY u.username`, teamID, tenantID)
	if err != nil {
		return teamOut{}, err
	}
	defer rows.Close()
	t.Members = []userOut{}
	for rows.Next() {
		var u userOut
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role); err != nil {
			return teamOut{}, err
		}
		t.Members = append(t.Members, u)
	}
	t.MemberCount = len(t.Members)
	return t, rows.Err()
}
