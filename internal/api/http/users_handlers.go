package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-coach/internal/rbac"
)

type userRow struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`               // usually "coachee"
	Password    string `json:"password,omitempty"` // plaintext, hashed on write
}

// BulkUpsertUsersHandler accepts either a multipart file= (CSV or JSON) or a raw
// JSON array. Users are written into the caller's tenant.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		var rows []userRow
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			// sniff CSV vs JSON by the first byte
			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				http.Error(w, "empty file", http.StatusBadRequest)
				return
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if buf[0] == '[' || buf[0] == '{' {
				if err := json.NewDecoder(f).Decode(&rows); err != nil {
					http.Error(w, "bad json", http.StatusBadRequest)
					return
				}
			} else {
				rs, err := parseCSV(f)
				if err != nil {
					http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
					return
				}
				rows = rs
			}
		} else {
			if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
				http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
				return
			}
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{"inserted": 0, "updated": 0})
			return
		}

		ins, upd, err := upsertUsers(r.Context(), db, p.TenantID, rows)
		if errors.Is(err, errBadUser) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"inserted": ins, "updated": upd})
	}
}

type userOut struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// GET /api/users?role=coachee
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, display_name, role FROM users WHERE tenant_id=$1 ORDER BY username`, p.TenantID)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, display_name, role FROM users WHERE tenant_id=$1 AND role=$2 ORDER BY username`,
				p.TenantID, role)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userOut{}
		for rows.Next() {
			var u userOut
			if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"username", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	get := func(rec []string, col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, userRow{
			ID:          get(rec, "id"),
			Username:    get(rec, "username"),
			DisplayName: get(rec, "display_name"),
			Role:        strings.ToLower(get(rec, "role")),
			Password:    get(rec, "password"),
		})
	}
	return rows, nil
}

var errBadUser = errors.New("invalid user")

func upsertUsers(ctx context.Context, db *sql.DB, tenantID string, rows []userRow) (inserted, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
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

	now := time.Now().Unix()
	for _, u := range rows {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return inserted, updated, errors.Join(errBadUser, errors.New("username required"))
		}
		if u.Role == "" {
			u.Role = rbac.RoleCoachee
		}
		if !rbac.ValidRole(u.Role) {
			return inserted, updated, errors.Join(errBadUser, errors.New("invalid role: "+u.Role))
		}
		var phash string
		if u.Password != "" {
			b, e := bcrypt.GenerateFromPassword([]byte(u.Password), 12)
			if e != nil {
				return inserted, updated, e
			}
			phash = string(b)
		}

		// match by id or username within the tenant
		var existing string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE tenant_id=$1 AND (id=$2 OR username=$3)`,
			tenantID, u.ID, u.Username).Scan(&existing)
		switch {
		case err == nil:
			if phash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, display_name=$2, role=$3, password_hash=$4 WHERE id=$5 AND tenant_id=$6`,
					u.Username, u.DisplayName, u.Role, phash, existing, tenantID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, display_name=$2, role=$3 WHERE id=$4 AND tenant_id=$5`,
					u.Username, u.DisplayName, u.Role, existing, tenantID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		case errors.Is(err, sql.ErrNoRows):
			if phash == "" {
				return inserted, updated, errors.Join(errBadUser, errors.New("password required for new user: "+u.Username))
			}
			if u.ID == "" {
				u.ID = uuid.NewString()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, tenant_id, username, display_name, password_hash, role, created_at)
				 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				u.ID, tenantID, u.Username, u.DisplayName, phash, u.Role, now)
			if err != nil {
				return inserted, updated, err
			}
			inserted++
		default:
			return inserted, updated, err
		}
	}
	return
}
