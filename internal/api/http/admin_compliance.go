package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

// -----------------------------
// Admin: Compliance & Audit
// -----------------------------

// HandleAdminPIIExport returns the stored personal data of one user of the
// caller's tenant as a downloadable JSON file.
func HandleAdminPIIExport(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}

		var id, username, displayName, role string
		var createdAt int64
		err := db.QueryRowContext(r.Context(),
			`SELECT id, username, display_name, role, created_at FROM users
			  WHERE tenant_id=$1 AND (id=$2 OR username=$2)`, p.TenantID, req.UserID).
			Scan(&id, &username, &displayName, &role, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var coached, coachee int
		if err := db.QueryRowContext(r.Context(),
			`SELECT
			   (SELECT COUNT(1) FROM sessions WHERE tenant_id=$1 AND coach_id=$2),
			   (SELECT COUNT(1) FROM sessions WHERE tenant_id=$1 AND coachee_id=$2)`,
			p.TenantID, id).Scan(&coached, &coachee); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "pii_"+id+".json"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                id,
			"username":          username,
			"display_name":      displayName,
			"role":              role,
			"created_at":        createdAt,
			"sessions_as_coach":   coached,
			"sessions_as_coachee": coachee,
		})
	}
}

// HandleAdminPIIDelete anonymizes a user. Sessions stay in place so that
// submitted reports keep their history.
func HandleAdminPIIDelete(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}
		if req.UserID == p.ID {
			http.Error(w, "cannot delete yourself", http.StatusBadRequest)
			return
		}
		res, err := db.ExecContext(r.Context(),
			`UPDATE users SET username=$1, display_name='', password_hash=''
			  WHERE tenant_id=$2 AND (id=$3 OR username=$3)`,
			"deleted-"+uuid.NewString()[:8], p.TenantID, req.UserID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// HandleAdminAuditSearch lists recent tenant events whose type or key contains q.
func HandleAdminAuditSearch(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := events.Search(r.Context(), p.TenantID, r.URL.Query().Get("q"), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
