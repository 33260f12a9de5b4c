package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-coach/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one stored for the user, so
// role changes and removed users take effect before the token expires.
// allowClaimFallback=true keeps the claim when the users row is missing (dev only).
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := rbac.PrincipalFromContext(ctx)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var role string
			err := db.QueryRowContext(ctx,
				`SELECT role FROM users WHERE id=$1 AND tenant_id=$2`, p.ID, p.TenantID).Scan(&role)

			switch {
			case err == nil && rbac.ValidRole(role):
				p.SystemRole = role
				next.ServeHTTP(w, r.WithContext(rbac.WithPrincipal(ctx, p)))
			case errors.Is(err, sql.ErrNoRows) && allowClaimFallback:
				next.ServeHTTP(w, r)
			case err != nil && !errors.Is(err, sql.ErrNoRows):
				http.Error(w, err.Error(), http.StatusInternalServerError)
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
