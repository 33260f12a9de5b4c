package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/rbac"
	"github.com/mind-engage/mindengage-coach/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unrecognized is a 500
// carrying the error text.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalid), errors.Is(err, framework.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case session.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrNotDraft):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// principal returns the authenticated caller or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok || p.ID == "" || p.TenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return rbac.Principal{}, false
	}
	return p, true
}
