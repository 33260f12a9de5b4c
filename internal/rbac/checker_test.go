package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has(RoleCoach, "session:save"))
	assert.False(t, c.Has(RoleCoachee, "session:save"))
	assert.True(t, c.Has(RoleAdmin, "anything:at-all"))
	assert.False(t, c.Has("guest", "session:view"))

	wild := NewChecker(map[string][]string{"ops": {"session:*"}})
	assert.True(t, wild.Has("ops", "session:status"))
	assert.False(t, wild.Has("ops", "framework:create"))
	assert.True(t, wild.Any("ops", "framework:create", "session:view"))
	assert.False(t, wild.All("ops", "framework:create", "session:view"))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{ID: "u1", TenantID: "t1", SystemRole: RoleAdmin})
	p, ok := PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, RoleAdmin, RoleFromContext(ctx))
}

func TestRequire(t *testing.T) {
	h := Require("session:save")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		RoleCoach:   http.StatusNoContent,
		RoleCoachee: http.StatusForbidden,
		"":          http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		if role != "" {
			req = req.WithContext(WithPrincipal(req.Context(), Principal{ID: "u", TenantID: "t", SystemRole: role}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}
