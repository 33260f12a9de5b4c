package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	auth "github.com/mind-engage/mindengage-coach/internal/auth/middleware"
	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/rbac"
	"github.com/mind-engage/mindengage-coach/internal/session"
	"github.com/mind-engage/mindengage-coach/internal/storage"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

type Deps struct {
	DB         *sql.DB
	Auth       *auth.AuthService
	Sessions   *session.Service
	Frameworks framework.Store
	Events     *syncx.EventRepo
	Blobs      storage.BlobStore

	EnableLogin bool
	RoleFromDB  bool
}

// NewRouter mounts every route on a fresh chi router. Callers add transport
// middleware such as CORS and request logging.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	if d.EnableLogin {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.DB))
	}
	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(d.DB))

	// Protected API (JWT → principal in context → RBAC)
	r.Route("/api", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.RoleFromDB {
			pr.Use(auth.AttachRoleFromDB(d.DB, false))
		}

		pr.With(rbac.Require("framework:view")).Get("/frameworks", ListFrameworksHandler(d.Frameworks))
		pr.With(rbac.Require("framework:create")).Post("/frameworks", CreateFrameworkHandler(d.Frameworks))
		pr.With(rbac.Require("framework:view")).Get("/frameworks/{id}", GetFrameworkHandler(d.Frameworks))

		pr.With(rbac.Require("session:view")).Get("/sessions", ListSessionsHandler(d.Sessions))
		pr.With(rbac.Require("session:create")).Post("/sessions", CreateSessionHandler(d.Sessions))
		pr.With(rbac.Require("session:view")).Get("/sessions/{id}", GetSessionHandler(d.Sessions))
		pr.With(rbac.Require("session:save")).Put("/sessions/{id}/save", SaveSessionHandler(d.Sessions))
		pr.With(rbac.Require("session:view")).Post("/sessions/{id}/calculate", CalculateSessionHandler(d.Sessions))
		pr.With(rbac.Require("session:status")).Patch("/sessions/{id}/status", UpdateSessionStatusHandler(d.Sessions))
		pr.With(rbac.Require("report:view")).Get("/sessions/{id}/report", ReportBundleHandler(d.Sessions))
		pr.With(rbac.Require("report:view")).Get("/sessions/{id}/report/file", ReportFileHandler(d.Sessions, d.Blobs))

		pr.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.DB))
		pr.With(rbac.Require("users:bulk_upsert")).Post("/users/bulk", BulkUpsertUsersHandler(d.DB))
		pr.With(rbac.Require("user:change_password")).Post("/users/change-password", ChangePasswordHandler(d.DB))

		pr.With(rbac.Require("teams:view")).Get("/teams", ListTeamsHandler(d.DB))
		pr.With(rbac.Require("teams:manage")).Post("/teams", CreateTeamHandler(d.DB))
		pr.With(rbac.Require("teams:view")).Get("/teams/{teamID}", GetTeamHandler(d.DB))
		pr.With(rbac.Require("teams:manage")).Put("/teams/{teamID}/members", SetTeamMembersHandler(d.DB))
		pr.With(rbac.Require("teams:manage")).Delete("/teams/{teamID}", DeleteTeamHandler(d.DB))

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require("admin:identity")).Patch("/users/{userID}", AdminUpdateUserRoleHandler(d.DB))
			ar.With(rbac.Require("admin:compliance")).Post("/pii/export", HandleAdminPIIExport(d.DB))
			ar.With(rbac.Require("admin:compliance")).Post("/pii/delete", HandleAdminPIIDelete(d.DB))
			if d.Events != nil {
				ar.With(rbac.Require("admin:compliance")).Get("/audit", HandleAdminAuditSearch(d.Events))
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}
