package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/academico/academico/internal/audit/http"
	"github.com/academico/academico/internal/auth"
	"github.com/academico/academico/internal/observability"
	"github.com/academico/academico/internal/platform/httpx"
	"github.com/academico/academico/internal/rbac"
	"github.com/academico/academico/internal/roles"
	"github.com/academico/academico/internal/users"
	"github.com/academico/academico/jobs"
)

// Mount points of the JSON API.
const (
	APIPrefix       = "/api/v1"
	LegacyAPIPrefix = "/api"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	AuthHandler  *auth.Handler
	RolesHandler *roles.Handler
	UsersHandler *users.Handler
	ViewsHandler *rbac.ViewsHandler
	AuditHandler *audithttp.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
	Database     HealthChecker
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Database))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	api := chi.NewRouter()
	if params.AuthHandler != nil {
		api.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		api.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		api.Route("/usuarios", params.UsersHandler.MountRoutes)
	}
	if params.ViewsHandler != nil {
		api.Route("/vistas", params.ViewsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		api.Route("/auditoria", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		api.Route("/tareas", params.JobHandler.MountRoutes)
	}
	r.Mount(APIPrefix, api)
	// Unversioned alias for the web client; both prefixes share one router.
	r.Mount(LegacyAPIPrefix, api)

	return r
}

func healthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
