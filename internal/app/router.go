package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/estateline/estateline/internal/authz"
	"github.com/estateline/estateline/internal/observability"
	"github.com/estateline/estateline/internal/platform/httpx"
	"github.com/estateline/estateline/internal/provisioning"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthMiddleware     authz.Middleware
	UsersHandler       *provisioning.Handler
	PermissionsHandler *authz.PermissionsHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(httpx.NotFound)
	r.MethodNotAllowed(httpx.MethodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Every privileged route resolves the caller up front; the handlers then
	// consult the decision engine themselves.
	r.Route("/users", func(r chi.Router) {
		r.Use(RateLimiter(params.Config))
		r.Use(params.AuthMiddleware.ResolveCaller)
		params.UsersHandler.MountRoutes(r)
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(params.AuthMiddleware.ResolveCaller)
		params.PermissionsHandler.MountRoutes(r)
	})

	return r
}
