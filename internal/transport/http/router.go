// Package httptransport assembles the public HTTP surface. It owns route
// layout and middleware ordering; business logic stays in the per-area
// handlers and services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	batchhandler "citeline/internal/batch/handler"
	"citeline/internal/platform/middleware"
	submissionhandler "citeline/internal/submission/handler"
	verificationhandler "citeline/internal/verification/handler"
	"citeline/pkg/platform/httputil"
)

// HealthChecker reports backend liveness for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger      *slog.Logger
	Validator   middleware.TokenValidator
	Submissions *submissionhandler.Handler
	Verify      *verificationhandler.Handler
	Batch       *batchhandler.Handler
	Live        http.Handler

	// Checks run on /healthz; a nil entry is skipped.
	Checks map[string]HealthChecker
}

// New builds the full router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", handleHealth(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Authenticated API surface.
	api := chi.NewRouter()
	api.Use(middleware.Timeout(30 * time.Second))
	api.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
	deps.Submissions.Register(api)
	deps.Verify.Register(api)

	admin := chi.NewRouter()
	admin.Use(middleware.RequireAdmin(deps.Logger))
	deps.Batch.Register(admin)
	api.Mount("/admin", admin)

	r.Mount("/", api)

	// The live channel skips the request timeout; connections are long-lived.
	live := chi.NewRouter()
	live.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
	live.Method(http.MethodGet, "/", deps.Live)
	r.Mount("/ws", live)

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		healthy := true
		for name, check := range deps.Checks {
			if check == nil {
				continue
			}
			if err := check.Health(ctx); err != nil {
				deps.Logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			status["status"] = "degraded"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	}
}
