package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/catsync/catsync/internal/bulk"
	"github.com/catsync/catsync/internal/importer"
	"github.com/catsync/catsync/internal/importlog"
	"github.com/catsync/catsync/internal/observability"
	"github.com/catsync/catsync/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ImportHandler *importer.Handler
	LogHandler    *importlog.Handler
	BulkHandler   *bulk.Handler
	JobHandler    *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with catsync defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		var hash string
		if params.Config != nil {
			hash = params.Config.APITokenBcrypt
		}
		r.Use(BearerAuth(params.Logger, hash))

		params.ImportHandler.MountRoutes(r)
		if params.LogHandler != nil {
			params.LogHandler.MountRoutes(r)
		}
		if params.BulkHandler != nil {
			params.BulkHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
