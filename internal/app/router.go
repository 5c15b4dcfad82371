package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	companieshttp "github.com/odyssey-erp/companyadmin/internal/companies/http"
	"github.com/odyssey-erp/companyadmin/internal/observability"
	"github.com/odyssey-erp/companyadmin/internal/shared"
	"github.com/odyssey-erp/companyadmin/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	CompaniesHandler *companieshttp.Handler

	// APIHandler is nil when companies come from a remote API.
	APIHandler *companieshttp.APIHandler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with the admin defaults.
func NewRouter(params RouterParams) http.Handler {
	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/companies", http.StatusSeeOther)
	})

	r.Group(func(r chi.Router) {
		for _, mw := range ScreenMiddleware(mwConfig) {
			r.Use(mw)
		}
		r.Route("/companies", params.CompaniesHandler.MountRoutes)
	})

	if params.APIHandler != nil {
		r.Route("/api/companies", params.APIHandler.MountRoutes)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
