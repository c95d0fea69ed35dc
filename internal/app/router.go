package app

import (
	"database/sql"
	"net/http"
	"time"

	"learnpage/internal/app/observability"
	"learnpage/internal/content"
	"learnpage/internal/page"
	"learnpage/internal/report"
	"learnpage/internal/telemetry"
	"learnpage/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg Config, db *sql.DB, rec *telemetry.Recorder) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	limiter := NewIPRateLimiter(cfg.APIRateLimitPerMin, time.Minute)
	r.Use(RateLimitMiddleware(limiter))

	store := content.NewStore(db)
	markSvc := validator.NewService(validator.ServiceConfig{MarkerURL: cfg.MarkerURL})
	pageSvc := page.NewService(store, markSvc, rec, cfg.AssetBasePath)
	pageHandler := page.NewHandler(pageSvc)

	reportSvc := report.NewService(db)
	reportHandler := report.NewHandler(reportSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/pages", pageHandler.ListPages)
		api.Get("/pages/{pageID}", pageHandler.GetPage)
		api.Post("/pages/{pageID}/sessions", pageHandler.OpenSession)

		api.Get("/sessions/{sessionID}", pageHandler.GetSession)
		api.Delete("/sessions/{sessionID}", pageHandler.CloseSession)
		api.Post("/sessions/{sessionID}/parts/{partID}/attempt", pageHandler.Attempt)
		api.Post("/sessions/{sessionID}/parts/{partID}/submit", pageHandler.Submit)
		api.Post("/sessions/{sessionID}/parts/{partID}/hints/{index}", pageHandler.RevealHint)

		api.Group(func(admin chi.Router) {
			admin.Use(AdminKeyMiddleware(cfg.AdminKeyHash))
			admin.Put("/admin/pages/{pageID}", pageHandler.PutPage)
			admin.Get("/admin/reports/summary", reportHandler.PageSummary)
			admin.Get("/admin/reports/events.xlsx", reportHandler.ExportEvents)
		})
	})

	return r
}
