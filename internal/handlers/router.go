package handlers

import (
	"log/slog"
	"net/http"

	"adbudget/internal/config"
	"adbudget/internal/middleware"
	"adbudget/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler is the operator API surface: health, on-demand audits and
// reprocessing. The customer-facing product API lives elsewhere.
type Handler struct {
	cfg         config.Config
	campaigns   CampaignStore
	attribution AttributionRunner
	monitor     Auditor
	jobs        JobRunner
	hub         *websocket.Hub
	logger      *slog.Logger
}

func New(cfg config.Config, campaigns CampaignStore, attribution AttributionRunner, monitor Auditor, jobs JobRunner, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		campaigns:   campaigns,
		attribution: attribution,
		monitor:     monitor,
		jobs:        jobs,
		hub:         hub,
		logger:      logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/alarms/pacing", h.PacingAlarms)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/alarms/integrity", h.IntegrityAlarms)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/jobs/reprocess", h.Reprocess)
	router.Get("/ws/alarms", h.WSAlarms)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
