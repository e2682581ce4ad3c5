package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khaothi-ai/khaothi/internal/api/handlers"
	"github.com/khaothi-ai/khaothi/internal/api/middleware"
)

type RouterConfig struct {
	QueryHandler  *handlers.QueryHandler
	HealthHandler *handlers.HealthHandler
	// QueryTimeout caps one request end to end; zero means the 60s default.
	QueryTimeout time.Duration
	// MaxBodyBytes limits request bodies; zero means the 1 MiB default.
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 60 * time.Second
	}
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	r.Use(middleware.QueryTimeout(queryTimeout))

	r.Get("/health", cfg.HealthHandler.Check)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/answer", cfg.QueryHandler.Answer)
		r.Post("/search", cfg.QueryHandler.Search)
		r.Post("/route", cfg.QueryHandler.Route)
		r.Post("/safety/check", cfg.QueryHandler.SafetyCheck)
	})

	return r
}
