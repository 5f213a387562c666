package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/ace-assistant/internal/middleware"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
)

// RouterConfig holds the HTTP surface options.
type RouterConfig struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// MessageRateLimit bounds exchanges per client per minute.
	MessageRateLimit int
}

// NewRouter wires the handlers into a chi router.
func NewRouter(
	cfg RouterConfig,
	health *HealthHandler,
	conversations *ConversationHandler,
	sessions *SessionHandler,
	log *logger.Logger,
) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 120
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.MessageRateLimit <= 0 {
		cfg.MessageRateLimit = 30
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ClientID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/conversations", conversations.Create)

		r.Route("/assistant", func(r chi.Router) {
			r.Get("/", health.Assistant)

			r.Get("/settings", sessions.GetSettings)
			r.With(middleware.RequireClientID).Put("/settings", sessions.PutSettings)

			r.Post("/transcriptions", sessions.Transcribe)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessions.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", sessions.Get)
					r.With(middleware.ExchangeRateLimit(cfg.MessageRateLimit, time.Minute)).
						Post("/messages", sessions.SendMessage)
					r.Post("/stop", sessions.Stop)
					r.Post("/save", sessions.Save)
					r.Get("/speech", sessions.Speech)
					r.Get("/decisions", sessions.Decisions)
					r.Post("/actions/{actionId}/confirm", sessions.Confirm)
					r.Post("/actions/{actionId}/deny", sessions.Deny)
				})
			})
		})
	})

	return r
}
