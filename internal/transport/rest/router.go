// Package rest exposes the journaling turn pipeline over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/voice-journal/core/internal/journal/model"
	"github.com/voice-journal/core/pkg/metrics"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

// SessionService is the part of the turn processor the API needs.
type SessionService interface {
	Start(ctx context.Context, key model.SessionKey) (*model.ConversationState, error)
	ProcessTurn(ctx context.Context, in model.TurnInput) (*model.TurnResult, error)
	State(ctx context.Context, key model.SessionKey) (*model.ConversationState, error)
	ResetSession(ctx context.Context, key model.SessionKey) error
}

type Config struct {
	Service SessionService
	Metrics *metrics.Collector
	// Ping reports backing store health for /healthz. Optional.
	Ping func(ctx context.Context) error
	// Location decides the default journaling date of new sessions.
	Location *time.Location
	Now      func() time.Time
}

type Router struct {
	handler *SessionHandler
	metrics *metrics.Collector
	ping    func(ctx context.Context) error
}

func NewRouter(cfg Config) *Router {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		handler: NewSessionHandler(cfg.Service, loc, now),
		metrics: cfg.Metrics,
		ping:    cfg.Ping,
	}
}

// Setup wires middleware and routes.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger)
	if rt.metrics != nil {
		router.Use(instrument(rt.metrics))
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Get("/healthz", rt.healthCheck)

	router.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", rt.handler.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", rt.handler.GetSession)
			r.Delete("/", rt.handler.DeleteSession)
			r.Post("/turns", rt.handler.SubmitTurn)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	if rt.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
