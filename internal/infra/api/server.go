package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"salon-billing/internal/config"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/usecase"
)

// EventParser verifies a raw webhook body against its signature header.
type EventParser interface {
	Parse(payload []byte, sigHeader string) (*model.BillingEvent, error)
}

// Deps are the use cases served over HTTP. Nil admin use cases leave their routes unmounted.
type Deps struct {
	Parser        EventParser
	Dispatcher    usecase.EventDispatcher
	Events        usecase.EventLookup
	Discounts     usecase.DiscountRunner
	Subscriptions usecase.SubscriptionCanceler
	Auth          *AuthManager
	RateLimit     *RateLimit
	// Ready backs /health; nil means always healthy.
	Ready func(ctx context.Context) error
}

type Server struct {
	cfg  config.HTTPConfig
	deps Deps
	log  *zerolog.Logger
	srv  *http.Server
}

func NewServer(cfg config.HTTPConfig, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	s := &Server{cfg: cfg, deps: deps, log: &l}
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.With(Timeout(s.cfg.RequestTimeout)).Post("/webhooks/stripe", s.handleStripeWebhook)

	if s.deps.Auth != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(AdminGuard(s.deps.Auth, s.deps.RateLimit, s.log))
			if s.deps.Discounts != nil {
				// Batch runs are bounded by the server write timeout, not the request timeout.
				r.Post("/referrals/discounts/run", s.handleRunDiscounts)
			}
			r.Group(func(r chi.Router) {
				r.Use(Timeout(s.cfg.RequestTimeout))
				if s.deps.Events != nil {
					r.Get("/webhook-events/{id}", s.handleGetWebhookEvent)
				}
				if s.deps.Subscriptions != nil {
					r.Post("/subscriptions/{id}/cancel", s.handleCancelSubscription)
				}
			})
		})
	}
	return r
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
