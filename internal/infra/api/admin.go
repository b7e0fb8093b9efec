package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/infra/logging"
)

type runDiscountsRequest struct {
	Emails       []string `json:"emails"`
	ForceUpdated bool     `json:"force_updated"`
	IgnoreMaxCap bool     `json:"ignore_max_cap"`
}

func (s *Server) handleRunDiscounts(w http.ResponseWriter, r *http.Request) {
	var req runDiscountsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l := logging.With(r.Context(), s.log)
	l.Info().Str("subject", subjectFrom(r.Context())).Int("emails", len(req.Emails)).
		Bool("force_updated", req.ForceUpdated).Bool("ignore_max_cap", req.IgnoreMaxCap).
		Msg("discount batch requested")

	report, err := s.deps.Discounts.Run(r.Context(), model.DiscountOptions{
		Emails:       req.Emails,
		ForceUpdated: req.ForceUpdated,
		IgnoreMaxCap: req.IgnoreMaxCap,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type webhookEventResponse struct {
	EventID      string            `json:"event_id"`
	EventType    string            `json:"event_type"`
	Result       model.EventResult `json:"result"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Attempts     int               `json:"attempts"`
	FirstSeenAt  time.Time         `json:"first_seen_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (s *Server) handleGetWebhookEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.Events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookEventResponse{
		EventID:      ev.EventID,
		EventType:    ev.EventType,
		Result:       ev.Result,
		ErrorMessage: ev.ErrorMessage,
		Attempts:     ev.Attempts,
		FirstSeenAt:  ev.FirstSeenAt,
		UpdatedAt:    ev.UpdatedAt,
	})
}

type subscriptionResponse struct {
	ID               string    `json:"id"`
	CustomerID       string    `json:"customer_id"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Subscriptions.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{
		ID:               snap.ID,
		CustomerID:       snap.CustomerID,
		Status:           snap.Status,
		CurrentPeriodEnd: snap.CurrentPeriodEnd,
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBatchInProgress):
		writeError(w, http.StatusConflict, "batch already in progress")
	case errors.Is(err, domain.ErrTransient):
		writeError(w, http.StatusBadGateway, "billing provider unavailable")
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
