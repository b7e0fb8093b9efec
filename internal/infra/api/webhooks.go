package api

import (
	"errors"
	"io"
	"net/http"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/usecase"
	"salon-billing/internal/infra/logging"
)

const signatureHeader = "Stripe-Signature"

type webhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}

func ackStatus(res usecase.DispatchResult) string {
	switch {
	case res.AlreadyProcessed:
		return "duplicate"
	case res.Result == model.EventResultSkipped:
		return "skipped"
	default:
		return "processed"
	}
}

// handleStripeWebhook answers 2xx only once the event is durably handled;
// any other status makes the provider redeliver.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := s.deps.Parser.Parse(payload, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			log.Warn().Err(err).Msg("webhook signature rejected")
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		log.Warn().Err(err).Msg("webhook payload rejected")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res, err := s.deps.Dispatcher.Dispatch(r.Context(), ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("webhook dispatch failed")
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	writeJSON(w, http.StatusOK, webhookAck{Received: true, Status: ackStatus(res)})
}
