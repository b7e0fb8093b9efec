package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/usecase"
)

// ReferralWorker periodically runs the referral discount batch over derived tenants.
// Repeated runs within a month only produce skips.
type ReferralWorker struct {
	interval time.Duration
	runner   usecase.DiscountRunner
	log      *zerolog.Logger
}

func NewReferralWorker(interval time.Duration, runner usecase.DiscountRunner, logger *zerolog.Logger) *ReferralWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	l := logger.With().Str("component", "ReferralWorker").Logger()
	return &ReferralWorker{
		interval: interval,
		runner:   runner,
		log:      &l,
	}
}

func (w *ReferralWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting referral worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping referral worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReferralWorker) runOnce(ctx context.Context) {
	report, err := w.runner.Run(ctx, model.DiscountOptions{})
	switch {
	case errors.Is(err, domain.ErrBatchInProgress):
		w.log.Info().Msg("referral batch already running elsewhere")
	case err != nil:
		w.log.Error().Err(err).Msg("referral worker error")
	default:
		w.log.Info().
			Str("run_id", report.RunID).
			Int("processed", report.TotalProcessed).
			Int("applied", report.SuccessCount).
			Int("skipped", report.SkippedCount).
			Int("failed", report.FailureCount).
			Msg("referral batch finished")
	}
}
