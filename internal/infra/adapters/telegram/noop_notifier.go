package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/adapter"
)

var _ adapter.ReportNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs reports instead of sending them. Used when no bot token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) NotifyDiscountReport(_ context.Context, r *model.DiscountReport) error {
	if r == nil {
		return nil
	}
	n.log.Info().
		Str("run_id", r.RunID).
		Int("processed", r.TotalProcessed).
		Int("applied", r.SuccessCount).
		Int("skipped", r.SkippedCount).
		Int("failed", r.FailureCount).
		Msg("[noop-telegram] discount report")
	return nil
}
