package repository

import (
	"context"

	"salon-billing/internal/domain/model"
)

// WebhookEventRepository is the append-only ledger of provider events.
type WebhookEventRepository interface {
	CheckProcessed(ctx context.Context, eventID string) (model.ProcessedStatus, error)
	// Record inserts the event, or overwrites a leftover record of a crashed attempt.
	Record(ctx context.Context, eventID, eventType string, result model.EventResult) error
	UpdateResult(ctx context.Context, eventID string, result model.EventResult, errMsg string) error
	FindByID(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}
