package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) CheckProcessed(ctx context.Context, eventID string) (model.ProcessedStatus, error) {
	row, err := pickRow(ctx, r.pool, repository.NoTX, `SELECT result FROM webhook_events WHERE event_id=$1;`, eventID)
	if err != nil {
		return model.ProcessedStatus{}, mapErr("check webhook event", err)
	}
	var result string
	if err := row.Scan(&result); err != nil {
		err = mapErr("check webhook event", err)
		if errors.Is(err, domain.ErrNotFound) {
			return model.ProcessedStatus{}, nil
		}
		return model.ProcessedStatus{}, err
	}
	res := model.EventResult(result)
	return model.ProcessedStatus{IsProcessed: res.IsTerminalProcessed(), Result: res}, nil
}

func (r *webhookEventRepo) Record(ctx context.Context, eventID, eventType string, result model.EventResult) error {
	if eventID == "" {
		return fmt.Errorf("record event: empty id: %w", domain.ErrInvalidArgument)
	}
	const q = `
INSERT INTO webhook_events (event_id, event_type, result, error_message, attempts, first_seen_at, updated_at)
VALUES ($1, $2, $3, '', 1, NOW(), NOW())
ON CONFLICT (event_id) DO UPDATE SET
  event_type=EXCLUDED.event_type,
  result=EXCLUDED.result,
  error_message='',
  attempts=webhook_events.attempts+1,
  updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, repository.NoTX, q, eventID, eventType, string(result))
	return mapErr("record event", err)
}

func (r *webhookEventRepo) UpdateResult(ctx context.Context, eventID string, result model.EventResult, errMsg string) error {
	const q = `
UPDATE webhook_events
   SET result=$2, error_message=$3, updated_at=NOW()
 WHERE event_id=$1;`
	tag, err := execSQL(ctx, r.pool, repository.NoTX, q, eventID, string(result), errMsg)
	if err != nil {
		return mapErr("update event result", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	return nil
}

func (r *webhookEventRepo) FindByID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	const q = `
SELECT event_id, event_type, result, error_message, attempts, first_seen_at, updated_at
  FROM webhook_events
 WHERE event_id=$1;`
	row, err := pickRow(ctx, r.pool, repository.NoTX, q, eventID)
	if err != nil {
		return nil, mapErr("find event", err)
	}
	var (
		ev     model.WebhookEvent
		result string
	)
	if err := row.Scan(&ev.EventID, &ev.EventType, &result, &ev.ErrorMessage, &ev.Attempts, &ev.FirstSeenAt, &ev.UpdatedAt); err != nil {
		return nil, mapErr("find event", err)
	}
	ev.Result = model.EventResult(result)
	return &ev, nil
}
