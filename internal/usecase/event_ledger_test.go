//go:build !integration

package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-billing/internal/domain/model"
)

func TestEventLedger(t *testing.T) {
	st := newTestStore()
	ledger := NewEventLedger(st.Events(), newTestLogger())

	t.Run("result is written even when the request context is gone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ledger.RecordStart(ctx, "evt_1", model.EventSubscriptionUpdated)
		cancel()
		ledger.RecordResult(ctx, "evt_1", model.EventResultSuccess, "")

		status, err := ledger.CheckProcessed(context.Background(), "evt_1")
		require.NoError(t, err)
		assert.True(t, status.IsProcessed)
		assert.Equal(t, model.EventResultSuccess, status.Result)
	})

	t.Run("recording a result for an unknown event is logged only", func(t *testing.T) {
		assert.NotPanics(t, func() {
			ledger.RecordResult(context.Background(), "evt_missing", model.EventResultError, "boom")
		})
	})

	t.Run("get exposes the record", func(t *testing.T) {
		rec, err := ledger.Get(context.Background(), "evt_1")
		require.NoError(t, err)
		assert.Equal(t, model.EventSubscriptionUpdated, rec.EventType)
	})
}
