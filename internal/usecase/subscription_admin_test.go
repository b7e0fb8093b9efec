//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
)

func TestSubscriptionAdmin_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels on provider and syncs local record", func(t *testing.T) {
		st := newTestStore()
		p := newFakeProvider()
		snap := snapshot("active")
		p.subs[snap.ID] = snap
		require.NoError(t, st.Subscriptions().Sync(ctx, "t-new", model.FieldsFromSnapshot(snap), model.EventKey("evt_seed")))

		a := NewSubscriptionAdmin(st.Subscriptions(), p, newTestRetrier(), newTestLogger())
		got, err := a.Cancel(ctx, " sub_new ")
		require.NoError(t, err)
		assert.Equal(t, "canceled", got.Status)

		local, err := st.Subscriptions().FindByTenantID(ctx, "t-new")
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionStatusCanceled, local.Status)
	})

	t.Run("unknown tenant still returns the provider snapshot", func(t *testing.T) {
		st := newTestStore()
		p := newFakeProvider()
		p.subs["sub_x"] = &model.SubscriptionSnapshot{ID: "sub_x", CustomerID: "cus_x", Status: "active", PriceID: "price_1"}

		a := NewSubscriptionAdmin(st.Subscriptions(), p, newTestRetrier(), newTestLogger())
		got, err := a.Cancel(ctx, "sub_x")
		require.NoError(t, err)
		assert.Equal(t, "sub_x", got.ID)

		_, err = st.Subscriptions().FindByCustomerID(ctx, "cus_x")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		a := NewSubscriptionAdmin(newTestStore().Subscriptions(), newFakeProvider(), newTestRetrier(), newTestLogger())
		_, err := a.Cancel(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("provider not found is surfaced", func(t *testing.T) {
		a := NewSubscriptionAdmin(newTestStore().Subscriptions(), newFakeProvider(), newTestRetrier(), newTestLogger())
		_, err := a.Cancel(ctx, "sub_missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
