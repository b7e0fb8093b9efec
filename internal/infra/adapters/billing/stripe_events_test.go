//go:build !integration

package billing

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
)

const testSecret = "whsec_test_secret"

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

const subscriptionCreatedPayload = `{
  "id": "evt_sub_created",
  "object": "event",
  "type": "customer.subscription.created",
  "created": 1790000000,
  "api_version": "2020-08-27",
  "data": {"object": {
    "id": "sub_1",
    "object": "subscription",
    "customer": "cus_1",
    "status": "trialing",
    "metadata": {"tenant_id": "t-1"},
    "items": {"object": "list", "data": [{
      "id": "si_1",
      "current_period_end": 1792000000,
      "price": {"id": "price_pro", "nickname": "Pro", "recurring": {"interval": "year"}}
    }]}
  }}
}`

func TestEventParser_Subscription(t *testing.T) {
	p := NewEventParser(testSecret)

	ev, err := p.Parse([]byte(subscriptionCreatedPayload), sign(t, subscriptionCreatedPayload))
	require.NoError(t, err)

	assert.Equal(t, "evt_sub_created", ev.ID)
	assert.Equal(t, model.EventSubscriptionCreated, ev.Type)
	require.NotNil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
	assert.Equal(t, "sub_1", ev.Subscription.ID)
	assert.Equal(t, "cus_1", ev.Subscription.CustomerID)
	assert.Equal(t, "trialing", ev.Subscription.Status)
	assert.Equal(t, "price_pro", ev.Subscription.PriceID)
	assert.Equal(t, "year", ev.Subscription.Interval)
	assert.Equal(t, "t-1", ev.Subscription.Metadata[model.TenantIDMetadataKey])
	assert.Equal(t, time.Unix(1792000000, 0).UTC(), ev.Subscription.CurrentPeriodEnd)
	assert.Equal(t, "Pro", ev.Subscription.PlanName, "unexpanded product falls back to the nickname")
}

func TestEventParser_ExpandedProductName(t *testing.T) {
	payload := strings.Replace(subscriptionCreatedPayload,
		`"nickname": "Pro",`,
		`"nickname": "Pro", "product": {"id": "prod_1", "object": "product", "name": "Salon Pro"},`, 1)
	ev, err := NewEventParser(testSecret).Parse([]byte(payload), sign(t, payload))
	require.NoError(t, err)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "Salon Pro", ev.Subscription.PlanName)
}

func TestEventParser_Invoice(t *testing.T) {
	p := NewEventParser(testSecret)

	t.Run("legacy subscription field", func(t *testing.T) {
		payload := `{"id":"evt_inv_1","object":"event","type":"invoice.payment_failed","data":{"object":
			{"id":"in_1","object":"invoice","customer":{"id":"cus_1","object":"customer"},"subscription":"sub_1","amount_due":2500,"currency":"usd"}}}`
		ev, err := p.Parse([]byte(payload), sign(t, payload))
		require.NoError(t, err)
		require.NotNil(t, ev.Invoice)
		assert.Equal(t, "cus_1", ev.Invoice.CustomerID)
		assert.Equal(t, "sub_1", ev.Invoice.SubscriptionID)
		assert.Equal(t, int64(2500), ev.Invoice.AmountDue)
	})

	t.Run("parent subscription details", func(t *testing.T) {
		payload := `{"id":"evt_inv_2","object":"event","type":"invoice.payment_succeeded","data":{"object":
			{"id":"in_2","object":"invoice","customer":"cus_2","parent":{"subscription_details":{"subscription":"sub_2"}}}}}`
		ev, err := p.Parse([]byte(payload), sign(t, payload))
		require.NoError(t, err)
		assert.Equal(t, "sub_2", ev.Invoice.SubscriptionID)
	})
}

func TestEventParser_Rejects(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		_, err := NewEventParser(testSecret).Parse([]byte(subscriptionCreatedPayload), "t=1,v1=deadbeef")
		assert.True(t, errors.Is(err, domain.ErrInvalidSignature), "got %v", err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := sign(t, subscriptionCreatedPayload)
		tampered := subscriptionCreatedPayload[:len(subscriptionCreatedPayload)-1] + " }"
		_, err := NewEventParser(testSecret).Parse([]byte(tampered), header)
		assert.True(t, errors.Is(err, domain.ErrInvalidSignature), "got %v", err)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewEventParser("").Parse([]byte(subscriptionCreatedPayload), sign(t, subscriptionCreatedPayload))
		assert.True(t, errors.Is(err, domain.ErrInvalidSignature), "got %v", err)
	})
}

func TestEventParser_UnhandledTypeKeepsEnvelope(t *testing.T) {
	payload := `{"id":"evt_x","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`
	ev, err := NewEventParser(testSecret).Parse([]byte(payload), sign(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", ev.Type)
	assert.Nil(t, ev.Subscription)
	assert.Nil(t, ev.Invoice)
}
