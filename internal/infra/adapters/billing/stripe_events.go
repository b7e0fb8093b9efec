package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"salon-billing/internal/domain"
	"salon-billing/internal/domain/model"
)

// EventParser verifies Stripe webhook signatures and decodes the payload into a
// model.BillingEvent. Payload objects are decoded through local wire types so that
// events signed under an older or newer API version still parse.
type EventParser struct {
	secret    string
	tolerance time.Duration
}

func NewEventParser(secret string) *EventParser {
	return &EventParser{secret: secret, tolerance: webhook.DefaultTolerance}
}

func (p *EventParser) Parse(payload []byte, sigHeader string) (*model.BillingEvent, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("webhook secret not configured: %w", domain.ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidSignature)
	}

	out := &model.BillingEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Created > 0 {
		out.Created = time.Unix(ev.Created, 0).UTC()
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}

	switch out.Type {
	case model.EventSubscriptionCreated, model.EventSubscriptionUpdated, model.EventSubscriptionDeleted:
		var ws wireSubscription
		if err := json.Unmarshal(ev.Data.Raw, &ws); err != nil {
			return nil, fmt.Errorf("decode subscription payload: %v: %w", err, domain.ErrInvalidArgument)
		}
		out.Subscription = ws.snapshot()
	case model.EventInvoicePaymentSucceeded, model.EventInvoicePaymentFailed:
		var wi wireInvoice
		if err := json.Unmarshal(ev.Data.Raw, &wi); err != nil {
			return nil, fmt.Errorf("decode invoice payload: %v: %w", err, domain.ErrInvalidArgument)
		}
		out.Invoice = wi.snapshot()
	}
	return out, nil
}

// wireRef is an object reference that Stripe sends either as an id string or as an
// expanded object carrying an "id".
type wireRef string

func (r *wireRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = wireRef(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = wireRef(obj.ID)
	return nil
}

// wireProduct is a price's product: an id, or the object when the payload expands it.
type wireProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *wireProduct) UnmarshalJSON(b []byte) error {
	var ref wireRef
	if err := ref.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = wireProduct{ID: string(ref)}
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		p.Name = obj.Name
	}
	return nil
}

type wireSubscription struct {
	ID               string            `json:"id"`
	Customer         wireRef           `json:"customer"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID        string      `json:"id"`
				Nickname  string      `json:"nickname"`
				Product   wireProduct `json:"product"`
				Recurring *struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (w wireSubscription) snapshot() *model.SubscriptionSnapshot {
	snap := &model.SubscriptionSnapshot{
		ID:         w.ID,
		CustomerID: string(w.Customer),
		Status:     w.Status,
		Metadata:   w.Metadata,
	}
	periodEnd := w.CurrentPeriodEnd
	if len(w.Items.Data) > 0 {
		item := w.Items.Data[0]
		snap.PriceID = item.Price.ID
		snap.PlanName = item.Price.Nickname
		if item.Price.Product.Name != "" {
			snap.PlanName = item.Price.Product.Name
		}
		if item.Price.Recurring != nil {
			snap.Interval = item.Price.Recurring.Interval
		}
		if item.CurrentPeriodEnd > 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodEnd > 0 {
		snap.CurrentPeriodEnd = time.Unix(periodEnd, 0).UTC()
	}
	return snap
}

type wireInvoice struct {
	ID           string  `json:"id"`
	Customer     wireRef `json:"customer"`
	Subscription wireRef `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription wireRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	AmountDue int64  `json:"amount_due"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

func (w wireInvoice) snapshot() *model.InvoiceSnapshot {
	sub := string(w.Subscription)
	if sub == "" && w.Parent != nil && w.Parent.SubscriptionDetails != nil {
		sub = string(w.Parent.SubscriptionDetails.Subscription)
	}
	return &model.InvoiceSnapshot{
		ID:             w.ID,
		CustomerID:     string(w.Customer),
		SubscriptionID: sub,
		AmountDue:      w.AmountDue,
		Currency:       w.Currency,
		Status:         w.Status,
	}
}
