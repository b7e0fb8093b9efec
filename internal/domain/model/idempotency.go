package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"salon-billing/internal/domain"
)

// IdempotencyKey marks a state mutation so that replaying it is detectable.
// Every store mutation reachable from a webhook handler or a discount transaction takes one.
type IdempotencyKey string

func (k IdempotencyKey) String() string { return string(k) }

// Validate rejects the zero key.
func (k IdempotencyKey) Validate() error {
	if k == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// EventKey keys a mutation to a provider event id.
func EventKey(eventID string) IdempotencyKey {
	if eventID == "" {
		return ""
	}
	return IdempotencyKey("evt:" + eventID)
}

// DiscountKey keys a referral balance decrement to (calendar month, email hash), so a retried
// batch run in the same month cannot decrement twice.
func DiscountKey(month, emailHash string) IdempotencyKey {
	return IdempotencyKey(fmt.Sprintf("discount:%s:%s", month, emailHash))
}

// ForcedDiscountKey keys a forced repeat discount in a month that already has one. It is
// scoped to the run so the repeat is debited once per run.
func ForcedDiscountKey(month, emailHash, runID string) IdempotencyKey {
	return IdempotencyKey(fmt.Sprintf("discount:%s:%s:forced:%s", month, emailHash, runID))
}

// NewTransactionKey returns a fresh, never-repeating key.
func NewTransactionKey(kind string) IdempotencyKey {
	return IdempotencyKey(kind + ":" + uuid.NewString())
}

// EmailHash is a stable short fingerprint of a normalized email address.
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])[:16]
}
