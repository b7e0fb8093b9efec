package model

import "time"

// ReferralRecord tracks a tenant's accumulated referral credits.
//
// Balance is decremented once per applied discount and never goes negative.
// TotalReferralCount only grows; it is compared against the configured maximum
// when deciding auto-processing eligibility.
type ReferralRecord struct {
	ID                 string
	TenantID           string
	Email              string
	ProviderCustomerID string
	Balance            int
	TotalReferralCount int
	LastAppliedMonth   string // YYYY-MM of the last applied discount
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReferralTxKind distinguishes the two mutations guarded by a transaction marker.
type ReferralTxKind string

const (
	ReferralTxIncrement ReferralTxKind = "increment"
	ReferralTxDecrement ReferralTxKind = "decrement"
)

// DecrementResult is what decreaseReferralBalance reports back. AlreadyProcessed means
// the transaction id was seen before and nothing was changed.
type DecrementResult struct {
	Success          bool
	AlreadyProcessed bool
	Message          string
	Balance          int
}

// MonthKey formats t as the calendar month key used for applied months and idempotency keys.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// SameMonth reports whether a and b fall in the same UTC calendar month.
func SameMonth(a, b time.Time) bool {
	return MonthKey(a) == MonthKey(b)
}
