package model

import (
	"fmt"
	"time"
)

// OutcomeKind is the variant of a per-tenant discount attempt.
type OutcomeKind string

const (
	OutcomeApplied OutcomeKind = "applied"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// DiscountOutcome is the result of one tenant's discount transaction:
// Applied, SkippedNotEligible(Reason) or Failed(Err).
type DiscountOutcome struct {
	Kind     OutcomeKind
	Reason   string // set for skipped
	Err      error  // set for failed
	Note     string // e.g. "already processed"
	CouponID string
	Balance  int // remaining balance after an applied discount
}

func Applied(couponID string, balance int, note string) DiscountOutcome {
	return DiscountOutcome{Kind: OutcomeApplied, CouponID: couponID, Balance: balance, Note: note}
}

func SkippedNotEligible(reason string) DiscountOutcome {
	return DiscountOutcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(couponID string, err error) DiscountOutcome {
	return DiscountOutcome{Kind: OutcomeFailed, CouponID: couponID, Err: err}
}

// TenantResult is one line of the batch report.
type TenantResult struct {
	Email    string      `json:"email"`
	Success  bool        `json:"success"`
	Outcome  OutcomeKind `json:"outcome"`
	Error    string      `json:"error,omitempty"`
	Note     string      `json:"note,omitempty"`
	CouponID string      `json:"coupon_id,omitempty"`
}

// ResultFor converts an outcome into a report line.
func ResultFor(email string, o DiscountOutcome) TenantResult {
	r := TenantResult{Email: email, Outcome: o.Kind, Note: o.Note, CouponID: o.CouponID}
	switch o.Kind {
	case OutcomeApplied:
		r.Success = true
	case OutcomeSkipped:
		r.Error = o.Reason
	case OutcomeFailed:
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
	}
	return r
}

// DiscountReport is the terminal output of a batch run.
type DiscountReport struct {
	RunID          string         `json:"run_id"`
	TotalProcessed int            `json:"total_processed"`
	SuccessCount   int            `json:"success_count"`
	FailureCount   int            `json:"failure_count"`
	SkippedCount   int            `json:"skipped_count"`
	Results        []TenantResult `json:"results"`
	ProcessedAt    time.Time      `json:"processed_at"`
	Duration       time.Duration  `json:"duration_ns"`
}

// Add appends a result and updates the counters.
func (r *DiscountReport) Add(res TenantResult) {
	r.Results = append(r.Results, res)
	r.TotalProcessed++
	switch res.Outcome {
	case OutcomeApplied:
		r.SuccessCount++
	case OutcomeSkipped:
		r.SkippedCount++
	default:
		r.FailureCount++
	}
}

// Summary is a one-line human readable digest.
func (r *DiscountReport) Summary() string {
	return fmt.Sprintf("referral discounts run %s: %d processed, %d applied, %d skipped, %d failed (%s)",
		r.RunID, r.TotalProcessed, r.SuccessCount, r.SkippedCount, r.FailureCount, r.Duration.Round(time.Millisecond))
}

// DiscountOptions controls a batch run.
type DiscountOptions struct {
	Emails       []string // explicit tenant emails; empty means derive from the store
	ForceUpdated bool     // bypass the "already updated this month" gate
	IgnoreMaxCap bool     // bypass the total referral count cap
}
