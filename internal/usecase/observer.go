package usecase

import (
	"time"

	"salon-billing/internal/domain/model"
)

// DispatchObserver receives one call per Dispatch.
type DispatchObserver interface {
	ObserveDispatch(eventType string, result model.EventResult, duplicate bool, d time.Duration)
}

// DiscountObserver receives per-tenant outcomes and batch run statuses.
type DiscountObserver interface {
	ObserveDiscount(outcome model.OutcomeKind)
	CouponCleanupFailed()
	ObserveBatchRun(status string)
}

type nopObserver struct{}

func (nopObserver) ObserveDispatch(string, model.EventResult, bool, time.Duration) {}
func (nopObserver) ObserveDiscount(model.OutcomeKind)                              {}
func (nopObserver) CouponCleanupFailed()                                           {}
func (nopObserver) ObserveBatchRun(string)                                         {}
