package adapter

import (
	"context"

	"salon-billing/internal/domain/model"
)

// ReportNotifier delivers batch run reports to operators.
type ReportNotifier interface {
	NotifyDiscountReport(ctx context.Context, report *model.DiscountReport) error
}
