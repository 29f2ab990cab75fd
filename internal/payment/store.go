package payment

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("payment schedule not found")

// Store is the persistence contract for payment schedules.
type Store interface {
	// FindDueBefore returns ACTIVE schedules with nextPaymentAt <= now,
	// ordered ascending by nextPaymentAt.
	FindDueBefore(ctx context.Context, now time.Time) ([]Schedule, error)
	Create(ctx context.Context, d Draft) (Schedule, error)
	// UpdateAfterPayment persists the advanced series state. A nil next
	// marks the series COMPLETED; otherwise it stays ACTIVE.
	UpdateAfterPayment(ctx context.Context, id int64, next *time.Time, paidCount int) error
	FindByOwner(ctx context.Context, chatID int64) ([]Schedule, error)
	Cancel(ctx context.Context, id int64) error
}
