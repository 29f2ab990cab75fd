package reminder

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("reminder not found")

// Store is the persistence contract for reminders.
type Store interface {
	// FindDueBefore returns PENDING reminders with scheduledAt <= now,
	// ordered ascending by scheduledAt.
	FindDueBefore(ctx context.Context, now time.Time) ([]Reminder, error)
	Create(ctx context.Context, d Draft, calendarEventID string) (Reminder, error)
	// UpdateStatus sets the status; sentAt is recorded only when non-nil.
	UpdateStatus(ctx context.Context, id int64, status Status, sentAt *time.Time) error
	UpdateScheduledAt(ctx context.Context, id int64, at time.Time) error
	FindByID(ctx context.Context, id int64) (Reminder, error)
	// FindPendingByChat lists a chat's upcoming reminders (for /recordatorios).
	FindPendingByChat(ctx context.Context, chatID int64) ([]Reminder, error)
}

// Calendar mirrors a reminder into an external calendar. Every call from
// this package is best-effort: failures are logged and never gate the
// reminder's own lifecycle.
type Calendar interface {
	CreateEvent(ctx context.Context, title string, start time.Time) (eventID string, err error)
	UpdateEvent(ctx context.Context, eventID string, start time.Time) error
	DeleteEvent(ctx context.Context, eventID string) error
}
