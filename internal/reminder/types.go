package reminder

import (
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/recurrence"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Reminder is one scheduled notification. A recurring reminder never mutates
// after being sent: the next occurrence is persisted as a fresh row, so the
// sent history stays intact.
type Reminder struct {
	ID              int64
	ChatID          int64
	Text            string
	ScheduledAt     time.Time
	Status          Status
	Rule            recurrence.Rule
	CalendarEventID string
	CreatedAt       time.Time
	SentAt          *time.Time
}

// Draft is the caller-supplied part of a new reminder.
type Draft struct {
	ChatID      int64
	Text        string
	ScheduledAt time.Time
	Rule        recurrence.Rule
}
