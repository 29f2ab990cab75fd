package payment

import (
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/recurrence"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Schedule is a recurring (or one-shot) payment reminder series.
//
// Invariants: PaidCount never decreases; ACTIVE -> COMPLETED is terminal and
// happens exactly when PaidCount reaches TotalPayments, or immediately after
// the first occurrence when the rule is NONE.
type Schedule struct {
	ID            int64
	ChatID        int64
	Recipient     string // alias or bank identifier (CBU/CVU)
	Amount        float64
	Description   string
	Rule          recurrence.Rule
	NextPaymentAt *time.Time // nil once the series completed
	PaidCount     int
	TotalPayments int // 0 means open-ended
	Status        Status
	CreatedAt     time.Time
}

// Draft is the caller-supplied part of a new schedule.
type Draft struct {
	ChatID        int64
	Recipient     string
	Amount        float64
	Description   string
	Rule          recurrence.Rule
	NextPaymentAt time.Time
	TotalPayments int
}
