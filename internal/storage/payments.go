package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/payment"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/recurrence"
)

// paymentStore adapts DB to the payment.Store contract.
type paymentStore struct{ *DB }

func (s *DB) Payments() payment.Store { return paymentStore{s} }

const paymentCols = `id, chat_id, recipient, amount, description, recurrence, recurrence_day, recurrence_time, next_payment_at, paid_count, total_payments, status, created_at`

func (s paymentStore) FindDueBefore(ctx context.Context, now time.Time) ([]payment.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payment_schedules
		 WHERE status = ? AND next_payment_at IS NOT NULL AND next_payment_at <= ?
		 ORDER BY next_payment_at ASC`,
		payment.StatusActive, millis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanPayments(rows)
}

func (s paymentStore) Create(ctx context.Context, d payment.Draft) (payment.Schedule, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_schedules(chat_id, recipient, amount, description, recurrence, recurrence_day, recurrence_time, next_payment_at, paid_count, total_payments, status, created_at)
		 VALUES(?,?,?,?,?,?,?,?,0,?,?,?)`,
		d.ChatID, d.Recipient, d.Amount, d.Description,
		string(kindOrNone(d.Rule)), d.Rule.Day, timeOrDefault(d.Rule),
		millis(d.NextPaymentAt), d.TotalPayments, payment.StatusActive, millis(now),
	)
	if err != nil {
		return payment.Schedule{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return payment.Schedule{}, err
	}
	next := d.NextPaymentAt
	return payment.Schedule{
		ID:            id,
		ChatID:        d.ChatID,
		Recipient:     d.Recipient,
		Amount:        d.Amount,
		Description:   d.Description,
		Rule:          d.Rule,
		NextPaymentAt: &next,
		TotalPayments: d.TotalPayments,
		Status:        payment.StatusActive,
		CreatedAt:     now,
	}, nil
}

// UpdateAfterPayment persists an advanced series. The status invariant lives
// here: a nil next date is exactly what completes a series.
func (s paymentStore) UpdateAfterPayment(ctx context.Context, id int64, next *time.Time, paidCount int) error {
	status := payment.StatusActive
	var nextMS any
	if next == nil {
		status = payment.StatusCompleted
	} else {
		nextMS = millis(*next)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_schedules SET next_payment_at = ?, paid_count = ?, status = ? WHERE id = ?`,
		nextMS, paidCount, status, id,
	)
	if err != nil {
		return err
	}
	return oneRow(res, payment.ErrNotFound)
}

func (s paymentStore) FindByOwner(ctx context.Context, chatID int64) ([]payment.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payment_schedules WHERE chat_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanPayments(rows)
}

func (s paymentStore) Cancel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_schedules SET status = ? WHERE id = ?`, payment.StatusCancelled, id)
	if err != nil {
		return err
	}
	return oneRow(res, payment.ErrNotFound)
}

func (s paymentStore) scanPayments(rows *sql.Rows) ([]payment.Schedule, error) {
	var out []payment.Schedule
	for rows.Next() {
		var (
			p        payment.Schedule
			kind     string
			nextMS   sql.NullInt64
			createMS int64
		)
		if err := rows.Scan(&p.ID, &p.ChatID, &p.Recipient, &p.Amount, &p.Description,
			&kind, &p.Rule.Day, &p.Rule.TimeOfDay, &nextMS, &p.PaidCount, &p.TotalPayments,
			&p.Status, &createMS); err != nil {
			return nil, err
		}
		p.Rule.Kind = recurrence.ParseKind(kind)
		p.CreatedAt = fromMillis(createMS, s.loc)
		if nextMS.Valid {
			t := fromMillis(nextMS.Int64, s.loc)
			p.NextPaymentAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
