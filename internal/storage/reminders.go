package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/recurrence"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/reminder"
)

// reminderStore adapts DB to the reminder.Store contract.
type reminderStore struct{ *DB }

func (s *DB) Reminders() reminder.Store { return reminderStore{s} }

const reminderCols = `id, chat_id, text, scheduled_at, status, recurrence, recurrence_day, recurrence_time, calendar_event_id, created_at, sent_at`

func (s reminderStore) FindDueBefore(ctx context.Context, now time.Time) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders
		 WHERE status = ? AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC`,
		reminder.StatusPending, millis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanReminders(rows)
}

func (s reminderStore) Create(ctx context.Context, d reminder.Draft, calendarEventID string) (reminder.Reminder, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(chat_id, text, scheduled_at, status, recurrence, recurrence_day, recurrence_time, calendar_event_id, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		d.ChatID, d.Text, millis(d.ScheduledAt), reminder.StatusPending,
		string(kindOrNone(d.Rule)), d.Rule.Day, timeOrDefault(d.Rule), nullStr(calendarEventID), millis(now),
	)
	if err != nil {
		return reminder.Reminder{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return reminder.Reminder{}, err
	}
	return reminder.Reminder{
		ID:              id,
		ChatID:          d.ChatID,
		Text:            d.Text,
		ScheduledAt:     d.ScheduledAt,
		Status:          reminder.StatusPending,
		Rule:            d.Rule,
		CalendarEventID: calendarEventID,
		CreatedAt:       now,
	}, nil
}

func (s reminderStore) UpdateStatus(ctx context.Context, id int64, status reminder.Status, sentAt *time.Time) error {
	var sent any
	if sentAt != nil {
		sent = millis(*sentAt)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET status = ?, sent_at = COALESCE(?, sent_at) WHERE id = ?`,
		status, sent, id,
	)
	if err != nil {
		return err
	}
	return oneRow(res, reminder.ErrNotFound)
}

func (s reminderStore) UpdateScheduledAt(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET scheduled_at = ? WHERE id = ?`, millis(at), id)
	if err != nil {
		return err
	}
	return oneRow(res, reminder.ErrNotFound)
}

func (s reminderStore) FindByID(ctx context.Context, id int64) (reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = ?`, id)
	if err != nil {
		return reminder.Reminder{}, err
	}
	defer rows.Close()
	list, err := s.scanReminders(rows)
	if err != nil {
		return reminder.Reminder{}, err
	}
	if len(list) == 0 {
		return reminder.Reminder{}, reminder.ErrNotFound
	}
	return list[0], nil
}

func (s reminderStore) FindPendingByChat(ctx context.Context, chatID int64) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders
		 WHERE chat_id = ? AND status = ?
		 ORDER BY scheduled_at ASC`,
		chatID, reminder.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanReminders(rows)
}

func (s reminderStore) scanReminders(rows *sql.Rows) ([]reminder.Reminder, error) {
	var out []reminder.Reminder
	for rows.Next() {
		var (
			r        reminder.Reminder
			schedMS  int64
			createMS int64
			sentMS   sql.NullInt64
			kind     string
			evtID    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Text, &schedMS, &r.Status,
			&kind, &r.Rule.Day, &r.Rule.TimeOfDay, &evtID, &createMS, &sentMS); err != nil {
			return nil, err
		}
		r.Rule.Kind = recurrence.ParseKind(kind)
		r.ScheduledAt = fromMillis(schedMS, s.loc)
		r.CreatedAt = fromMillis(createMS, s.loc)
		r.CalendarEventID = strOrEmpty(evtID)
		if sentMS.Valid {
			t := fromMillis(sentMS.Int64, s.loc)
			r.SentAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func kindOrNone(r recurrence.Rule) recurrence.Kind {
	if r.Kind == "" {
		return recurrence.None
	}
	return r.Kind
}

func timeOrDefault(r recurrence.Rule) string {
	if r.TimeOfDay == "" {
		return "09:00"
	}
	return r.TimeOfDay
}

func oneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	if n > 1 {
		return errors.New("update touched multiple rows")
	}
	return nil
}
