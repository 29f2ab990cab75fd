// Package reminder implements the reminder lifecycle: creation with a
// best-effort calendar mirror, due-dispatch with SENT/FAILED terminal states,
// and respawn of recurring reminders as fresh rows.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/eventbus"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/transport"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type Service struct {
	store Store
	msgr  transport.Messenger
	cal   Calendar // may be nil (calendar mirroring disabled)
	bus   eventbus.Bus
	log   logx.Logger
}

func New(store Store, msgr transport.Messenger, cal Calendar, bus eventbus.Bus, log logx.Logger) *Service {
	return &Service{store: store, msgr: msgr, cal: cal, bus: bus, log: log}
}

// Create persists a new PENDING reminder. The calendar event is attempted
// first so its id can be stored, but any calendar failure only logs.
func (s *Service) Create(ctx context.Context, d Draft) (Reminder, error) {
	eventID := s.tryCreateEvent(ctx, d.Text, d.ScheduledAt)

	r, err := s.store.Create(ctx, d, eventID)
	if err != nil {
		return Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	s.log.Info("reminder created",
		logx.Int64("id", r.ID),
		logx.Int64("chat_id", r.ChatID),
		logx.Time("scheduled_at", r.ScheduledAt),
		logx.String("recurrence", string(r.Rule.Kind)))
	return r, nil
}

// Cancel best-effort deletes the linked calendar event, then marks the
// reminder CANCELLED so it drops out of polling.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if s.cal != nil && r.CalendarEventID != "" {
		if err := s.cal.DeleteEvent(ctx, r.CalendarEventID); err != nil {
			s.log.Warn("calendar delete failed", logx.Int64("id", id), logx.Err(err))
		}
	}
	return s.store.UpdateStatus(ctx, id, StatusCancelled, nil)
}

// ModifyTime best-effort patches the linked calendar event, then moves the
// reminder to the new time.
func (s *Service) ModifyTime(ctx context.Context, id int64, at time.Time) error {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if s.cal != nil && r.CalendarEventID != "" {
		if err := s.cal.UpdateEvent(ctx, r.CalendarEventID, at); err != nil {
			s.log.Warn("calendar update failed", logx.Int64("id", id), logx.Err(err))
		}
	}
	return s.store.UpdateScheduledAt(ctx, id, at)
}

// PendingByChat lists upcoming reminders for a chat.
func (s *Service) PendingByChat(ctx context.Context, chatID int64) ([]Reminder, error) {
	return s.store.FindPendingByChat(ctx, chatID)
}

// DispatchDue sends every PENDING reminder with scheduledAt <= now.
// One failing reminder never blocks the rest; each ends up SENT or FAILED.
func (s *Service) DispatchDue(ctx context.Context, now time.Time) error {
	due, err := s.store.FindDueBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}
	for _, r := range due {
		s.dispatchOne(ctx, r, now)
	}
	return nil
}

func (s *Service) dispatchOne(ctx context.Context, r Reminder, now time.Time) {
	text := Compose(r.Text)

	if err := s.msgr.SendText(ctx, r.ChatID, text); err != nil {
		// Terminal: this engine performs no delivery retry for reminders.
		s.log.Error("reminder delivery failed", logx.Int64("id", r.ID), logx.Int64("chat_id", r.ChatID), logx.Err(err))
		if uerr := s.store.UpdateStatus(ctx, r.ID, StatusFailed, nil); uerr != nil {
			s.log.Error("mark failed errored", logx.Int64("id", r.ID), logx.Err(uerr))
		}
		s.publish(eventbus.ReminderFailed, r, err)
		return
	}

	sentAt := now
	if err := s.store.UpdateStatus(ctx, r.ID, StatusSent, &sentAt); err != nil {
		s.log.Error("mark sent errored", logx.Int64("id", r.ID), logx.Err(err))
	}
	s.publish(eventbus.ReminderSent, r, nil)
	s.log.Info("reminder sent", logx.Int64("id", r.ID), logx.Int64("chat_id", r.ChatID))

	if r.Rule.IsRecurring() {
		s.respawn(ctx, r, now)
	}
}

// respawn creates the next occurrence as a brand-new PENDING row. A failure
// here is logged only: the just-sent reminder stays SENT, and the series
// stops advancing until re-armed externally.
func (s *Service) respawn(ctx context.Context, r Reminder, now time.Time) {
	next := r.Rule.Next(now)
	if next.IsZero() {
		return
	}
	nr, err := s.store.Create(ctx, Draft{
		ChatID:      r.ChatID,
		Text:        r.Text,
		ScheduledAt: next,
		Rule:        r.Rule,
	}, r.CalendarEventID)
	if err != nil {
		s.log.Error("recurring reminder respawn failed; series will not advance",
			logx.Int64("id", r.ID), logx.Err(err))
		return
	}
	s.publish(eventbus.ReminderRespawned, nr, nil)
	s.log.Info("recurring reminder re-armed",
		logx.Int64("id", r.ID), logx.Int64("next_id", nr.ID), logx.Time("next_at", next))
}

func (s *Service) tryCreateEvent(ctx context.Context, title string, start time.Time) string {
	if s.cal == nil {
		return ""
	}
	id, err := s.cal.CreateEvent(ctx, title, start)
	if err != nil {
		s.log.Warn("calendar create failed", logx.Err(err))
		return ""
	}
	return id
}

func (s *Service) publish(typ string, r Reminder, err error) {
	if s.bus == nil {
		return
	}
	e := eventbus.Event{Type: typ, ChatID: r.ChatID, RefID: r.ID}
	if err != nil {
		e.Err = err.Error()
	}
	s.bus.Publish(e)
}
