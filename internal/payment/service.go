// Package payment implements the scheduled-payment reminder series: strictly
// periodic advancement anchored on the previous due date, completion when the
// series length is reached, and delivery-gated progress (an undelivered
// reminder is retried by the next poll because the series never advanced).
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/eventbus"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/transport"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type Config struct {
	// DeepLinkBase is the payment-rail URL prefix for pre-filled transfers.
	// Empty disables deep links.
	DeepLinkBase string
}

type Service struct {
	cfg   Config
	store Store
	msgr  transport.Messenger
	bus   eventbus.Bus
	log   logx.Logger
}

func New(cfg Config, store Store, msgr transport.Messenger, bus eventbus.Bus, log logx.Logger) *Service {
	return &Service{cfg: cfg, store: store, msgr: msgr, bus: bus, log: log}
}

func (s *Service) Create(ctx context.Context, d Draft) (Schedule, error) {
	sc, err := s.store.Create(ctx, d)
	if err != nil {
		return Schedule{}, fmt.Errorf("create payment schedule: %w", err)
	}
	s.log.Info("payment schedule created",
		logx.Int64("id", sc.ID),
		logx.String("recipient", sc.Recipient),
		logx.Float64("amount", sc.Amount),
		logx.String("recurrence", string(sc.Rule.Kind)))
	return sc, nil
}

// ActiveSchedules lists a chat's ACTIVE series, for the /pagos command.
func (s *Service) ActiveSchedules(ctx context.Context, chatID int64) ([]Schedule, error) {
	all, err := s.store.FindByOwner(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sc := range all {
		if sc.Status == StatusActive {
			out = append(out, sc)
		}
	}
	return out, nil
}

// CancelByIndex cancels the n-th (1-based) active schedule shown by /pagos.
func (s *Service) CancelByIndex(ctx context.Context, chatID int64, index int) (Schedule, error) {
	active, err := s.ActiveSchedules(ctx, chatID)
	if err != nil {
		return Schedule{}, err
	}
	if index < 1 || index > len(active) {
		return Schedule{}, fmt.Errorf("%w: index %d of %d", ErrNotFound, index, len(active))
	}
	sc := active[index-1]
	if err := s.store.Cancel(ctx, sc.ID); err != nil {
		return Schedule{}, err
	}
	s.log.Info("payment schedule cancelled", logx.Int64("id", sc.ID), logx.Int64("chat_id", chatID))
	return sc, nil
}

// DispatchDue sends a reminder for every ACTIVE schedule whose nextPaymentAt
// has passed, then advances or completes the series. Delivery failure leaves
// the schedule untouched so the next tick re-attempts it.
func (s *Service) DispatchDue(ctx context.Context, now time.Time) error {
	due, err := s.store.FindDueBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("find due payments: %w", err)
	}
	for _, sc := range due {
		if err := s.msgr.SendText(ctx, sc.ChatID, s.composeReminder(sc)); err != nil {
			s.log.Error("payment reminder delivery failed; will re-attempt next tick",
				logx.Int64("id", sc.ID), logx.Err(err))
			continue
		}
		s.publish(eventbus.PaymentNotified, sc, nil)
		if err := s.Process(ctx, sc); err != nil {
			s.log.Error("payment series advance failed", logx.Int64("id", sc.ID), logx.Err(err))
		}
	}
	return nil
}

// Process advances one series occurrence: increments paidCount and either
// completes the series or computes the next strictly-periodic due date.
func (s *Service) Process(ctx context.Context, sc Schedule) error {
	paid := sc.PaidCount + 1

	done := !sc.Rule.IsRecurring() || (sc.TotalPayments > 0 && paid >= sc.TotalPayments)
	if done {
		if err := s.store.UpdateAfterPayment(ctx, sc.ID, nil, paid); err != nil {
			return err
		}
		s.publish(eventbus.PaymentCompleted, sc, nil)
		s.log.Info("payment series completed", logx.Int64("id", sc.ID), logx.Int("paid", paid))
		return nil
	}

	// Anchor on the previous due date, not on now: late processing must not
	// shift the series.
	prev := anchor(sc)
	next := sc.Rule.NextAfter(prev)
	if err := s.store.UpdateAfterPayment(ctx, sc.ID, &next, paid); err != nil {
		return err
	}
	s.log.Info("payment series advanced",
		logx.Int64("id", sc.ID), logx.Int("paid", paid), logx.Time("next_at", next))
	return nil
}

func anchor(sc Schedule) time.Time {
	if sc.NextPaymentAt != nil {
		return *sc.NextPaymentAt
	}
	return sc.CreatedAt
}

func (s *Service) composeReminder(sc Schedule) string {
	text := fmt.Sprintf("💸 Recordatorio de pago: $%.2f a %s", sc.Amount, sc.Recipient)
	if sc.Description != "" {
		text += fmt.Sprintf(" (%s)", sc.Description)
	}
	if sc.TotalPayments > 0 {
		text += fmt.Sprintf(" — cuota %d de %d", sc.PaidCount+1, sc.TotalPayments)
	}
	if link := DeepLink(s.cfg.DeepLinkBase, sc); link != "" {
		text += "\n" + link
	}
	return text
}

func (s *Service) publish(typ string, sc Schedule, err error) {
	if s.bus == nil {
		return
	}
	e := eventbus.Event{Type: typ, ChatID: sc.ChatID, RefID: sc.ID}
	if err != nil {
		e.Err = err.Error()
	}
	s.bus.Publish(e)
}
