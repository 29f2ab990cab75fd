// Package digest sends periodic summaries (daily/weekly/monthly) gated by the
// recipient's local wall-clock hour and a per-period dedup key.
//
// The dedup map is in-memory only: a restart within the same period may
// deliver a duplicate. That is an accepted trade-off for a single-instance
// deployment; see DESIGN.md.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/eventbus"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/transport"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type Kind string

const (
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

// Builder produces the digest body for one recipient and period. The content
// pipeline (summaries, classification) lives outside this engine.
type Builder func(ctx context.Context, kind Kind, chatID int64, now time.Time) (string, error)

type Recipient struct {
	ChatID    int64
	DailyHour int // local hour for the daily digest
}

type Config struct {
	Recipients  []Recipient
	WeeklyHour  int // weekly summary fires on local Monday at this hour
	MonthlyHour int // monthly summary fires on the local 1st at this hour
}

type Service struct {
	cfg   Config
	build Builder
	msgr  transport.Messenger
	bus   eventbus.Bus
	log   logx.Logger

	// lastServed maps kind+chat to the last period key delivered. Touched
	// only from the dispatch loop; deliberately not thread-safe.
	lastServed map[string]string
}

func New(cfg Config, build Builder, msgr transport.Messenger, bus eventbus.Bus, log logx.Logger) *Service {
	return &Service{
		cfg:        cfg,
		build:      build,
		msgr:       msgr,
		bus:        bus,
		log:        log,
		lastServed: map[string]string{},
	}
}

// Run evaluates every checkpoint against the localized now. Called once per
// tick; at most one delivery per recipient per period.
func (s *Service) Run(ctx context.Context, now time.Time) {
	for _, r := range s.cfg.Recipients {
		if now.Hour() == r.DailyHour {
			s.maybeSend(ctx, KindDaily, r.ChatID, dailyKey(now), now)
		}
		if now.Weekday() == time.Monday && now.Hour() == s.cfg.WeeklyHour {
			s.maybeSend(ctx, KindWeekly, r.ChatID, weeklyKey(now), now)
		}
		if now.Day() == 1 && now.Hour() == s.cfg.MonthlyHour {
			s.maybeSend(ctx, KindMonthly, r.ChatID, monthlyKey(now), now)
		}
	}
}

func (s *Service) maybeSend(ctx context.Context, kind Kind, chatID int64, periodKey string, now time.Time) {
	k := cacheKey(kind, chatID)
	if s.lastServed[k] == periodKey {
		return
	}

	text, err := s.build(ctx, kind, chatID, now)
	if err != nil {
		// Leave the key unrecorded so a later tick in the same hour retries.
		s.log.Warn("digest build failed", logx.String("kind", string(kind)), logx.Int64("chat_id", chatID), logx.Err(err))
		return
	}
	if text == "" {
		// Nothing to report this period; consider it served.
		s.lastServed[k] = periodKey
		return
	}
	if err := s.msgr.SendText(ctx, chatID, text); err != nil {
		s.log.Error("digest delivery failed", logx.String("kind", string(kind)), logx.Int64("chat_id", chatID), logx.Err(err))
		return
	}

	s.lastServed[k] = periodKey
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.DigestSent, ChatID: chatID})
	}
	s.log.Info("digest sent", logx.String("kind", string(kind)), logx.Int64("chat_id", chatID), logx.String("period", periodKey))
}

func cacheKey(kind Kind, chatID int64) string {
	return fmt.Sprintf("%s|%d", kind, chatID)
}

func dailyKey(now time.Time) string { return now.Format("2006-01-02") }

// weeklyKey is the date of the local Monday starting the week.
func weeklyKey(now time.Time) string {
	back := (int(now.Weekday()) - int(time.Monday) + 7) % 7
	return now.AddDate(0, 0, -back).Format("2006-01-02")
}

func monthlyKey(now time.Time) string { return now.Format("2006-01") }
