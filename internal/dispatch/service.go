// Package dispatch drives the engine: a fixed-interval tick that polls due
// reminders, evaluates digest checkpoints and polls due payments, with a
// single-flight guard against overlapping ticks.
package dispatch

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/clock"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/eventbus"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type Config struct {
	// Interval between ticks. Defaults to one minute.
	Interval time.Duration
}

// The tick delegates to these; each one isolates its own per-item failures.
type (
	reminderDispatcher interface {
		DispatchDue(ctx context.Context, now time.Time) error
	}
	paymentDispatcher interface {
		DispatchDue(ctx context.Context, now time.Time) error
	}
	digestRunner interface {
		Run(ctx context.Context, now time.Time)
	}
)

type Service struct {
	cfg Config
	clk clock.Clock
	rem reminderDispatcher
	dig digestRunner
	pay paymentDispatcher
	bus eventbus.Bus
	log logx.Logger

	c      *cron.Cron
	runCtx context.Context

	// inFlight is the single-flight guard. Only meaningful within one
	// process; a second scheduler instance against the same store would
	// double-dispatch.
	inFlight atomic.Bool
}

func New(cfg Config, clk clock.Clock, rem reminderDispatcher, dig digestRunner, pay paymentDispatcher, bus eventbus.Bus, log logx.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Service{cfg: cfg, clk: clk, rem: rem, dig: dig, pay: pay, bus: bus, log: log}
}

// Start runs one tick immediately, then schedules the fixed-interval loop in
// the clock's location.
func (s *Service) Start(ctx context.Context) {
	if s.c != nil {
		return
	}
	s.runCtx = ctx

	s.c = cron.New(cron.WithLocation(s.clk.Location()))
	s.c.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(s.tick))

	go s.tick()
	s.c.Start()
	s.log.Info("dispatch loop started", logx.Duration("interval", s.cfg.Interval), logx.String("tz", s.clk.Location().String()))
}

// Stop cancels the timer only; an in-flight tick is allowed to finish.
func (s *Service) Stop() {
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c = nil
	s.log.Info("dispatch loop stopped")
}

// tick is the fixed-interval body. Errors and panics are contained here: the
// loop must survive anything a collaborator throws at it.
func (s *Service) tick() {
	if !s.inFlight.CompareAndSwap(false, true) {
		// Previous tick still running; this firing is dropped, not queued.
		s.log.Warn("tick overlap; skipping")
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TickSkipped})
		}
		return
	}
	defer s.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in tick", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	now := s.clk.Now()

	if err := s.rem.DispatchDue(ctx, now); err != nil {
		s.log.Error("reminder dispatch failed", logx.Err(err))
	}
	s.dig.Run(ctx, now)
	if err := s.pay.DispatchDue(ctx, now); err != nil {
		s.log.Error("payment dispatch failed", logx.Err(err))
	}
}
