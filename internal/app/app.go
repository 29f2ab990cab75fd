// Package app assembles the assistant: config, logging, storage, the
// Telegram adapter and the dispatch engine, with hot config reload and
// systemd readiness notification.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/adapters/gcal"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/clock"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/config"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/digest"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/dispatch"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/eventbus"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/payment"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/reminder"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/storage"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/transport/telegram"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	clk  clock.Clock

	db      *storage.DB
	adapter *telegram.Adapter

	reminders *reminder.Service
	payments  *payment.Service
	digests   *digest.Service
	disp      *dispatch.Service

	unsubAudit func()
	auditDone  chan struct{}

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("INFO").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	clk, err := clock.NewFixed(cfg.Scheduler.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("scheduler.utc_offset: %w", err)
	}

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, clk.Location(), log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		db.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		db.Close()
		return nil, err
	}

	bus := eventbus.New()

	// Calendar mirroring is optional; absent config means reminders simply
	// never carry an event id.
	var cal reminder.Calendar
	if cc := cfg.Calendar; cc != nil && cc.Enabled {
		cal = gcal.New(gcal.Config{
			BaseURL:    cc.BaseURL,
			CalendarID: cc.CalendarID,
			Token:      cc.Token,
		}, log.With(logx.String("comp", "gcal")))
		log.Info("calendar mirror enabled", logx.String("calendar_id", cc.CalendarID))
	}

	remSvc := reminder.New(db.Reminders(), ad, cal, bus, log.With(logx.String("comp", "reminder")))

	paySvc := payment.New(payment.Config{
		DeepLinkBase: cfg.Payments.DeepLinkBase,
	}, db.Payments(), ad, bus, log.With(logx.String("comp", "payment")))

	digCfg := digest.Config{
		WeeklyHour:  cfg.Digest.WeeklyHour,
		MonthlyHour: cfg.Digest.MonthlyHour,
	}
	for _, r := range cfg.Digest.Recipients {
		digCfg.Recipients = append(digCfg.Recipients, digest.Recipient{
			ChatID:    r.ChatID,
			DailyHour: r.DailyHour,
		})
	}
	digSvc := digest.New(digCfg, summaryBuilder(remSvc, paySvc), ad,
		bus, log.With(logx.String("comp", "digest")))

	interval, err := config.ParseDurationOrDefault("scheduler.interval", cfg.Scheduler.Interval, time.Minute)
	if err != nil {
		db.Close()
		return nil, err
	}
	disp := dispatch.New(dispatch.Config{Interval: interval},
		clk, remSvc, digSvc, paySvc, bus, log.With(logx.String("comp", "dispatch")))

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		clk:       clk,
		db:        db,
		adapter:   ad,
		reminders: remSvc,
		payments:  paySvc,
		digests:   digSvc,
		disp:      disp,
	}

	(&telegram.Router{
		Reminders: remSvc,
		Payments:  paySvc,
		Log:       log.With(logx.String("comp", "commands")),
	}).Register(ad.Bot())

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	// Hot reload covers logging only; everything else needs a restart and
	// says so in the log.
	a.cfgm.OnChange(func(cfg *config.Config) {
		a.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
		a.log.Info("logging config applied; other sections need a restart")
	})

	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.watchDone = make(chan struct{})
	go func() {
		defer close(a.watchDone)
		if err := a.cfgm.Watch(wctx); err != nil && wctx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.startAuditLog()

	a.adapter.Start(ctx)
	a.disp.Start(ctx)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("assistant started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.disp.Stop()

	err := a.adapter.Stop(ctx)

	if a.watchCancel != nil {
		a.watchCancel()
		<-a.watchDone
	}
	if a.unsubAudit != nil {
		a.unsubAudit()
		<-a.auditDone
	}

	if cerr := a.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.logs.Close()
	a.log.Info("assistant stopped")
	return err
}

// startAuditLog persists every engine event into the dispatch_log table.
func (a *App) startAuditLog() {
	ch, unsub := a.bus.Subscribe(64)
	a.unsubAudit = unsub
	a.auditDone = make(chan struct{})

	log := a.log.With(logx.String("comp", "audit"))
	go func() {
		defer close(a.auditDone)
		for e := range ch {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.db.AppendLog(ctx, e.Time, e.Type, e.ChatID, e.RefID, e.Err); err != nil {
				log.Warn("audit append failed", logx.String("kind", e.Type), logx.Err(err))
			}
			cancel()
		}
	}()
}

// summaryBuilder is the default digest body: pending reminders plus active
// payment schedules for the recipient.
func summaryBuilder(rem *reminder.Service, pay *payment.Service) digest.Builder {
	return func(ctx context.Context, kind digest.Kind, chatID int64, now time.Time) (string, error) {
		pending, err := rem.PendingByChat(ctx, chatID)
		if err != nil {
			return "", err
		}
		active, err := pay.ActiveSchedules(ctx, chatID)
		if err != nil {
			return "", err
		}
		if len(pending) == 0 && len(active) == 0 {
			return "", nil // nothing to tell; the period still counts as served
		}

		var b strings.Builder
		switch kind {
		case digest.KindWeekly:
			b.WriteString("📰 Resumen semanal\n")
		case digest.KindMonthly:
			b.WriteString("📰 Resumen mensual\n")
		default:
			b.WriteString("📰 Resumen del día\n")
		}
		if len(pending) > 0 {
			fmt.Fprintf(&b, "Tenés %d recordatorio(s) pendiente(s):\n", len(pending))
			for _, r := range pending {
				fmt.Fprintf(&b, "• %s — %s\n", r.ScheduledAt.Format("02/01 15:04"), r.Text)
			}
		}
		if len(active) > 0 {
			fmt.Fprintf(&b, "Pagos programados activos: %d\n", len(active))
			for _, sc := range active {
				fmt.Fprintf(&b, "• $%.2f a %s", sc.Amount, sc.Recipient)
				if sc.NextPaymentAt != nil {
					fmt.Fprintf(&b, " (próximo %s)", sc.NextPaymentAt.Format("02/01"))
				}
				b.WriteString("\n")
			}
		}
		return b.String(), nil
	}
}
