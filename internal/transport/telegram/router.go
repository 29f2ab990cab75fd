package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/payment"
	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/reminder"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

// Router wires the management slash-commands. Reminder/payment creation
// flows through the intent pipeline elsewhere; these commands only inspect
// and cancel.
type Router struct {
	Reminders *reminder.Service
	Payments  *payment.Service
	Log       logx.Logger
}

func (r *Router) Register(b *tele.Bot) {
	b.Handle("/start", r.handleStart)
	b.Handle("/recordatorios", r.handleReminders)
	b.Handle("/pagos", r.handlePayments)
	b.Handle("/cancelar_pago", r.handleCancelPayment)
	b.Handle("/cancelar_recordatorio", r.handleCancelReminder)
}

func (r *Router) handleStart(c tele.Context) error {
	return c.Send("Hola! Soy tu asistente. Comandos: /recordatorios /pagos /cancelar_pago /cancelar_recordatorio")
}

func (r *Router) handleReminders(c tele.Context) error {
	ctx, cancel := cmdCtx()
	defer cancel()

	list, err := r.Reminders.PendingByChat(ctx, c.Chat().ID)
	if err != nil {
		r.Log.Error("list reminders failed", logx.Err(err))
		return c.Send("No pude leer tus recordatorios, probá de nuevo.")
	}
	if len(list) == 0 {
		return c.Send("No tenés recordatorios pendientes.")
	}

	var b strings.Builder
	b.WriteString("📝 Recordatorios pendientes:\n")
	for _, rem := range list {
		fmt.Fprintf(&b, "• #%d %s — %s", rem.ID, rem.ScheduledAt.Format("02/01 15:04"), rem.Text)
		if rem.Rule.IsRecurring() {
			fmt.Fprintf(&b, " (%s)", strings.ToLower(string(rem.Rule.Kind)))
		}
		b.WriteString("\n")
	}
	return c.Send(b.String())
}

func (r *Router) handlePayments(c tele.Context) error {
	ctx, cancel := cmdCtx()
	defer cancel()

	list, err := r.Payments.ActiveSchedules(ctx, c.Chat().ID)
	if err != nil {
		r.Log.Error("list payments failed", logx.Err(err))
		return c.Send("No pude leer tus pagos programados.")
	}
	if len(list) == 0 {
		return c.Send("No tenés pagos programados activos.")
	}

	var b strings.Builder
	b.WriteString("💸 Pagos programados:\n")
	for i, sc := range list {
		fmt.Fprintf(&b, "%d. $%.2f a %s", i+1, sc.Amount, sc.Recipient)
		if sc.NextPaymentAt != nil {
			fmt.Fprintf(&b, " — próximo %s", sc.NextPaymentAt.Format("02/01 15:04"))
		}
		if sc.TotalPayments > 0 {
			fmt.Fprintf(&b, " (%d/%d)", sc.PaidCount, sc.TotalPayments)
		}
		b.WriteString("\n")
	}
	b.WriteString("Cancelá con /cancelar_pago <número>")
	return c.Send(b.String())
}

func (r *Router) handleCancelPayment(c tele.Context) error {
	idx, err := strconv.Atoi(strings.TrimSpace(c.Message().Payload))
	if err != nil {
		return c.Send("Usá: /cancelar_pago <número de la lista /pagos>")
	}

	ctx, cancel := cmdCtx()
	defer cancel()

	sc, err := r.Payments.CancelByIndex(ctx, c.Chat().ID, idx)
	if err != nil {
		return c.Send("No encontré ese pago programado.")
	}
	return c.Send(fmt.Sprintf("✅ Cancelado el pago de $%.2f a %s.", sc.Amount, sc.Recipient))
}

func (r *Router) handleCancelReminder(c tele.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil {
		return c.Send("Usá: /cancelar_recordatorio <id de la lista /recordatorios>")
	}

	ctx, cancel := cmdCtx()
	defer cancel()

	if err := r.Reminders.Cancel(ctx, id); err != nil {
		return c.Send("No encontré ese recordatorio.")
	}
	return c.Send("✅ Recordatorio cancelado.")
}

func cmdCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
