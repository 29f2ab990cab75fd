package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/recurrence"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type fakeStore struct {
	rows   map[int64]*Schedule
	nextID int64
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[int64]*Schedule{}} }

func (f *fakeStore) add(sc Schedule) Schedule {
	f.nextID++
	sc.ID = f.nextID
	if sc.Status == "" {
		sc.Status = StatusActive
	}
	f.rows[sc.ID] = &sc
	return sc
}

func (f *fakeStore) FindDueBefore(ctx context.Context, now time.Time) ([]Schedule, error) {
	var out []Schedule
	for _, sc := range f.rows {
		if sc.Status == StatusActive && sc.NextPaymentAt != nil && !sc.NextPaymentAt.After(now) {
			out = append(out, *sc)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].NextPaymentAt.Before(*out[i].NextPaymentAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, d Draft) (Schedule, error) {
	next := d.NextPaymentAt
	return f.add(Schedule{
		ChatID:        d.ChatID,
		Recipient:     d.Recipient,
		Amount:        d.Amount,
		Description:   d.Description,
		Rule:          d.Rule,
		NextPaymentAt: &next,
		TotalPayments: d.TotalPayments,
		CreatedAt:     time.Now(),
	}), nil
}

func (f *fakeStore) UpdateAfterPayment(ctx context.Context, id int64, next *time.Time, paidCount int) error {
	sc, ok := f.rows[id]
	if !ok {
		return ErrNotFound
	}
	sc.PaidCount = paidCount
	sc.NextPaymentAt = next
	if next == nil {
		sc.Status = StatusCompleted
	}
	return nil
}

func (f *fakeStore) FindByOwner(ctx context.Context, chatID int64) ([]Schedule, error) {
	var out []Schedule
	for _, sc := range f.rows {
		if sc.ChatID == chatID {
			out = append(out, *sc)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ID < out[i].ID {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Cancel(ctx context.Context, id int64) error {
	sc, ok := f.rows[id]
	if !ok {
		return ErrNotFound
	}
	sc.Status = StatusCancelled
	return nil
}

type fakeMessenger struct {
	sent []string
	fail bool
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	if m.fail {
		return errors.New("send failed")
	}
	m.sent = append(m.sent, text)
	return nil
}

func at(d, h int) time.Time {
	return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC)
}

func TestSeriesOfThreeCompletes(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	first := at(15, 9)
	sc := st.add(Schedule{
		ChatID:        7,
		Recipient:     "alias.luz",
		Amount:        1500,
		Rule:          recurrence.Rule{Kind: recurrence.Monthly, Day: 15, TimeOfDay: "09:00"},
		NextPaymentAt: &first,
		TotalPayments: 3,
	})
	svc := New(Config{}, st, &fakeMessenger{}, nil, logx.Nop())

	for i := 1; i <= 3; i++ {
		cur := *st.rows[sc.ID]
		if err := svc.Process(context.Background(), cur); err != nil {
			t.Fatalf("Process #%d: %v", i, err)
		}
		got := st.rows[sc.ID]
		if got.PaidCount != i {
			t.Fatalf("after #%d paidCount = %d, want %d", i, got.PaidCount, i)
		}
		if i < 3 {
			if got.Status != StatusActive {
				t.Fatalf("after #%d status = %s, want ACTIVE", i, got.Status)
			}
			// Next date advances from the PREVIOUS due date, not call time.
			want := time.Date(2024, time.Month(1+i), 15, 9, 0, 0, 0, time.UTC)
			if got.NextPaymentAt == nil || !got.NextPaymentAt.Equal(want) {
				t.Fatalf("after #%d next = %v, want %v", i, got.NextPaymentAt, want)
			}
		}
	}

	got := st.rows[sc.ID]
	if got.Status != StatusCompleted {
		t.Fatalf("final status = %s, want COMPLETED", got.Status)
	}
	if got.NextPaymentAt != nil {
		t.Fatalf("final next = %v, want nil", got.NextPaymentAt)
	}
}

func TestOneShotCompletesImmediately(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	first := at(15, 9)
	sc := st.add(Schedule{ChatID: 7, Recipient: "x", Amount: 10, Rule: recurrence.Rule{Kind: recurrence.None}, NextPaymentAt: &first})
	svc := New(Config{}, st, &fakeMessenger{}, nil, logx.Nop())

	if err := svc.Process(context.Background(), *st.rows[sc.ID]); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := st.rows[sc.ID]
	if got.Status != StatusCompleted || got.NextPaymentAt != nil || got.PaidCount != 1 {
		t.Fatalf("one-shot not completed: %+v", got)
	}
}

func TestDispatchDueAdvancesOnlyOnDelivery(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	first := at(15, 9)
	sc := st.add(Schedule{
		ChatID:        7,
		Recipient:     "alias.alquiler",
		Amount:        300000,
		Rule:          recurrence.Rule{Kind: recurrence.Monthly, Day: 15, TimeOfDay: "09:00"},
		NextPaymentAt: &first,
	})

	m := &fakeMessenger{fail: true}
	svc := New(Config{}, st, m, nil, logx.Nop())
	now := at(15, 10)

	// Failed delivery: series untouched, retried by the next poll.
	if err := svc.DispatchDue(context.Background(), now); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	got := st.rows[sc.ID]
	if got.PaidCount != 0 || !got.NextPaymentAt.Equal(first) {
		t.Fatalf("failed delivery advanced the series: %+v", got)
	}

	// Delivery recovers: same due payment is re-attempted and then advances.
	m.fail = false
	if err := svc.DispatchDue(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	got = st.rows[sc.ID]
	if got.PaidCount != 1 {
		t.Fatalf("paidCount = %d, want 1", got.PaidCount)
	}
	want := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)
	if got.NextPaymentAt == nil || !got.NextPaymentAt.Equal(want) {
		t.Fatalf("next = %v, want %v (anchored on previous due date)", got.NextPaymentAt, want)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(m.sent))
	}
}

func TestReminderTextIncludesDeepLinkAndInstallment(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	first := at(15, 9)
	st.add(Schedule{
		ChatID:        7,
		Recipient:     "alias.gym",
		Amount:        9999.5,
		Description:   "cuota gimnasio",
		Rule:          recurrence.Rule{Kind: recurrence.Monthly, Day: 15},
		NextPaymentAt: &first,
		PaidCount:     1,
		TotalPayments: 12,
	})

	m := &fakeMessenger{}
	svc := New(Config{DeepLinkBase: "https://pay.example.com/transfer"}, st, m, nil, logx.Nop())
	if err := svc.DispatchDue(context.Background(), at(15, 10)); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(m.sent))
	}
	msg := m.sent[0]
	for _, want := range []string{"alias.gym", "9999.50", "cuota 2 de 12", "https://pay.example.com/transfer?", "to=alias.gym"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}

func TestCancelByIndex(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	n1, n2 := at(10, 9), at(20, 9)
	st.add(Schedule{ChatID: 7, Recipient: "a", Amount: 1, Rule: recurrence.Rule{Kind: recurrence.Daily}, NextPaymentAt: &n1})
	sc2 := st.add(Schedule{ChatID: 7, Recipient: "b", Amount: 2, Rule: recurrence.Rule{Kind: recurrence.Daily}, NextPaymentAt: &n2})
	svc := New(Config{}, st, &fakeMessenger{}, nil, logx.Nop())

	got, err := svc.CancelByIndex(context.Background(), 7, 2)
	if err != nil {
		t.Fatalf("CancelByIndex: %v", err)
	}
	if got.ID != sc2.ID {
		t.Fatalf("cancelled id %d, want %d", got.ID, sc2.ID)
	}
	if st.rows[sc2.ID].Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", st.rows[sc2.ID].Status)
	}

	active, _ := svc.ActiveSchedules(context.Background(), 7)
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
	if _, err := svc.CancelByIndex(context.Background(), 7, 5); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}
