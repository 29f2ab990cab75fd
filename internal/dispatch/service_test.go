package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amacapozzi/memorial-ai-bot-sub000/internal/clock"
	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

type countingStep struct {
	calls atomic.Int32
	err   error
	boom  bool
	block chan struct{} // when set, DispatchDue blocks until closed
}

func (c *countingStep) DispatchDue(ctx context.Context, now time.Time) error {
	c.calls.Add(1)
	if c.boom {
		panic("boom")
	}
	if c.block != nil {
		<-c.block
	}
	return c.err
}

type countingDigest struct {
	calls atomic.Int32
}

func (c *countingDigest) Run(ctx context.Context, now time.Time) { c.calls.Add(1) }

func fakeClock() *clock.Fake {
	return &clock.Fake{T: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func newTestService(rem *countingStep, dig *countingDigest, pay *countingStep) *Service {
	return New(Config{Interval: time.Minute}, fakeClock(), rem, dig, pay, nil, logx.Nop())
}

func TestTickRunsStepsInOrder(t *testing.T) {
	t.Parallel()
	rem, dig, pay := &countingStep{}, &countingDigest{}, &countingStep{}
	s := newTestService(rem, dig, pay)

	s.tick()

	if rem.calls.Load() != 1 || dig.calls.Load() != 1 || pay.calls.Load() != 1 {
		t.Fatalf("step calls = %d/%d/%d, want 1/1/1", rem.calls.Load(), dig.calls.Load(), pay.calls.Load())
	}
}

func TestOverlappingTickIsNoOp(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	rem := &countingStep{block: block}
	dig := &countingDigest{}
	pay := &countingStep{}
	s := newTestService(rem, dig, pay)

	// Tick A parks inside the reminder step.
	done := make(chan struct{})
	go func() {
		s.tick()
		close(done)
	}()
	for rem.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Tick B fires while A is in flight: zero store reads, zero deliveries.
	s.tick()
	if rem.calls.Load() != 1 || dig.calls.Load() != 0 || pay.calls.Load() != 0 {
		t.Fatalf("overlapping tick touched collaborators: %d/%d/%d",
			rem.calls.Load(), dig.calls.Load(), pay.calls.Load())
	}

	close(block)
	<-done

	// Guard released: the next tick runs normally.
	s.tick()
	if rem.calls.Load() != 2 || pay.calls.Load() != 2 {
		t.Fatalf("guard not released after tick completion")
	}
}

func TestStepErrorDoesNotBlockLaterSteps(t *testing.T) {
	t.Parallel()
	rem := &countingStep{err: errors.New("store down")}
	dig := &countingDigest{}
	pay := &countingStep{}
	s := newTestService(rem, dig, pay)

	s.tick()

	if dig.calls.Load() != 1 || pay.calls.Load() != 1 {
		t.Fatalf("reminder error blocked later steps: dig=%d pay=%d", dig.calls.Load(), pay.calls.Load())
	}
}

func TestPanicIsContainedAndGuardReleased(t *testing.T) {
	t.Parallel()
	rem := &countingStep{boom: true}
	dig := &countingDigest{}
	pay := &countingStep{}
	s := newTestService(rem, dig, pay)

	s.tick() // must not propagate the panic

	if s.inFlight.Load() {
		t.Fatal("guard left held after panic")
	}
	// Subsequent ticks keep running.
	rem.boom = false
	s.tick()
	if rem.calls.Load() != 2 {
		t.Fatalf("loop did not survive the panic")
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()
	rem, dig, pay := &countingStep{}, &countingDigest{}, &countingStep{}
	// Long interval: only the immediate tick should fire during the test.
	s := New(Config{Interval: time.Hour}, fakeClock(), rem, dig, pay, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for rem.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("immediate tick did not run")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	s.Stop()
	// Stop is idempotent.
	s.Stop()
}
