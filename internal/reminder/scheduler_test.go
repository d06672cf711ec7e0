package reminder_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/clock"
	"docketline/internal/domain"
	"docketline/internal/metrics"
	"docketline/internal/reminder"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	fired []string
	err   map[string]error
}

func (r *recorder) FireReminder(_ context.Context, rem domain.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, rem.OwnerID)
	return r.err[rem.OwnerID]
}

func (r *recorder) owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestTickFiresOnlyDueReminders(t *testing.T) {
	rec := &recorder{}
	s := reminder.New(rec, reminder.Options{Clock: clock.NewManual(t0)})

	s.Arm("past", t0.Add(-time.Minute), "late")
	s.Arm("exact", t0, "on time")
	future := s.Arm("future", t0.Add(time.Nanosecond), "soon")

	assert.Equal(t, 2, s.Tick(context.Background(), t0))
	assert.ElementsMatch(t, []string{"past", "exact"}, rec.owners())

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, future, pending[0].ID)
	assert.Equal(t, "soon", pending[0].Message)
	assert.True(t, pending[0].CreatedAt.Equal(t0))

	assert.Equal(t, 0, s.Tick(context.Background(), t0))
	assert.Equal(t, 1, s.Tick(context.Background(), t0.Add(time.Second)))
	assert.Empty(t, s.Pending())
}

func TestMultipleRemindersPerOwner(t *testing.T) {
	rec := &recorder{}
	s := reminder.New(rec, reminder.Options{})
	a := s.Arm("m1", t0, "first")
	b := s.Arm("m1", t0.Add(time.Hour), "second")
	assert.NotEqual(t, a, b)
	assert.Len(t, s.Pending(), 2)

	assert.True(t, s.Cancel(a))
	assert.False(t, s.Cancel(a))
	assert.Equal(t, 1, s.Tick(context.Background(), t0.Add(2*time.Hour)))
	assert.Equal(t, []string{"m1"}, rec.owners())
}

func TestFailuresAreIsolatedAndNotRetried(t *testing.T) {
	m := metrics.New()
	rec := &recorder{err: map[string]error{
		"broken": errors.New("smtp down"),
		"gone":   reminder.ErrOwnerGone,
	}}
	s := reminder.New(rec, reminder.Options{Metrics: m})
	s.Arm("broken", t0, "x")
	s.Arm("gone", t0, "y")
	s.Arm("ok", t0, "z")

	assert.Equal(t, 3, s.Tick(context.Background(), t0))
	assert.ElementsMatch(t, []string{"broken", "gone", "ok"}, rec.owners())
	assert.Empty(t, s.Pending(), "failed reminders are not re-armed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersFired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReminderFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RemindersArmed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RemindersPending))
}

func TestPanickingSideEffectDoesNotStopTick(t *testing.T) {
	var calls atomic.Int32
	s := reminder.New(reminder.FireFunc(func(_ context.Context, r domain.Reminder) error {
		calls.Add(1)
		if r.OwnerID == "bad" {
			panic("boom")
		}
		return nil
	}), reminder.Options{Concurrency: 1})
	s.Arm("bad", t0, "")
	s.Arm("good", t0, "")
	assert.Equal(t, 2, s.Tick(context.Background(), t0))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCancelledTickDropsWaitingReminders(t *testing.T) {
	m := metrics.New()
	release := make(chan struct{})
	var calls atomic.Int32
	s := reminder.New(reminder.FireFunc(func(context.Context, domain.Reminder) error {
		calls.Add(1)
		<-release
		return nil
	}), reminder.Options{Concurrency: 1, Metrics: m})
	s.Arm("a", t0, "")
	s.Arm("b", t0, "")
	s.Arm("c", t0, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- s.Tick(ctx, t0) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.RemindersDropped) == 2 }, time.Second, time.Millisecond)
	close(release)

	select {
	case n := <-done:
		assert.Equal(t, 3, n)
	case <-time.After(time.Second):
		t.Fatal("tick did not return after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersFired))
	assert.Empty(t, s.Pending())
}

func TestArmAndTickConcurrently(t *testing.T) {
	var fired atomic.Int32
	s := reminder.New(reminder.FireFunc(func(context.Context, domain.Reminder) error {
		fired.Add(1)
		return nil
	}), reminder.Options{Concurrency: 2})

	const arms = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < arms; i++ {
			s.Arm("owner", t0, "m")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.Tick(context.Background(), t0)
		}
	}()
	wg.Wait()
	s.Tick(context.Background(), t0)
	assert.Equal(t, int32(arms), fired.Load(), "every reminder fires exactly once")
	assert.Empty(t, s.Pending())
}

func TestRunStopsWithContext(t *testing.T) {
	var fired atomic.Int32
	clk := clock.NewManual(t0)
	s := reminder.New(reminder.FireFunc(func(context.Context, domain.Reminder) error {
		fired.Add(1)
		return nil
	}), reminder.Options{Clock: clk})
	s.Arm("m1", t0.Add(-time.Second), "due")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
