// Package reminder keeps ephemeral, process-lifetime reminders and fires them
// by polling. Reminders are not persisted: a restart loses every armed
// reminder. Each reminder fires at most once.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docketline/internal/clock"
	"docketline/internal/domain"
	"docketline/internal/metrics"
)

// ErrOwnerGone is returned by a Firer when the reminder's owner no longer
// exists or no longer wants the reminder. The scheduler drops it quietly.
var ErrOwnerGone = errors.New("reminder owner gone")

const (
	DefaultInterval    = time.Hour
	defaultConcurrency = 4
)

// Firer performs the side effect of a due reminder.
type Firer interface {
	FireReminder(ctx context.Context, r domain.Reminder) error
}

// FireFunc adapts a function to Firer.
type FireFunc func(ctx context.Context, r domain.Reminder) error

func (f FireFunc) FireReminder(ctx context.Context, r domain.Reminder) error { return f(ctx, r) }

type Options struct {
	// Concurrency bounds how many reminders fire at once within a tick.
	Concurrency int
	Clock       clock.Clock
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

type Scheduler struct {
	fire    Firer
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	sem     chan struct{}

	mu      sync.Mutex
	pending map[string]domain.Reminder
}

func New(fire Firer, opts Options) *Scheduler {
	n := opts.Concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		fire:    fire,
		clock:   clock.OrSystem(opts.Clock),
		logger:  logger,
		metrics: opts.Metrics,
		sem:     make(chan struct{}, n),
		pending: map[string]domain.Reminder{},
	}
}

// Arm stores a reminder for ownerID due at dueAt and returns its id. An owner
// may hold any number of reminders.
func (s *Scheduler) Arm(ownerID string, dueAt time.Time, message string) string {
	r := domain.Reminder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		DueAt:     dueAt.UTC(),
		Message:   message,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.mu.Lock()
	s.pending[r.ID] = r
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.IncReminderArmed()
	s.metrics.SetRemindersPending(n)
	s.logger.Debug("reminder armed", "reminder_id", r.ID, "owner_id", ownerID, "due_at", r.DueAt)
	return r.ID
}

// Cancel removes a pending reminder. It reports whether one was removed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.SetRemindersPending(n)
	return ok
}

// Pending returns a snapshot of armed reminders ordered by due time.
func (s *Scheduler) Pending() []domain.Reminder {
	s.mu.Lock()
	out := make([]domain.Reminder, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// take removes and returns every reminder due at or before now.
func (s *Scheduler) take(now time.Time) ([]domain.Reminder, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Reminder
	for id, r := range s.pending {
		if !r.DueAt.After(now) {
			due = append(due, r)
			delete(s.pending, id)
		}
	}
	return due, len(s.pending)
}

// Tick fires every reminder due at or before now and returns how many were
// due. Due reminders leave the pending set before their side effect runs, so
// a failing side effect is not retried. Failures are logged per reminder.
// Once ctx is done, reminders still waiting for a slot are dropped.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	due, left := s.take(now)
	s.metrics.SetRemindersPending(left)
	if len(due) == 0 {
		return 0
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })

	var wg sync.WaitGroup
	for i, r := range due {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.dropUnfired(due[i:], ctx.Err())
			wg.Wait()
			return len(due)
		}
		wg.Add(1)
		go func(r domain.Reminder) {
			defer wg.Done()
			defer func() { <-s.sem }()
			s.fireOne(ctx, r)
		}(r)
	}
	wg.Wait()
	return len(due)
}

// dropUnfired discards reminders that were due when the tick was cancelled.
func (s *Scheduler) dropUnfired(rest []domain.Reminder, cause error) {
	for _, r := range rest {
		s.metrics.IncReminderDropped()
		s.logger.Warn("reminder dropped; tick cancelled", "reminder_id", r.ID, "owner_id", r.OwnerID, "err", cause)
	}
}

func (s *Scheduler) fireOne(ctx context.Context, r domain.Reminder) {
	err := s.safeFire(ctx, r)
	switch {
	case err == nil:
		s.metrics.IncReminderFired()
		s.logger.Info("reminder fired", "reminder_id", r.ID, "owner_id", r.OwnerID)
	case errors.Is(err, ErrOwnerGone):
		s.metrics.IncReminderDropped()
		s.logger.Debug("reminder dropped; owner gone", "reminder_id", r.ID, "owner_id", r.OwnerID)
	default:
		s.metrics.IncReminderFailure()
		s.logger.Error("reminder fire failed", "reminder_id", r.ID, "owner_id", r.OwnerID, "err", err)
	}
}

func (s *Scheduler) safeFire(ctx context.Context, r domain.Reminder) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reminder side effect panicked: %v", p)
		}
	}()
	if s.fire == nil {
		return errors.New("no reminder firer configured")
	}
	return s.fire.FireReminder(ctx, r)
}

// Run ticks every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("reminder scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped", "pending", len(s.Pending()))
			return nil
		case <-ticker.C:
			if n := s.Tick(ctx, s.clock.Now()); n > 0 {
				s.logger.Debug("reminder tick", "due", n)
			}
		}
	}
}
