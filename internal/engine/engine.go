// Package engine holds the scheduling and lifecycle rules for appointments,
// mediations and tasks: slot conflict detection, status transition tables
// with actor checks, and reminder arming.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docketline/internal/clock"
	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/metrics"
)

// DefaultReminderLead is how long before a mediation session its reminder fires.
const DefaultReminderLead = 24 * time.Hour

// Reminders arms deferred reminders. Implemented by *reminder.Scheduler.
type Reminders interface {
	Arm(ownerID string, dueAt time.Time, message string) string
}

type Engine struct {
	Store     Store
	Events    events.Emitter
	Reminders Reminders
	Metrics   *metrics.Metrics
	Clock     clock.Clock

	ReminderLead    time.Duration
	DefaultDuration int
}

func New(store Store, cfg *config.Config) Engine {
	e := Engine{
		Store:           store,
		Events:          events.Discard{},
		Clock:           clock.System{},
		ReminderLead:    DefaultReminderLead,
		DefaultDuration: domain.DefaultDurationMinutes,
	}
	if cfg != nil {
		if cfg.Reminders.Lead > 0 {
			e.ReminderLead = cfg.Reminders.Lead
		}
		if cfg.Appointments.DefaultDurationMinutes > 0 {
			e.DefaultDuration = cfg.Appointments.DefaultDurationMinutes
		}
	}
	return e
}

func (e Engine) now() time.Time {
	return clock.OrSystem(e.Clock).Now().UTC()
}

func (e Engine) lead() time.Duration {
	if e.ReminderLead > 0 {
		return e.ReminderLead
	}
	return DefaultReminderLead
}

func (e Engine) emit(ctx context.Context, evtType, kind, id, actorID string, payload events.Payload) {
	if e.Events == nil {
		return
	}
	e.Events.Emit(ctx, events.New(e.now(), evtType, kind, id, actorID, payload))
}

// reject records a refused operation and passes err through.
func (e Engine) reject(entity string, err error) error {
	if err != nil {
		e.Metrics.IncRejection(entity, errorKind(err))
	}
	return err
}

func newID() string {
	return uuid.NewString()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
