// Package events carries domain events from the engine to downstream
// consumers. Emission is advisory: the engine enqueues on an Outbox and never
// observes delivery failures.
package events

import (
	"context"
	"time"

	"docketline/internal/domain"
)

// Event type names emitted by the engine.
const (
	AppointmentScheduled = "appointment.scheduled"
	AppointmentConfirmed = "appointment.confirmed"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentCompleted = "appointment.completed"
	AppointmentDeleted   = "appointment.deleted"

	MediationInitiated     = "mediation.initiated"
	MediationScheduled     = "mediation.scheduled"
	MediationStatusChanged = "mediation.status_changed"
	MediationReminder      = "mediation.reminder"
	MediationDeleted       = "mediation.deleted"

	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskStatusChanged = "task.status_changed"
	TaskCompleted     = "task.completed"
	TaskDeleted       = "task.deleted"
)

// Payload is the free-form body attached to an event.
type Payload map[string]any

// Emitter is the fire-and-forget side the engine depends on.
type Emitter interface {
	Emit(ctx context.Context, evt domain.Event)
}

// Sink is a delivery target. Errors are reported to the outbox, which logs
// them; they never reach the operation that produced the event.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt domain.Event) error
}

// New builds an event stamped with ts.
func New(ts time.Time, evtType, entityKind, entityID, actorID string, payload Payload) domain.Event {
	if payload == nil {
		payload = Payload{}
	}
	return domain.Event{
		TS:         ts.UTC(),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, domain.Event) {}
