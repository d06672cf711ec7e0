package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/reminder"
	"docketline/internal/repo"
)

// MediationCreateOptions are parameters for initiating a mediation.
type MediationCreateOptions struct {
	CaseID      string
	InitiatorID string
	MediatorID  string
	Reason      string
	Notes       string
}

// MediationStatusOptions are parameters for a direct status update.
type MediationStatusOptions struct {
	ID           string
	Status       domain.MediationStatus
	SessionNotes string
	Actor        domain.Actor
	// Force skips the transition table. Only admins may force.
	Force bool
}

func validMediationStatus(s domain.MediationStatus) bool {
	switch s {
	case domain.MediationPending, domain.MediationScheduled, domain.MediationInProgress,
		domain.MediationCompleted, domain.MediationFailed:
		return true
	}
	return false
}

func (e Engine) InitiateMediation(ctx context.Context, opts MediationCreateOptions) (domain.Mediation, error) {
	switch {
	case opts.CaseID == "":
		return domain.Mediation{}, e.reject("mediation", ValidationError{Field: "case_id", Reason: "is required"})
	case opts.InitiatorID == "":
		return domain.Mediation{}, e.reject("mediation", ValidationError{Field: "initiator_id", Reason: "is required"})
	case opts.MediatorID == "":
		return domain.Mediation{}, e.reject("mediation", ValidationError{Field: "mediator_id", Reason: "is required"})
	case strings.TrimSpace(opts.Reason) == "":
		return domain.Mediation{}, e.reject("mediation", ValidationError{Field: "reason", Reason: "is required"})
	}
	now := e.now()
	m := domain.Mediation{
		ID:          newID(),
		CaseID:      opts.CaseID,
		InitiatorID: opts.InitiatorID,
		MediatorID:  opts.MediatorID,
		Reason:      opts.Reason,
		Status:      domain.MediationPending,
		Notes:       optionalString(opts.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.InsertMediation(ctx, m); err != nil {
		return domain.Mediation{}, fmt.Errorf("insert mediation: %w", err)
	}
	e.Metrics.IncTransition("mediation", string(m.Status))
	e.emit(ctx, events.MediationInitiated, "mediation", m.ID, m.InitiatorID, events.Payload{
		"case_id":     m.CaseID,
		"mediator_id": m.MediatorID,
		"reason":      m.Reason,
	})
	return m, nil
}

func (e Engine) GetMediation(ctx context.Context, id string) (domain.Mediation, error) {
	m, err := e.Store.GetMediation(ctx, id)
	if err != nil {
		return m, notFound("mediation", id, err)
	}
	return m, nil
}

func (e Engine) ListMediations(ctx context.Context, f repo.MediationFilter) ([]domain.Mediation, error) {
	return e.Store.ListMediations(ctx, f)
}

// ScheduleSession moves a PENDING mediation to SCHEDULED and arms one
// reminder at scheduledAt minus the reminder lead. The reminder is armed
// only after the write succeeds, so concurrent callers arm at most one.
func (e Engine) ScheduleSession(ctx context.Context, id string, scheduledAt time.Time, location string, actor domain.Actor) (domain.Mediation, string, error) {
	if scheduledAt.IsZero() {
		return domain.Mediation{}, "", e.reject("mediation", ValidationError{Field: "scheduled_date", Reason: "is required"})
	}
	m, err := e.Store.GetMediation(ctx, id)
	if err != nil {
		return m, "", e.reject("mediation", notFound("mediation", id, err))
	}
	if err := mediationFSM.check(m.Status, domain.MediationScheduled, actor.ID, mediationRelations(m, actor)); err != nil {
		return m, "", e.reject("mediation", err)
	}
	from := m.Status
	at := scheduledAt.UTC()
	m.Status = domain.MediationScheduled
	m.ScheduledDate = &at
	m.Location = optionalString(strings.TrimSpace(location))
	m.UpdatedAt = e.now()
	if err := e.Store.UpdateMediation(ctx, m, from); err != nil {
		return m, "", e.reject("mediation", e.storeErr("mediation", id, from, m.Status, err))
	}
	e.Metrics.IncTransition("mediation", string(m.Status))

	var reminderID string
	dueAt := at.Add(-e.lead())
	if e.Reminders != nil {
		reminderID = e.Reminders.Arm(m.ID, dueAt, sessionReminderMessage(m))
	}
	e.emit(ctx, events.MediationScheduled, "mediation", m.ID, actor.ID, events.Payload{
		"case_id":        m.CaseID,
		"scheduled_date": at,
		"location":       location,
		"reminder_id":    reminderID,
		"reminder_at":    dueAt,
	})
	return m, reminderID, nil
}

func sessionReminderMessage(m domain.Mediation) string {
	msg := fmt.Sprintf("Mediation session for case %s on %s", m.CaseID, m.ScheduledDate.UTC().Format(time.RFC1123))
	if m.Location != nil {
		msg += " at " + *m.Location
	}
	return msg
}

// UpdateMediationStatus applies a direct status change through the mediation
// transition table. An admin may force any status except SCHEDULED, which is
// only reachable through ScheduleSession.
func (e Engine) UpdateMediationStatus(ctx context.Context, opts MediationStatusOptions) (domain.Mediation, error) {
	if !validMediationStatus(opts.Status) {
		return domain.Mediation{}, e.reject("mediation", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %q", opts.Status)})
	}
	m, err := e.Store.GetMediation(ctx, opts.ID)
	if err != nil {
		return m, e.reject("mediation", notFound("mediation", opts.ID, err))
	}
	rels := mediationRelations(m, opts.Actor)
	if opts.Force {
		if opts.Actor.Role != domain.RoleAdmin {
			return m, e.reject("mediation", ForbiddenError{Entity: "mediation", ActorID: opts.Actor.ID, Action: "force status on"})
		}
	} else if err := mediationFSM.check(m.Status, opts.Status, opts.Actor.ID, rels); err != nil {
		return m, e.reject("mediation", err)
	}
	// A SCHEDULED mediation always carries a date and an armed reminder.
	if opts.Status == domain.MediationScheduled {
		return m, e.reject("mediation", InvalidStateError{
			Entity: "mediation", From: string(m.Status), To: string(opts.Status),
			Reason: "use schedule session",
		})
	}
	from := m.Status
	m.Status = opts.Status
	if notes := strings.TrimSpace(opts.SessionNotes); notes != "" {
		m.SessionNotes = &notes
	}
	m.UpdatedAt = e.now()
	if err := e.Store.UpdateMediation(ctx, m, from); err != nil {
		return m, e.reject("mediation", e.storeErr("mediation", opts.ID, from, m.Status, err))
	}
	e.Metrics.IncTransition("mediation", string(m.Status))
	e.emit(ctx, events.MediationStatusChanged, "mediation", m.ID, opts.Actor.ID, events.Payload{
		"from":   from,
		"to":     m.Status,
		"forced": opts.Force,
	})
	return m, nil
}

// DeleteMediation removes a mediation. Reminders already armed for it become
// stale and are dropped when they fire.
func (e Engine) DeleteMediation(ctx context.Context, id string, actor domain.Actor) error {
	m, err := e.Store.GetMediation(ctx, id)
	if err != nil {
		return e.reject("mediation", notFound("mediation", id, err))
	}
	if actor.ID == "" || (actor.ID != m.InitiatorID && actor.Role != domain.RoleAdmin) {
		return e.reject("mediation", ForbiddenError{Entity: "mediation", ActorID: actor.ID, Action: "delete"})
	}
	if err := e.Store.DeleteMediation(ctx, id); err != nil {
		return notFound("mediation", id, err)
	}
	e.emit(ctx, events.MediationDeleted, "mediation", id, actor.ID, events.Payload{"status": m.Status})
	return nil
}

// FireReminder is the reminder side effect. It returns reminder.ErrOwnerGone
// when the mediation was deleted or is no longer SCHEDULED, which the
// scheduler treats as a silent drop.
func (e Engine) FireReminder(ctx context.Context, r domain.Reminder) error {
	m, err := e.Store.GetMediation(ctx, r.OwnerID)
	if errors.Is(err, repo.ErrNotFound) {
		return reminder.ErrOwnerGone
	}
	if err != nil {
		return fmt.Errorf("load mediation %s: %w", r.OwnerID, err)
	}
	if m.Status != domain.MediationScheduled {
		return reminder.ErrOwnerGone
	}
	payload := events.Payload{
		"reminder_id": r.ID,
		"message":     r.Message,
		"case_id":     m.CaseID,
		"recipients":  []string{m.InitiatorID, m.MediatorID},
	}
	if m.ScheduledDate != nil {
		payload["scheduled_date"] = *m.ScheduledDate
	}
	e.emit(ctx, events.MediationReminder, "mediation", m.ID, "", payload)
	return nil
}
