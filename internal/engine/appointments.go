package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/repo"
)

// AppointmentCreateOptions are parameters for booking an appointment.
type AppointmentCreateOptions struct {
	LawyerID        string
	ClientID        string
	CaseID          string
	Type            domain.AppointmentType
	ScheduledAt     time.Time
	DurationMinutes int
	Notes           string
	ActorID         string
}

// HasConflict reports whether lawyerID already holds a SCHEDULED appointment
// at exactly at. Duration is not considered.
func (e Engine) HasConflict(ctx context.Context, lawyerID string, at time.Time) (bool, error) {
	at = at.UTC()
	held, err := e.Store.ListAppointments(ctx, repo.AppointmentFilter{
		LawyerID: lawyerID,
		Status:   []domain.AppointmentStatus{domain.AppointmentScheduled},
		At:       &at,
		Limit:    1,
	})
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return len(held) > 0, nil
}

func validAppointmentType(t domain.AppointmentType) bool {
	switch t {
	case domain.AppointmentConsultation, domain.AppointmentFollowUp, domain.AppointmentCourtPrep,
		domain.AppointmentMediation, domain.AppointmentOther:
		return true
	}
	return false
}

func (e Engine) CreateAppointment(ctx context.Context, opts AppointmentCreateOptions) (domain.Appointment, error) {
	if opts.LawyerID == "" {
		return domain.Appointment{}, e.reject("appointment", ValidationError{Field: "lawyer_id", Reason: "is required"})
	}
	if opts.ClientID == "" {
		return domain.Appointment{}, e.reject("appointment", ValidationError{Field: "client_id", Reason: "is required"})
	}
	if opts.ScheduledAt.IsZero() {
		return domain.Appointment{}, e.reject("appointment", ValidationError{Field: "scheduled_at", Reason: "is required"})
	}
	if opts.Type == "" {
		opts.Type = domain.AppointmentConsultation
	}
	if !validAppointmentType(opts.Type) {
		return domain.Appointment{}, e.reject("appointment", ValidationError{Field: "type", Reason: fmt.Sprintf("unknown value %q", opts.Type)})
	}
	if opts.DurationMinutes == 0 {
		opts.DurationMinutes = e.DefaultDuration
		if opts.DurationMinutes == 0 {
			opts.DurationMinutes = domain.DefaultDurationMinutes
		}
	}
	if opts.DurationMinutes < domain.MinDurationMinutes || opts.DurationMinutes > domain.MaxDurationMinutes {
		return domain.Appointment{}, e.reject("appointment", ValidationError{
			Field:  "duration_minutes",
			Reason: fmt.Sprintf("must be between %d and %d", domain.MinDurationMinutes, domain.MaxDurationMinutes),
		})
	}

	at := opts.ScheduledAt.UTC()
	conflict, err := e.HasConflict(ctx, opts.LawyerID, at)
	if err != nil {
		return domain.Appointment{}, err
	}
	if conflict {
		e.Metrics.IncSlotConflict()
		return domain.Appointment{}, e.reject("appointment", ConflictError{LawyerID: opts.LawyerID, At: at})
	}

	now := e.now()
	a := domain.Appointment{
		ID:              newID(),
		LawyerID:        opts.LawyerID,
		ClientID:        opts.ClientID,
		CaseID:          optionalString(opts.CaseID),
		Type:            opts.Type,
		ScheduledAt:     at,
		DurationMinutes: opts.DurationMinutes,
		Status:          domain.AppointmentScheduled,
		Notes:           opts.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Store.InsertAppointment(ctx, a); err != nil {
		if errors.Is(err, repo.ErrSlotTaken) {
			e.Metrics.IncSlotConflict()
			return domain.Appointment{}, e.reject("appointment", ConflictError{LawyerID: a.LawyerID, At: at})
		}
		return domain.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	e.Metrics.IncTransition("appointment", string(a.Status))
	e.emit(ctx, events.AppointmentScheduled, "appointment", a.ID, actorOr(opts.ActorID, a.LawyerID), events.Payload{
		"lawyer_id":        a.LawyerID,
		"client_id":        a.ClientID,
		"type":             a.Type,
		"scheduled_at":     a.ScheduledAt,
		"duration_minutes": a.DurationMinutes,
	})
	return a, nil
}

func (e Engine) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	a, err := e.Store.GetAppointment(ctx, id)
	if err != nil {
		return a, notFound("appointment", id, err)
	}
	return a, nil
}

func (e Engine) ListAppointments(ctx context.Context, f repo.AppointmentFilter) ([]domain.Appointment, error) {
	return e.Store.ListAppointments(ctx, f)
}

func (e Engine) ConfirmAppointment(ctx context.Context, id string, actor domain.Actor) (domain.Appointment, error) {
	return e.TransitionAppointment(ctx, id, domain.AppointmentConfirmed, "", actor)
}

func (e Engine) CancelAppointment(ctx context.Context, id, reason string, actor domain.Actor) (domain.Appointment, error) {
	return e.TransitionAppointment(ctx, id, domain.AppointmentCancelled, reason, actor)
}

// CompleteAppointment marks a SCHEDULED or CONFIRMED appointment as held.
// CANCELLED and COMPLETED are terminal, so completing them is InvalidState.
// Only the appointment's lawyer may complete it.
func (e Engine) CompleteAppointment(ctx context.Context, id string, actor domain.Actor) (domain.Appointment, error) {
	return e.TransitionAppointment(ctx, id, domain.AppointmentCompleted, "", actor)
}

// TransitionAppointment moves an appointment to status on behalf of actor.
// reason is required for CANCELLED and ignored otherwise.
func (e Engine) TransitionAppointment(ctx context.Context, id string, status domain.AppointmentStatus, reason string, actor domain.Actor) (domain.Appointment, error) {
	a, err := e.Store.GetAppointment(ctx, id)
	if err != nil {
		return a, e.reject("appointment", notFound("appointment", id, err))
	}
	if err := appointmentFSM.check(a.Status, status, actor.ID, appointmentRelations(a, actor)); err != nil {
		return a, e.reject("appointment", err)
	}
	reason = strings.TrimSpace(reason)
	if status == domain.AppointmentCancelled && reason == "" {
		return a, e.reject("appointment", ValidationError{Field: "reason", Reason: "is required to cancel"})
	}

	from := a.Status
	a.Status = status
	if status == domain.AppointmentCancelled {
		a.CancellationReason = &reason
	}
	a.UpdatedAt = e.now()
	if err := e.Store.UpdateAppointment(ctx, a, from); err != nil {
		return a, e.reject("appointment", e.storeErr("appointment", id, from, status, err))
	}
	e.Metrics.IncTransition("appointment", string(status))

	payload := events.Payload{"from": from, "to": status, "lawyer_id": a.LawyerID, "client_id": a.ClientID}
	var evtType string
	switch status {
	case domain.AppointmentConfirmed:
		evtType = events.AppointmentConfirmed
	case domain.AppointmentCancelled:
		evtType = events.AppointmentCancelled
		payload["reason"] = reason
	case domain.AppointmentCompleted:
		evtType = events.AppointmentCompleted
	}
	e.emit(ctx, evtType, "appointment", a.ID, actor.ID, payload)
	return a, nil
}

// DeleteAppointment removes an appointment. Only the lawyer on the record or
// an admin may do so.
func (e Engine) DeleteAppointment(ctx context.Context, id string, actor domain.Actor) error {
	a, err := e.Store.GetAppointment(ctx, id)
	if err != nil {
		return e.reject("appointment", notFound("appointment", id, err))
	}
	if actor.ID == "" || (actor.ID != a.LawyerID && actor.Role != domain.RoleAdmin) {
		return e.reject("appointment", ForbiddenError{Entity: "appointment", ActorID: actor.ID, Action: "delete"})
	}
	if err := e.Store.DeleteAppointment(ctx, id); err != nil {
		return notFound("appointment", id, err)
	}
	e.emit(ctx, events.AppointmentDeleted, "appointment", id, actor.ID, events.Payload{"status": a.Status})
	return nil
}

// storeErr translates store write failures for a transition.
func (e Engine) storeErr(entity, id string, from, to any, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, repo.ErrStale):
		return InvalidStateError{Entity: entity, From: fmt.Sprint(from), To: fmt.Sprint(to), Reason: "status changed concurrently"}
	default:
		return fmt.Errorf("update %s: %w", entity, err)
	}
}

func actorOr(actorID, fallback string) string {
	if actorID != "" {
		return actorID
	}
	return fallback
}
