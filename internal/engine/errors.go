package engine

import (
	"errors"
	"fmt"
	"time"

	"docketline/internal/repo"
)

// ErrNotFound is the store's sentinel; NotFoundError wraps it.
var ErrNotFound = repo.ErrNotFound

// NotFoundError names the entity that could not be found.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

// ConflictError indicates the lawyer's slot is already held by a SCHEDULED appointment.
type ConflictError struct {
	LawyerID string
	At       time.Time
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("lawyer %s already has an appointment scheduled at %s", e.LawyerID, e.At.UTC().Format(time.RFC3339))
}

// ForbiddenError indicates the actor may not move the entity to the requested status.
type ForbiddenError struct {
	Entity  string
	ActorID string
	Action  string
}

func (e ForbiddenError) Error() string {
	if e.ActorID == "" {
		return fmt.Sprintf("actor required to %s %s", e.Action, e.Entity)
	}
	return fmt.Sprintf("actor %s may not %s %s", e.ActorID, e.Action, e.Entity)
}

// InvalidStateError indicates the transition is not allowed from the current status.
type InvalidStateError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e InvalidStateError) Error() string {
	msg := fmt.Sprintf("invalid %s status transition %s -> %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// errorKind labels an engine error for metrics.
func errorKind(err error) string {
	var (
		nf NotFoundError
		cf ConflictError
		fb ForbiddenError
		is InvalidStateError
		ve ValidationError
	)
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &cf):
		return "conflict"
	case errors.As(err, &fb):
		return "forbidden"
	case errors.As(err, &is):
		return "invalid_state"
	case errors.As(err, &ve):
		return "validation"
	default:
		return "internal"
	}
}
