package engine

import (
	"slices"

	"docketline/internal/domain"
)

// relation is how an actor stands with respect to a record.
type relation string

const (
	relLawyer    relation = "lawyer"
	relClient    relation = "client"
	relInitiator relation = "initiator"
	relMediator  relation = "mediator"
	relAssignee  relation = "assignee"
	relAdmin     relation = "admin"
)

type rule[S ~string] struct {
	from   []S
	actors []relation
}

// machine is a transition table keyed by target status.
type machine[S ~string] struct {
	entity string
	rules  map[S]rule[S]
}

// check validates a transition. The actor is checked before the current
// status, so a stranger asking for an illegal transition gets ForbiddenError.
// For a target with no rule, an actor no rule admits is also forbidden.
func (m machine[S]) check(from, to S, actorID string, rels []relation) error {
	forbidden := ForbiddenError{Entity: m.entity, ActorID: actorID, Action: actionFor(string(to))}
	r, ok := m.rules[to]
	if !ok {
		if !m.admitsAny(rels) {
			return forbidden
		}
		return InvalidStateError{Entity: m.entity, From: string(from), To: string(to)}
	}
	if !allowed(r.actors, rels) {
		return forbidden
	}
	if !slices.Contains(r.from, from) {
		return InvalidStateError{Entity: m.entity, From: string(from), To: string(to)}
	}
	return nil
}

func allowed(actors, rels []relation) bool {
	return slices.ContainsFunc(rels, func(rel relation) bool { return slices.Contains(actors, rel) })
}

// admitsAny reports whether some rule of the machine admits one of rels.
func (m machine[S]) admitsAny(rels []relation) bool {
	for _, r := range m.rules {
		if allowed(r.actors, rels) {
			return true
		}
	}
	return false
}

func actionFor(to string) string {
	switch to {
	case "CONFIRMED":
		return "confirm"
	case "CANCELLED":
		return "cancel"
	case "COMPLETED":
		return "complete"
	case "SCHEDULED":
		return "schedule"
	case "IN_PROGRESS":
		return "start"
	case "FAILED":
		return "fail"
	case "PENDING":
		return "reopen"
	default:
		return "move to " + to
	}
}

var appointmentFSM = machine[domain.AppointmentStatus]{
	entity: "appointment",
	rules: map[domain.AppointmentStatus]rule[domain.AppointmentStatus]{
		domain.AppointmentConfirmed: {
			from:   []domain.AppointmentStatus{domain.AppointmentScheduled},
			actors: []relation{relLawyer, relClient},
		},
		domain.AppointmentCancelled: {
			from:   []domain.AppointmentStatus{domain.AppointmentScheduled, domain.AppointmentConfirmed},
			actors: []relation{relLawyer, relClient},
		},
		domain.AppointmentCompleted: {
			from:   []domain.AppointmentStatus{domain.AppointmentScheduled, domain.AppointmentConfirmed},
			actors: []relation{relLawyer},
		},
	},
}

var mediationFSM = machine[domain.MediationStatus]{
	entity: "mediation",
	rules: map[domain.MediationStatus]rule[domain.MediationStatus]{
		domain.MediationScheduled: {
			from:   []domain.MediationStatus{domain.MediationPending},
			actors: []relation{relMediator, relAdmin},
		},
		domain.MediationInProgress: {
			from:   []domain.MediationStatus{domain.MediationScheduled},
			actors: []relation{relMediator, relAdmin},
		},
		domain.MediationCompleted: {
			from:   []domain.MediationStatus{domain.MediationInProgress},
			actors: []relation{relMediator, relAdmin},
		},
		domain.MediationFailed: {
			from:   []domain.MediationStatus{domain.MediationPending, domain.MediationScheduled, domain.MediationInProgress},
			actors: []relation{relMediator, relAdmin},
		},
	},
}

var taskFSM = machine[domain.TaskStatus]{
	entity: "task",
	rules: map[domain.TaskStatus]rule[domain.TaskStatus]{
		domain.TaskInProgress: {
			from:   []domain.TaskStatus{domain.TaskPending},
			actors: []relation{relAssignee, relLawyer, relAdmin},
		},
		domain.TaskPending: {
			from:   []domain.TaskStatus{domain.TaskInProgress},
			actors: []relation{relAssignee, relLawyer, relAdmin},
		},
		domain.TaskCompleted: {
			from:   []domain.TaskStatus{domain.TaskPending, domain.TaskInProgress},
			actors: []relation{relAssignee, relLawyer, relAdmin},
		},
		domain.TaskCancelled: {
			from:   []domain.TaskStatus{domain.TaskPending, domain.TaskInProgress},
			actors: []relation{relLawyer, relAdmin},
		},
	},
}

func appointmentRelations(a domain.Appointment, actor domain.Actor) []relation {
	var rels []relation
	if actor.ID == "" {
		return nil
	}
	if actor.ID == a.LawyerID {
		rels = append(rels, relLawyer)
	}
	if actor.ID == a.ClientID {
		rels = append(rels, relClient)
	}
	return rels
}

func mediationRelations(m domain.Mediation, actor domain.Actor) []relation {
	var rels []relation
	if actor.ID == "" {
		return nil
	}
	if actor.ID == m.InitiatorID {
		rels = append(rels, relInitiator)
	}
	if actor.ID == m.MediatorID {
		rels = append(rels, relMediator)
	}
	if actor.Role == domain.RoleAdmin {
		rels = append(rels, relAdmin)
	}
	return rels
}

func taskRelations(t domain.Task, actor domain.Actor) []relation {
	var rels []relation
	if actor.ID == "" {
		return nil
	}
	if actor.ID == t.AssignedTo {
		rels = append(rels, relAssignee)
	}
	switch actor.Role {
	case domain.RoleLawyer:
		rels = append(rels, relLawyer)
	case domain.RoleAdmin:
		rels = append(rels, relAdmin)
	}
	return rels
}
