package repo

import (
	"time"

	"docketline/internal/domain"
)

// AppointmentFilter is the find-by-predicate query for appointments. Zero
// values are ignored. Results are ordered by scheduled_at.
type AppointmentFilter struct {
	LawyerID string
	ClientID string
	CaseID   string
	Status   []domain.AppointmentStatus
	At       *time.Time
	From     *time.Time
	To       *time.Time
	Desc     bool
	Limit    int
}

type MediationFilter struct {
	CaseID     string
	MediatorID string
	Status     []domain.MediationStatus
	Limit      int
}

// TaskFilter selects tasks ordered by due date, then id.
type TaskFilter struct {
	CaseID     string
	AssignedTo string
	Status     []domain.TaskStatus
	DueBefore  *time.Time
	Limit      int
}

func containsStatus[S ~string](set []S, s S) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Match applies the filter to a single appointment; used by in-memory stores.
func (f AppointmentFilter) Match(a domain.Appointment) bool {
	switch {
	case f.LawyerID != "" && a.LawyerID != f.LawyerID,
		f.ClientID != "" && a.ClientID != f.ClientID,
		f.CaseID != "" && (a.CaseID == nil || *a.CaseID != f.CaseID),
		!containsStatus(f.Status, a.Status),
		f.At != nil && !a.ScheduledAt.Equal(*f.At),
		f.From != nil && a.ScheduledAt.Before(*f.From),
		f.To != nil && !a.ScheduledAt.Before(*f.To):
		return false
	}
	return true
}

func (f MediationFilter) Match(m domain.Mediation) bool {
	switch {
	case f.CaseID != "" && m.CaseID != f.CaseID,
		f.MediatorID != "" && m.MediatorID != f.MediatorID,
		!containsStatus(f.Status, m.Status):
		return false
	}
	return true
}

func (f TaskFilter) Match(t domain.Task) bool {
	switch {
	case f.CaseID != "" && t.CaseID != f.CaseID,
		f.AssignedTo != "" && t.AssignedTo != f.AssignedTo,
		!containsStatus(f.Status, t.Status),
		f.DueBefore != nil && !t.DueDate.Before(*f.DueBefore):
		return false
	}
	return true
}

// EventFilter pages backwards through the event log: newest first, ids below
// BeforeID when set.
type EventFilter struct {
	Type       string
	EntityKind string
	EntityID   string
	BeforeID   int64
	Limit      int
}

func (f EventFilter) Match(e domain.Event) bool {
	switch {
	case f.Type != "" && e.Type != f.Type,
		f.EntityKind != "" && e.EntityKind != f.EntityKind,
		f.EntityID != "" && e.EntityID != f.EntityID,
		f.BeforeID > 0 && e.ID >= f.BeforeID:
		return false
	}
	return true
}
