// Package memory is the ephemeral entity store: process-lifetime maps behind
// per-collection locks. Nothing survives a restart. It honours the same
// contracts as the SQLite repo, including the scheduled-slot uniqueness check
// and compare-and-set updates.
package memory

import (
	"context"
	"sort"
	"sync"

	"docketline/internal/domain"
	"docketline/internal/repo"
)

type Store struct {
	apptMu       sync.RWMutex
	appointments map[string]domain.Appointment

	medMu      sync.RWMutex
	mediations map[string]domain.Mediation

	taskMu sync.RWMutex
	tasks  map[string]domain.Task
}

func New() *Store {
	return &Store{
		appointments: map[string]domain.Appointment{},
		mediations:   map[string]domain.Mediation{},
		tasks:        map[string]domain.Task{},
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAppointment(a domain.Appointment) domain.Appointment {
	a.CaseID = clonePtr(a.CaseID)
	a.CancellationReason = clonePtr(a.CancellationReason)
	return a
}

func cloneMediation(m domain.Mediation) domain.Mediation {
	m.ScheduledDate = clonePtr(m.ScheduledDate)
	m.Location = clonePtr(m.Location)
	m.Notes = clonePtr(m.Notes)
	m.SessionNotes = clonePtr(m.SessionNotes)
	return m
}

func cloneTask(t domain.Task) domain.Task {
	t.MilestoneID = clonePtr(t.MilestoneID)
	t.CompletedDate = clonePtr(t.CompletedDate)
	t.EstimatedHours = clonePtr(t.EstimatedHours)
	t.ActualHours = clonePtr(t.ActualHours)
	return t
}

func limit[T any](in []T, n int) []T {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}

// --- appointments ---

func (s *Store) GetAppointment(_ context.Context, id string) (domain.Appointment, error) {
	s.apptMu.RLock()
	defer s.apptMu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, repo.ErrNotFound
	}
	return cloneAppointment(a), nil
}

// slotHeldLocked reports whether another SCHEDULED appointment holds a's slot.
// Caller holds apptMu.
func (s *Store) slotHeldLocked(a domain.Appointment) bool {
	if a.Status != domain.AppointmentScheduled {
		return false
	}
	for id, other := range s.appointments {
		if id == a.ID {
			continue
		}
		if other.Status == domain.AppointmentScheduled && other.LawyerID == a.LawyerID && other.ScheduledAt.Equal(a.ScheduledAt) {
			return true
		}
	}
	return false
}

func (s *Store) InsertAppointment(_ context.Context, a domain.Appointment) error {
	s.apptMu.Lock()
	defer s.apptMu.Unlock()
	if _, exists := s.appointments[a.ID]; exists {
		return repo.ErrStale
	}
	if s.slotHeldLocked(a) {
		return repo.ErrSlotTaken
	}
	s.appointments[a.ID] = cloneAppointment(a)
	return nil
}

func (s *Store) UpdateAppointment(_ context.Context, a domain.Appointment, expected domain.AppointmentStatus) error {
	s.apptMu.Lock()
	defer s.apptMu.Unlock()
	cur, ok := s.appointments[a.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Status != expected {
		return repo.ErrStale
	}
	if s.slotHeldLocked(a) {
		return repo.ErrSlotTaken
	}
	s.appointments[a.ID] = cloneAppointment(a)
	return nil
}

func (s *Store) DeleteAppointment(_ context.Context, id string) error {
	s.apptMu.Lock()
	defer s.apptMu.Unlock()
	if _, ok := s.appointments[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.appointments, id)
	return nil
}

func (s *Store) ListAppointments(_ context.Context, f repo.AppointmentFilter) ([]domain.Appointment, error) {
	s.apptMu.RLock()
	var out []domain.Appointment
	for _, a := range s.appointments {
		if f.Match(a) {
			out = append(out, cloneAppointment(a))
		}
	}
	s.apptMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			if f.Desc {
				return out[i].ScheduledAt.After(out[j].ScheduledAt)
			}
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		if f.Desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return limit(out, f.Limit), nil
}

// --- mediations ---

func (s *Store) GetMediation(_ context.Context, id string) (domain.Mediation, error) {
	s.medMu.RLock()
	defer s.medMu.RUnlock()
	m, ok := s.mediations[id]
	if !ok {
		return domain.Mediation{}, repo.ErrNotFound
	}
	return cloneMediation(m), nil
}

func (s *Store) InsertMediation(_ context.Context, m domain.Mediation) error {
	s.medMu.Lock()
	defer s.medMu.Unlock()
	if _, exists := s.mediations[m.ID]; exists {
		return repo.ErrStale
	}
	s.mediations[m.ID] = cloneMediation(m)
	return nil
}

func (s *Store) UpdateMediation(_ context.Context, m domain.Mediation, expected domain.MediationStatus) error {
	s.medMu.Lock()
	defer s.medMu.Unlock()
	cur, ok := s.mediations[m.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Status != expected {
		return repo.ErrStale
	}
	s.mediations[m.ID] = cloneMediation(m)
	return nil
}

func (s *Store) DeleteMediation(_ context.Context, id string) error {
	s.medMu.Lock()
	defer s.medMu.Unlock()
	if _, ok := s.mediations[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.mediations, id)
	return nil
}

func (s *Store) ListMediations(_ context.Context, f repo.MediationFilter) ([]domain.Mediation, error) {
	s.medMu.RLock()
	var out []domain.Mediation
	for _, m := range s.mediations {
		if f.Match(m) {
			out = append(out, cloneMediation(m))
		}
	}
	s.medMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return limit(out, f.Limit), nil
}

// --- tasks ---

func (s *Store) GetTask(_ context.Context, id string) (domain.Task, error) {
	s.taskMu.RLock()
	defer s.taskMu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, repo.ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *Store) InsertTask(_ context.Context, t domain.Task) error {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return repo.ErrStale
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *Store) UpdateTask(_ context.Context, t domain.Task, expected domain.TaskStatus) error {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	cur, ok := s.tasks[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Status != expected {
		return repo.ErrStale
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) ListTasks(_ context.Context, f repo.TaskFilter) ([]domain.Task, error) {
	s.taskMu.RLock()
	var out []domain.Task
	for _, t := range s.tasks {
		if f.Match(t) {
			out = append(out, cloneTask(t))
		}
	}
	s.taskMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return limit(out, f.Limit), nil
}
