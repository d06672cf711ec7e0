package engine

import (
	"context"

	"docketline/internal/domain"
	"docketline/internal/repo"
)

// AppointmentStore is what the engine needs from durable appointment storage.
// InsertAppointment must reject a second SCHEDULED holder of a lawyer's slot
// with repo.ErrSlotTaken atomically. Update methods are compare-and-set on
// the expected status and return repo.ErrStale when it moved on.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id string) (domain.Appointment, error)
	ListAppointments(ctx context.Context, f repo.AppointmentFilter) ([]domain.Appointment, error)
	InsertAppointment(ctx context.Context, a domain.Appointment) error
	UpdateAppointment(ctx context.Context, a domain.Appointment, expected domain.AppointmentStatus) error
	DeleteAppointment(ctx context.Context, id string) error
}

type MediationStore interface {
	GetMediation(ctx context.Context, id string) (domain.Mediation, error)
	ListMediations(ctx context.Context, f repo.MediationFilter) ([]domain.Mediation, error)
	InsertMediation(ctx context.Context, m domain.Mediation) error
	UpdateMediation(ctx context.Context, m domain.Mediation, expected domain.MediationStatus) error
	DeleteMediation(ctx context.Context, id string) error
}

type TaskStore interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context, f repo.TaskFilter) ([]domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task, expected domain.TaskStatus) error
	DeleteTask(ctx context.Context, id string) error
}

// Store is satisfied by repo.Repo and memory.Store.
type Store interface {
	AppointmentStore
	MediationStore
	TaskStore
}

var (
	_ Store = repo.Repo{}
)
