package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/db"
	"docketline/internal/domain"
	"docketline/internal/migrate"
	"docketline/internal/repo"
)

var t0 = time.Date(2025, 4, 1, 14, 30, 0, 123456789, time.UTC)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	version, err := migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, 1, version)
	version, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, 1, version, "re-running is a no-op")
	return repo.Repo{DB: conn}
}

func appointment(id, lawyer string, at time.Time) domain.Appointment {
	return domain.Appointment{
		ID:              id,
		LawyerID:        lawyer,
		ClientID:        "C1",
		Type:            domain.AppointmentConsultation,
		ScheduledAt:     at,
		DurationMinutes: 60,
		Status:          domain.AppointmentScheduled,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
}

func TestScheduledSlotIsUnique(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	require.NoError(t, r.InsertAppointment(ctx, appointment("a1", "L1", t0)))
	require.ErrorIs(t, r.InsertAppointment(ctx, appointment("a2", "L1", t0)), repo.ErrSlotTaken)

	confirmed := appointment("a3", "L1", t0)
	confirmed.Status = domain.AppointmentConfirmed
	require.NoError(t, r.InsertAppointment(ctx, confirmed), "only SCHEDULED rows hold the slot")

	// Returning a confirmed row to SCHEDULED on a held slot is refused too.
	confirmed.Status = domain.AppointmentScheduled
	require.ErrorIs(t, r.UpdateAppointment(ctx, confirmed, domain.AppointmentConfirmed), repo.ErrSlotTaken)

	got, err := r.GetAppointment(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.ScheduledAt.Equal(t0), "timestamps keep nanoseconds")
	assert.Nil(t, got.CaseID)
}

func TestUpdateIsCompareAndSet(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	a := appointment("a1", "L1", t0)
	require.NoError(t, r.InsertAppointment(ctx, a))

	a.Status = domain.AppointmentConfirmed
	require.NoError(t, r.UpdateAppointment(ctx, a, domain.AppointmentScheduled))
	require.ErrorIs(t, r.UpdateAppointment(ctx, a, domain.AppointmentScheduled), repo.ErrStale)

	missing := appointment("nope", "L1", t0)
	require.ErrorIs(t, r.UpdateAppointment(ctx, missing, domain.AppointmentScheduled), repo.ErrNotFound)
	require.ErrorIs(t, r.DeleteAppointment(ctx, "nope"), repo.ErrNotFound)
	_, err := r.GetAppointment(ctx, "nope")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestListAppointmentsFilters(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for i, id := range []string{"a1", "a2", "a3"} {
		a := appointment(id, "L1", t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, r.InsertAppointment(ctx, a))
	}
	require.NoError(t, r.InsertAppointment(ctx, appointment("b1", "L2", t0)))

	all, err := r.ListAppointments(ctx, repo.AppointmentFilter{LawyerID: "L1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].ID)

	desc, err := r.ListAppointments(ctx, repo.AppointmentFilter{LawyerID: "L1", Desc: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, "a3", desc[0].ID)

	from, to := t0.Add(30*time.Minute), t0.Add(2*time.Hour)
	window, err := r.ListAppointments(ctx, repo.AppointmentFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "a2", window[0].ID)

	at := t0
	slot, err := r.ListAppointments(ctx, repo.AppointmentFilter{At: &at, Status: []domain.AppointmentStatus{domain.AppointmentScheduled}})
	require.NoError(t, err)
	assert.Len(t, slot, 2)
	for _, a := range slot {
		f := repo.AppointmentFilter{At: &at, Status: []domain.AppointmentStatus{domain.AppointmentScheduled}}
		assert.True(t, f.Match(a))
	}
}

func TestMediationRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	m := domain.Mediation{
		ID: "m1", CaseID: "case-1", InitiatorID: "U1", MediatorID: "M1", Reason: "fence",
		Status: domain.MediationPending, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, r.InsertMediation(ctx, m))

	at := t0.Add(72 * time.Hour)
	room := "Room A"
	m.Status = domain.MediationScheduled
	m.ScheduledDate = &at
	m.Location = &room
	require.NoError(t, r.UpdateMediation(ctx, m, domain.MediationPending))
	require.ErrorIs(t, r.UpdateMediation(ctx, m, domain.MediationPending), repo.ErrStale)

	got, err := r.GetMediation(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MediationScheduled, got.Status)
	require.NotNil(t, got.ScheduledDate)
	assert.True(t, got.ScheduledDate.Equal(at))
	assert.Equal(t, "Room A", *got.Location)
	assert.Nil(t, got.SessionNotes)

	list, err := r.ListMediations(ctx, repo.MediationFilter{CaseID: "case-1", Status: []domain.MediationStatus{domain.MediationScheduled}})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, r.DeleteMediation(ctx, "m1"))
	_, err = r.GetMediation(ctx, "m1")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTasksOverdueQueryAndCounts(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	mk := func(id string, status domain.TaskStatus, due time.Time) domain.Task {
		task := domain.Task{
			ID: id, CaseID: "case-1", AssignedTo: "P1", Title: id, Status: status,
			Priority: domain.PriorityMedium, DueDate: due, CreatedAt: t0, UpdatedAt: t0,
		}
		if status == domain.TaskCompleted {
			done := t0
			task.CompletedDate = &done
		}
		return task
	}
	require.NoError(t, r.InsertTask(ctx, mk("late", domain.TaskPending, t0.Add(-time.Hour))))
	require.NoError(t, r.InsertTask(ctx, mk("later", domain.TaskInProgress, t0.Add(-time.Minute))))
	require.NoError(t, r.InsertTask(ctx, mk("done", domain.TaskCompleted, t0.Add(-2*time.Hour))))
	require.NoError(t, r.InsertTask(ctx, mk("future", domain.TaskPending, t0.Add(time.Hour))))

	now := t0
	overdue, err := r.ListTasks(ctx, repo.TaskFilter{
		Status:    []domain.TaskStatus{domain.TaskPending, domain.TaskInProgress},
		DueBefore: &now,
	})
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, "late", overdue[0].ID)
	assert.Equal(t, "later", overdue[1].ID)
	for _, task := range overdue {
		assert.True(t, task.IsOverdue(now))
	}

	counts, err := r.CountTasksByStatus(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"PENDING": 2, "IN_PROGRESS": 1, "COMPLETED": 1}, counts)

	hours := 3
	task := mk("late", domain.TaskCompleted, t0.Add(-time.Hour))
	task.ActualHours = &hours
	require.NoError(t, r.UpdateTask(ctx, task, domain.TaskPending))
	got, err := r.GetTask(ctx, "late")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedDate)
	require.NotNil(t, got.ActualHours)
	assert.Equal(t, 3, *got.ActualHours)
}
