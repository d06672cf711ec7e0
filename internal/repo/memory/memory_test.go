package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/domain"
	"docketline/internal/repo"
	"docketline/internal/repo/memory"
)

var t0 = time.Date(2025, 4, 1, 14, 30, 0, 0, time.UTC)

func TestSlotUniquenessAndCompareAndSet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := domain.Appointment{ID: "a1", LawyerID: "L1", ClientID: "C1", ScheduledAt: t0, Status: domain.AppointmentScheduled}
	require.NoError(t, s.InsertAppointment(ctx, a))

	b := a
	b.ID = "a2"
	require.ErrorIs(t, s.InsertAppointment(ctx, b), repo.ErrSlotTaken)
	require.ErrorIs(t, s.InsertAppointment(ctx, a), repo.ErrStale, "duplicate ids are rejected")

	a.Status = domain.AppointmentCancelled
	require.NoError(t, s.UpdateAppointment(ctx, a, domain.AppointmentScheduled))
	require.ErrorIs(t, s.UpdateAppointment(ctx, a, domain.AppointmentScheduled), repo.ErrStale)
	require.NoError(t, s.InsertAppointment(ctx, b), "cancelled appointments free the slot")
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	loc := "Room A"
	m := domain.Mediation{ID: "m1", CaseID: "c1", Status: domain.MediationPending, Location: &loc, CreatedAt: t0}
	require.NoError(t, s.InsertMediation(ctx, m))
	loc = "changed after insert"

	got, err := s.GetMediation(ctx, "m1")
	require.NoError(t, err)
	*got.Location = "changed after get"

	again, err := s.GetMediation(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Room A", *again.Location)
}

func TestListOrderingAndLimits(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for i, id := range []string{"t3", "t1", "t2"} {
		require.NoError(t, s.InsertTask(ctx, domain.Task{
			ID: id, CaseID: "c1", AssignedTo: "P1", Status: domain.TaskPending,
			DueDate: t0.Add(time.Duration(i) * time.Hour),
		}))
	}
	tasks, err := s.ListTasks(ctx, repo.TaskFilter{CaseID: "c1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t3", tasks[0].ID)
	assert.Equal(t, "t1", tasks[1].ID)

	cut := t0.Add(90 * time.Minute)
	due, err := s.ListTasks(ctx, repo.TaskFilter{DueBefore: &cut})
	require.NoError(t, err)
	assert.Len(t, due, 2)

	require.NoError(t, s.DeleteTask(ctx, "t3"))
	require.ErrorIs(t, s.DeleteTask(ctx, "t3"), repo.ErrNotFound)
	_, err = s.GetTask(ctx, "t3")
	require.ErrorIs(t, err, repo.ErrNotFound)
}
