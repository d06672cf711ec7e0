package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/clock"
	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/events"
	"docketline/internal/reminder"
	"docketline/internal/repo/memory"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testServer struct {
	URL       string
	Clock     *clock.Manual
	Events    *events.Memory
	Scheduler *reminder.Scheduler
	client    *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := clock.NewManual(t0)
	evts := events.NewMemory(0)
	eng := engine.New(memory.New(), nil)
	eng.Clock = clk
	eng.Events = evts
	sched := reminder.New(eng, reminder.Options{Clock: clk})
	eng.Reminders = sched

	handler, err := New(Config{
		Engine:    eng,
		Events:    evts,
		Reminders: sched,
		BasePath:  "/v1",
		Auth: AuthConfig{
			JWTSecret:        "test-secret",
			AllowHeaderActor: true,
			DevLogin:         true,
		},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{URL: srv.URL, Clock: clk, Events: evts, Scheduler: sched, client: srv.Client()}
}

func as(id string, role domain.Role) map[string]string {
	return map[string]string{"X-Actor-Id": id, "X-Actor-Role": string(role)}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func (s *testServer) book(t *testing.T, lawyerID, clientID string, at time.Time) domain.Appointment {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/v1/appointments", map[string]any{
		"lawyer_id":    lawyerID,
		"client_id":    clientID,
		"scheduled_at": at,
	}, as(clientID, domain.RoleClient))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	return decode[domain.Appointment](t, data)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, _ := srv.do(t, http.MethodGet, "/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data := srv.do(t, http.MethodGet, "/v1/appointments", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorEnvelope](t, data).Error.Code)

	res, _ = srv.do(t, http.MethodGet, "/v1/appointments", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestDevLoginTokenAuthenticates(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodPost, "/v1/auth/dev/login", map[string]any{"actor_id": "admin-1", "role": "ADMIN"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	token := decode[DevLoginResponse](t, data).Token
	require.NotEmpty(t, token)

	res, data = srv.do(t, http.MethodGet, "/v1/reminders", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, res.StatusCode, string(data))
}

func TestAppointmentConflictReturns409(t *testing.T) {
	srv := newTestServer(t)
	at := t0.Add(24 * time.Hour)
	srv.book(t, "lawyer-1", "client-1", at)

	res, data := srv.do(t, http.MethodPost, "/v1/appointments", map[string]any{
		"lawyer_id":    "lawyer-1",
		"client_id":    "client-2",
		"scheduled_at": at,
	}, as("client-2", domain.RoleClient))
	require.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "slot_conflict", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/v1/appointments/conflicts?lawyer_id=lawyer-1&scheduled_at="+at.Format(time.RFC3339), nil, as("client-2", domain.RoleClient))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.True(t, decode[ConflictResponse](t, data).Conflict)

	res, data = srv.do(t, http.MethodGet, "/v1/appointments/conflicts?lawyer_id=lawyer-1&scheduled_at="+at.Add(time.Minute).Format(time.RFC3339), nil, as("client-2", domain.RoleClient))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.False(t, decode[ConflictResponse](t, data).Conflict)
}

func TestAppointmentTransitionsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	a := srv.book(t, "lawyer-1", "client-1", t0.Add(time.Hour))
	base := "/v1/appointments/" + a.ID

	res, data := srv.do(t, http.MethodPost, base+"/confirm", nil, as("client-1", domain.RoleClient))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, base+"/cancel", map[string]any{"reason": ""}, as("lawyer-1", domain.RoleLawyer))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, base+"/confirm", nil, as("lawyer-1", domain.RoleLawyer))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, domain.AppointmentConfirmed, decode[domain.Appointment](t, data).Status)

	res, data = srv.do(t, http.MethodPost, base+"/cancel", map[string]any{"reason": "client ill"}, as("client-1", domain.RoleClient))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	// A stranger is refused before the status is considered.
	res, data = srv.do(t, http.MethodPost, base+"/confirm", nil, as("someone", domain.RoleLawyer))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, base+"/confirm", nil, as("lawyer-1", domain.RoleLawyer))
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "invalid_state", decode[errorEnvelope](t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/v1/appointments/missing", nil, as("lawyer-1", domain.RoleLawyer))
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
}

func TestListAppointmentsFilters(t *testing.T) {
	srv := newTestServer(t)
	first := srv.book(t, "lawyer-1", "client-1", t0.Add(time.Hour))
	srv.book(t, "lawyer-1", "client-2", t0.Add(2*time.Hour))
	srv.book(t, "lawyer-2", "client-1", t0.Add(3*time.Hour))

	res, data := srv.do(t, http.MethodGet, "/v1/appointments?lawyer_id=lawyer-1&status=scheduled", nil, as("lawyer-1", domain.RoleLawyer))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	items := decode[[]domain.Appointment](t, data)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)

	res, _ = srv.do(t, http.MethodGet, "/v1/appointments?from=yesterday", nil, as("lawyer-1", domain.RoleLawyer))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestMediationScheduleArmsReminder(t *testing.T) {
	srv := newTestServer(t)
	lawyerHdr := as("lawyer-1", domain.RoleLawyer)

	res, data := srv.do(t, http.MethodPost, "/v1/mediations", map[string]any{
		"case_id":     "case-1",
		"mediator_id": "mediator-1",
		"reason":      "custody dispute",
	}, lawyerHdr)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	m := decode[domain.Mediation](t, data)
	assert.Equal(t, "lawyer-1", m.InitiatorID)

	session := t0.Add(72 * time.Hour)
	res, data = srv.do(t, http.MethodPost, "/v1/mediations/"+m.ID+"/schedule", map[string]any{
		"scheduled_date": session,
		"location":       "Room 4",
	}, as("mediator-1", domain.RoleMediator))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	scheduled := decode[ScheduleSessionResponse](t, data)
	assert.Equal(t, domain.MediationScheduled, scheduled.Mediation.Status)
	require.NotEmpty(t, scheduled.ReminderID)

	res, data = srv.do(t, http.MethodGet, "/v1/reminders?owner_id="+m.ID, nil, lawyerHdr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	pending := decode[[]domain.Reminder](t, data)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].DueAt.Equal(session.Add(-engine.DefaultReminderLead)))

	res, _ = srv.do(t, http.MethodDelete, "/v1/reminders/"+scheduled.ReminderID, nil, lawyerHdr)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res, _ = srv.do(t, http.MethodDelete, "/v1/reminders/"+scheduled.ReminderID, nil, as("admin", domain.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = srv.do(t, http.MethodDelete, "/v1/reminders/"+scheduled.ReminderID, nil, as("admin", domain.RoleAdmin))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, data = srv.do(t, http.MethodPost, "/v1/mediations/"+m.ID+"/status", map[string]any{"status": "COMPLETED"}, lawyerHdr)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/v1/mediations/"+m.ID+"/status", map[string]any{"status": "COMPLETED"}, as("mediator-1", domain.RoleMediator))
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/v1/mediations/"+m.ID+"/status", map[string]any{"status": "IN_PROGRESS"}, as("mediator-1", domain.RoleMediator))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, domain.MediationInProgress, decode[domain.Mediation](t, data).Status)
}

func TestOverdueTasksOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	lawyerHdr := as("lawyer-1", domain.RoleLawyer)

	res, data := srv.do(t, http.MethodPost, "/v1/tasks", map[string]any{
		"case_id":     "case-1",
		"assigned_to": "para-1",
		"title":       "File motion",
		"due_date":    t0.Add(time.Hour),
	}, lawyerHdr)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	task := decode[TaskResponse](t, data)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.False(t, task.Overdue)

	srv.Clock.Advance(2 * time.Hour)

	res, data = srv.do(t, http.MethodGet, "/v1/tasks/overdue?case_id=case-1", nil, lawyerHdr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	overdue := decode[[]TaskResponse](t, data)
	require.Len(t, overdue, 1)
	assert.True(t, overdue[0].Overdue)

	res, data = srv.do(t, http.MethodPost, "/v1/tasks/"+task.ID+"/status", map[string]any{"status": "IN_PROGRESS"}, as("stranger", domain.RoleClient))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/v1/tasks/"+task.ID+"/status", map[string]any{"status": "COMPLETED"}, as("para-1", domain.RoleClient))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	done := decode[TaskResponse](t, data)
	assert.Equal(t, domain.TaskCompleted, done.Status)
	assert.False(t, done.Overdue)
	require.NotNil(t, done.CompletedDate)

	res, data = srv.do(t, http.MethodGet, "/v1/tasks/overdue", nil, lawyerHdr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Empty(t, decode[[]TaskResponse](t, data))
}

func TestEventsPaging(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		srv.book(t, "lawyer-1", "client-1", t0.Add(time.Duration(i+1)*time.Hour))
	}
	hdr := as("lawyer-1", domain.RoleLawyer)

	res, data := srv.do(t, http.MethodGet, "/v1/events?type=appointment.scheduled&limit=2", nil, hdr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	res, data = srv.do(t, http.MethodGet, "/v1/events?type=appointment.scheduled&limit=2&cursor="+page.NextCursor, nil, hdr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	next := decode[paginatedEvents](t, data)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)

	res, _ = srv.do(t, http.MethodGet, "/v1/events?cursor=abc", nil, hdr)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestOpenAPIAndMetricsArePublic(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/v1/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var spec map[string]any
	require.NoError(t, json.Unmarshal(data, &spec))
	assert.Contains(t, spec, "paths")

	res, _ = srv.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHandleErrorMapsEngineErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{engine.NotFoundError{Entity: "task", ID: "x"}, http.StatusNotFound, "not_found"},
		{engine.ConflictError{LawyerID: "l", At: t0}, http.StatusConflict, "slot_conflict"},
		{engine.ForbiddenError{Entity: "task", ActorID: "a", Action: "update"}, http.StatusForbidden, "forbidden"},
		{engine.InvalidStateError{Entity: "task", From: "COMPLETED", To: "PENDING"}, http.StatusConflict, "invalid_state"},
		{engine.ValidationError{Field: "title", Reason: "is required"}, http.StatusBadRequest, "bad_request"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		got := handleError(tc.err)
		require.NotNil(t, got)
		assert.Equal(t, tc.status, got.GetStatus(), tc.err.Error())
		assert.Equal(t, tc.code, got.(*apiError).Body.Code)
	}
	assert.Nil(t, handleError(nil))
}
