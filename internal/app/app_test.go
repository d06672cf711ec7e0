package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/clock"
	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/engine"
	"docketline/internal/events"
	"docketline/internal/repo"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newApp(t *testing.T, driver string) (*App, *clock.Manual) {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = driver
	cfg.Store.Workspace = t.TempDir()
	clk := clock.NewManual(t0)
	a, err := New(context.Background(), cfg, Options{Clock: clk})
	require.NoError(t, err)
	return a, clk
}

func TestReminderFiresThroughOutbox(t *testing.T) {
	for _, driver := range []string{"sqlite", "memory"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			a, clk := newApp(t, driver)

			m, err := a.Engine.InitiateMediation(ctx, engine.MediationCreateOptions{
				CaseID:      "case-1",
				InitiatorID: "lawyer-1",
				MediatorID:  "mediator-1",
				Reason:      "property split",
			})
			require.NoError(t, err)
			_, reminderID, err := a.Engine.ScheduleSession(ctx, m.ID, t0.Add(48*time.Hour), "Room 2", domain.Actor{ID: "mediator-1", Role: domain.RoleMediator})
			require.NoError(t, err)
			require.NotEmpty(t, reminderID)

			clk.Advance(24 * time.Hour)
			assert.Equal(t, 1, a.Scheduler.Tick(ctx, clk.Now()))
			assert.Empty(t, a.Scheduler.Pending())

			// Closing drains the outbox so every event is readable afterwards.
			require.NoError(t, a.Outbox.Close(ctx))
			got, err := a.lister.ListEvents(ctx, repo.EventFilter{EntityID: m.ID})
			require.NoError(t, err)
			var types []string
			for _, evt := range got {
				types = append(types, evt.Type)
			}
			assert.Equal(t, []string{events.MediationReminder, events.MediationScheduled, events.MediationInitiated}, types)
			require.NoError(t, a.Close(ctx))
		})
	}
}

func TestHandlerServesHealthAndMetrics(t *testing.T) {
	a, _ := newApp(t, "memory")
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	h, err := a.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/v1/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRunStopsOnCancel(t *testing.T) {
	a, _ := newApp(t, "memory")
	a.Config.Server.Addr = "127.0.0.1:0"
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "postgres"
	_, err := New(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestResolveConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ResolveConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Store.Workspace)
	assert.Equal(t, "sqlite", cfg.Store.Driver)

	yml := "store:\n  driver: memory\nreminders:\n  lead: 2h\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(yml), 0o644))
	cfg, err = ResolveConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Reminders.Lead)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"
	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
