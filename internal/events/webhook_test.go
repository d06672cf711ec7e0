package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/events"
)

func TestWebhookSinkPostsMatchingEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
		secrets  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, body)
		secrets = append(secrets, r.Header.Get("X-Docketline-Secret"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := events.NewWebhookSink(srv.URL, "s3cret", []string{"appointment.*", events.MediationReminder}, 0)
	ctx := context.Background()
	require.NoError(t, sink.Deliver(ctx, events.New(ts, events.AppointmentCancelled, "appointment", "a1", "L1", events.Payload{"reason": "ill"})))
	require.NoError(t, sink.Deliver(ctx, events.New(ts, events.TaskCreated, "task", "t1", "L1", nil)))
	require.NoError(t, sink.Deliver(ctx, events.New(ts, events.MediationReminder, "mediation", "m1", "", nil)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "appointment.cancelled", received[0]["type"])
	assert.Equal(t, "a1", received[0]["entity_id"])
	assert.Equal(t, map[string]any{"reason": "ill"}, received[0]["payload"])
	assert.Equal(t, "mediation.reminder", received[1]["type"])
	assert.Equal(t, []string{"s3cret", "s3cret"}, secrets)
}

func TestWebhookSinkReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := events.NewWebhookSink(srv.URL, "", nil, 0)
	err := sink.Deliver(context.Background(), events.New(ts, events.TaskDeleted, "task", "t1", "", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
