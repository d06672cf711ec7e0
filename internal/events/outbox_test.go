package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docketline/internal/domain"
	"docketline/internal/events"
	"docketline/internal/metrics"
)

var ts = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Deliver(context.Context, domain.Event) error {
	return errors.New("downstream unavailable")
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }
func (panickingSink) Deliver(context.Context, domain.Event) error { panic("boom") }

// blockingSink holds every delivery until release is closed.
type blockingSink struct {
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (*blockingSink) Name() string { return "blocking" }
func (b *blockingSink) Deliver(ctx context.Context, _ domain.Event) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}

func TestOutboxDeliversDespiteFailingSinks(t *testing.T) {
	m := metrics.New()
	mem := events.NewMemory(0)
	ob := events.NewOutbox(events.OutboxOptions{Metrics: m}, failingSink{}, panickingSink{}, mem)
	ob.Start()

	ob.Emit(context.Background(), events.New(ts, events.AppointmentScheduled, "appointment", "a1", "L1", nil))
	ob.Emit(context.Background(), events.New(ts, events.AppointmentConfirmed, "appointment", "a1", "C1", events.Payload{"from": "SCHEDULED"}))
	require.NoError(t, ob.Close(context.Background()))

	assert.Equal(t, []string{events.AppointmentScheduled, events.AppointmentConfirmed}, mem.Types())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkFailures.WithLabelValues("failing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkFailures.WithLabelValues("panicking")))
}

func TestOutboxDropsWhenFullOrClosed(t *testing.T) {
	m := metrics.New()
	block := &blockingSink{release: make(chan struct{}), started: make(chan struct{})}
	ob := events.NewOutbox(events.OutboxOptions{Size: 1, Metrics: m}, block)
	ob.Start()

	ob.Emit(context.Background(), events.New(ts, "a", "x", "1", "", nil))
	<-block.started
	ob.Emit(context.Background(), events.New(ts, "b", "x", "2", "", nil)) // buffered
	ob.Emit(context.Background(), events.New(ts, "c", "x", "3", "", nil)) // dropped
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxDropped))

	close(block.release)
	require.NoError(t, ob.Close(context.Background()))
	ob.Emit(context.Background(), events.New(ts, "d", "x", "4", "", nil))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxDropped))
}

func TestOutboxCloseHonoursContext(t *testing.T) {
	block := &blockingSink{release: make(chan struct{}), started: make(chan struct{})}
	ob := events.NewOutbox(events.OutboxOptions{}, block)
	ob.Start()
	ob.Emit(context.Background(), events.New(ts, "a", "x", "1", "", nil))
	<-block.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ob.Close(ctx), context.DeadlineExceeded)
	close(block.release)
	require.NoError(t, ob.Close(context.Background()))
}

func TestMemoryRingKeepsNewest(t *testing.T) {
	mem := events.NewMemory(2)
	for _, typ := range []string{"one", "two", "three"} {
		mem.Emit(context.Background(), events.New(ts, typ, "x", "", "", nil))
	}
	got := mem.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Type)
	assert.Equal(t, int64(3), got[1].ID)
}
