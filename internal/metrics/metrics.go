package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the scheduling core. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Status changes by entity kind and target status
	Transitions *prometheus.CounterVec

	// Rejected operations by entity kind and error kind
	Rejections *prometheus.CounterVec

	// Appointment creations refused because the slot was held
	SlotConflicts prometheus.Counter

	RemindersArmed   prometheus.Counter
	RemindersFired   prometheus.Counter
	RemindersDropped prometheus.Counter
	ReminderFailures prometheus.Counter
	RemindersPending prometheus.Gauge

	// Events discarded because the outbox buffer was full
	OutboxDropped prometheus.Counter

	// Delivery failures by sink name
	SinkFailures *prometheus.CounterVec
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docketline_transitions_total",
			Help: "Status transitions applied by entity kind and target status",
		}, []string{"entity", "to"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docketline_rejections_total",
			Help: "Operations rejected by entity kind and error kind",
		}, []string{"entity", "kind"}),
		SlotConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "docketline_slot_conflicts_total",
			Help: "Appointment creations refused because the lawyer's slot was already scheduled",
		}),
		RemindersArmed: f.NewCounter(prometheus.CounterOpts{
			Name: "docketline_reminders_armed_total",
			Help: "Reminders armed",
		}),
		RemindersFired: f.NewCounter(prometheus.CounterOpts{
			Name: "docketline_reminders_fired_total",
			Help: "Reminders fired successfully",
		}),
		RemindersDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "docketline_reminders_dropped_total",
			Help: "Reminders dropped because their owner no longer exists",
		}),
		ReminderFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docketline_reminder_failures_total",
			Help: "Reminders whose fire side effect failed",
		}),
		RemindersPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "docketline_reminders_pending",
			Help: "Reminders currently armed",
		}),
		OutboxDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "docketline_outbox_dropped_total",
			Help: "Events dropped because the outbox buffer was full",
		}),
		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docketline_sink_failures_total",
			Help: "Event deliveries that failed by sink",
		}, []string{"sink"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncTransition(entity, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(entity, to).Inc()
	}
}

func (m *Metrics) IncRejection(entity, kind string) {
	if m != nil {
		m.Rejections.WithLabelValues(entity, kind).Inc()
	}
}

func (m *Metrics) IncSlotConflict() {
	if m != nil {
		m.SlotConflicts.Inc()
	}
}

func (m *Metrics) IncReminderArmed() {
	if m != nil {
		m.RemindersArmed.Inc()
	}
}

func (m *Metrics) IncReminderFired() {
	if m != nil {
		m.RemindersFired.Inc()
	}
}

func (m *Metrics) IncReminderDropped() {
	if m != nil {
		m.RemindersDropped.Inc()
	}
}

func (m *Metrics) IncReminderFailure() {
	if m != nil {
		m.ReminderFailures.Inc()
	}
}

func (m *Metrics) SetRemindersPending(n int) {
	if m != nil {
		m.RemindersPending.Set(float64(n))
	}
}

func (m *Metrics) IncOutboxDropped() {
	if m != nil {
		m.OutboxDropped.Inc()
	}
}

func (m *Metrics) IncSinkFailure(sink string) {
	if m != nil {
		m.SinkFailures.WithLabelValues(sink).Inc()
	}
}
