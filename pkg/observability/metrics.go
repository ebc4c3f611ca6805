package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/rewind/pkg/domain"
)

// Metrics holds the collectors of every debugging session in a process.
type Metrics struct {
	syncPoints     *prometheus.CounterVec
	events         *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	assertions     *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncPoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_sync_points_total",
				Help: "Total number of sync points reached",
			},
			[]string{"program"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_events_selected_total",
				Help: "Total number of events selected and triggered",
			},
			[]string{"program", "event"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_rollbacks_total",
				Help: "Total number of rollbacks to a recorded sync point",
			},
			[]string{"program"},
		),
		assertions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_assertion_failures_total",
				Help: "Total number of sessions ended by a failed assertion",
			},
			[]string{"program"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_notifications_total",
				Help: "Total number of notifications published to clients",
			},
			[]string{"type"},
		),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewind_active_sessions",
			Help: "Number of debugging sessions currently open",
		}),
	}
	reg.MustRegister(m.syncPoints, m.events, m.rollbacks, m.assertions, m.notifications, m.ActiveSessions)
	return m
}

// Hooks returns lifecycle hooks that record program progress.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSyncPoint: func(_ context.Context, e *domain.ProgramEvent) {
			m.syncPoints.WithLabelValues(e.Program).Inc()
		},
		OnEventSelected: func(_ context.Context, e *domain.ProgramEvent) {
			if e.Event == nil {
				return
			}
			m.events.WithLabelValues(e.Program, e.Event.Name).Inc()
		},
		OnRollback: func(_ context.Context, e *domain.ProgramEvent) {
			m.rollbacks.WithLabelValues(e.Program).Inc()
		},
		OnAssertionFailed: func(_ context.Context, e *domain.ProgramEvent) {
			m.assertions.WithLabelValues(e.Program).Inc()
		},
	}
}

// Update counts a published notification. It makes Metrics a bus subscriber.
func (m *Metrics) Update(n domain.Notification) {
	m.notifications.WithLabelValues(string(n.Type)).Inc()
}
