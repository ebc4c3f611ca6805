package observability_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hot := domain.NewEvent("hot")
	hooks.OnSyncPoint(ctx, &domain.ProgramEvent{Program: "hot-cold"})
	hooks.OnSyncPoint(ctx, &domain.ProgramEvent{Program: "hot-cold"})
	hooks.OnEventSelected(ctx, &domain.ProgramEvent{Program: "hot-cold", Event: &hot})
	hooks.OnEventSelected(ctx, &domain.ProgramEvent{Program: "hot-cold"})
	hooks.OnRollback(ctx, &domain.ProgramEvent{Program: "hot-cold"})
	hooks.OnAssertionFailed(ctx, &domain.ProgramEvent{Program: "guarded"})

	expected := `
# HELP rewind_events_selected_total Total number of events selected and triggered
# TYPE rewind_events_selected_total counter
rewind_events_selected_total{event="hot",program="hot-cold"} 1
# HELP rewind_sync_points_total Total number of sync points reached
# TYPE rewind_sync_points_total counter
rewind_sync_points_total{program="hot-cold"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"rewind_events_selected_total", "rewind_sync_points_total"))
	assert.Equal(t, 4, testutil.CollectAndCount(reg,
		"rewind_events_selected_total", "rewind_sync_points_total", "rewind_rollbacks_total", "rewind_assertion_failures_total"))
}

func TestMetrics_Notifications(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	m.Update(domain.NewStatusNotification("d", domain.StatusDebug))
	m.Update(domain.NewStatusNotification("d", domain.StatusStop))
	m.Update(domain.NewConsoleNotification("d", "hi", domain.LogInfo))

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "rewind_notifications_total"))

	m.ActiveSessions.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))
}
