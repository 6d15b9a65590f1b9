package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/cargoplan/core/metrics"
)

func TestPromSink_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordRun(coremetrics.RunReport{
		Trigger: "recompute", Status: "optimal", Accepted: true,
		Objective: 60, Nodes: 5, Duration: 20 * time.Millisecond,
		TotalDelay: 60, SLAMisses: 1, AircraftUsed: 1, AircraftAvailable: 2,
		CrewUsed: 2, CrewAvailable: 2, OvertimeMinutes: 15,
	}))
	require.NoError(t, sink.RecordRun(coremetrics.RunReport{
		Trigger: "crew_unavailable", Status: "infeasible", Objective: 999,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("recompute", "optimal", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("crew_unavailable", "infeasible", "false")))
	assert.Equal(t, 60.0, testutil.ToFloat64(sink.objective), "rejected runs leave the baseline gauges alone")
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.slaMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.utilization.WithLabelValues("aircraft", "used")))
	assert.Equal(t, 15.0, testutil.ToFloat64(sink.overtime))
}

func TestPromSink_RecordMutation(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordMutation(coremetrics.MutationReport{Entity: "crew", ID: "C1", Applied: true}))
	require.NoError(t, sink.RecordMutation(coremetrics.MutationReport{Entity: "crew", ID: "C9"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.mutations.WithLabelValues("crew", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.mutations.WithLabelValues("crew", "false")))
}

func TestPromSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordMutation(coremetrics.MutationReport{Entity: "aircraft", Applied: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.mutations.WithLabelValues("aircraft", "true")))
}
