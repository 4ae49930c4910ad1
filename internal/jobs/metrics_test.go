package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	_ "github.com/paycycle/paycycle/testing"
)

func TestNewMetricsRegistersOnProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	require.NoError(t, m.Track("closure_notify").End(nil))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "paycycle_jobs_total")
	require.Contains(t, names, "paycycle_job_duration_seconds")
}

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("reconcile").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("reconcile").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reconcile", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reconcile", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("reconcile")))
}

func TestAddDuplicatesIgnoresNonPositive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AddDuplicates("emp-1", 3)
	m.AddDuplicates("emp-1", 0)
	m.AddDuplicates("emp-1", -2)

	require.Equal(t, 3.0, testutil.ToFloat64(m.duplicates.WithLabelValues("emp-1")))
}
