package metrics_test

import (
	"testing"

	"github.com/galanafai/godview/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestAveragerReadsZeroBeforeAnyObservation(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	avg, err := metrics.NewAverager("test_avg", "test values", reg)
	require.NoError(err)
	require.Equal(0.0, avg.Read())

	avg.Observe(4)
	avg.Observe(6)
	require.Equal(5.0, avg.Read())
}

func TestNewRegistryRegistersAllSinks(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	sinks, err := metrics.NewRegistry(reg)
	require.NoError(err)
	require.NotNil(sinks.NIS)
	require.NotNil(sinks.GhostScore)
	require.NotNil(sinks.TrackCount)
	require.NotNil(sinks.PacketsDropped)
}
