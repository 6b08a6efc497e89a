package config_test

import (
	"testing"
	"time"

	"github.com/galanafai/godview/config"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestPresetsValidate(t *testing.T) {
	require.NoError(t, config.Urban().Validate())
	require.NoError(t, config.Highway().Validate())
	require.NoError(t, config.Local().Validate())
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	require := require.New(t)

	bad := config.Config{
		TickDT:                0,
		LagDepth:              0,
		StateDim:              7,
		H3Resolution:          -1,
		CellEdge:              0,
		GateChi2:              0,
		MaxAgeTicks:           0,
		MaxSkew:               -1,
		ProcessNoiseQ:         nil,
		MeasurementNoiseRBase: 0,
	}

	err := bad.Validate()
	require.Error(err)
	msg := err.Error()
	require.Contains(msg, "tick_dt_ms")
	require.Contains(msg, "lag_depth_L")
	require.Contains(msg, "state_dim_D")
}

func TestBuilderRejectsMismatchedStateDim(t *testing.T) {
	require := require.New(t)

	_, err := config.NewBuilder().WithStateDim(7).Build()
	require.Error(err)
}

func TestBuilderWithStateDimResizesProcessNoise(t *testing.T) {
	require := require.New(t)

	c, err := config.NewBuilder().WithStateDim(6).Build()
	require.NoError(err)
	require.Len(c.ProcessNoiseQ, 6)
}

func TestMaxLagDerivesFromLagDepthAndTickDT(t *testing.T) {
	c := config.Default()
	require.Equal(t, c.TickDT*time.Duration(c.LagDepth), c.MaxLag())
}
