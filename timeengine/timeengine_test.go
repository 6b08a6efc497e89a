package timeengine_test

import (
	"testing"

	"github.com/galanafai/godview/timeengine"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func flatQ(d int, v float64) []float64 {
	q := make([]float64, d)
	for i := range q {
		q[i] = v
	}
	return q
}

func identityP(d int, v float64) *mat.Dense {
	P := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		P.Set(i, i, v)
	}
	return P
}

func TestPredictAdvancesPositionByVelocityTimesDT(t *testing.T) {
	require := require.New(t)

	D := 6
	x0 := mat.NewVecDense(D, []float64{0, 0, 0, 1, 2, 0})
	P0 := identityP(D, 1.0)
	est := timeengine.NewEstimator(D, 3, x0, P0, flatQ(D, 0.01))

	est.Predict(1.0)
	s := est.State()
	require.InDelta(1.0, s[0], 1e-9)
	require.InDelta(2.0, s[1], 1e-9)
	require.InDelta(0.0, s[2], 1e-9)
}

func TestUpdateReducesNISForConsistentMeasurement(t *testing.T) {
	require := require.New(t)

	D := 6
	x0 := mat.NewVecDense(D, []float64{0, 0, 0, 0, 0, 0})
	P0 := identityP(D, 4.0)
	est := timeengine.NewEstimator(D, 3, x0, P0, flatQ(D, 0.01))

	err := est.Update([]float64{0, 0, 0, 0, 0, 0}, 1.0, 1.0)
	require.NoError(err)
	require.Less(est.LastNIS(), 1.0)
}

// TestOOSMDelayedMeasurementMatchesInSequenceRun mirrors spec §8's OOSM
// correctness property: one run absorbs ten in-sequence 30Hz
// measurements; a second run withholds the 7th and applies it late via
// UpdateOOSM at its true lag. The current-block position of both runs
// must agree to within 1e-6m.
func TestOOSMDelayedMeasurementMatchesInSequenceRun(t *testing.T) {
	require := require.New(t)

	D := 6
	L := 10
	dt := 1.0 / 30.0

	measurementAt := func(tick int) []float64 {
		x := float64(tick) * dt * 2.0
		return []float64{x, 0, 0, 2.0, 0, 0}
	}

	newRun := func() *timeengine.Estimator {
		x0 := mat.NewVecDense(D, []float64{0, 0, 0, 2, 0, 0})
		P0 := identityP(D, 1.0)
		return timeengine.NewEstimator(D, L, x0, P0, flatQ(D, 0.001))
	}

	baseline := newRun()
	for tick := 1; tick <= 10; tick++ {
		baseline.Predict(dt)
		require.NoError(baseline.Update(measurementAt(tick), 1.0, 0.1))
	}
	baselineState := baseline.State()

	replay := newRun()
	for tick := 1; tick <= 10; tick++ {
		replay.Predict(dt)
		if tick == 7 {
			continue
		}
		require.NoError(replay.Update(measurementAt(tick), 1.0, 0.1))
	}
	// Apply the withheld tick 7 late, at lag = 10-7 = 3 ticks behind
	// current time.
	require.NoError(replay.UpdateOOSM(3, measurementAt(7), 1.0, 0.1))
	replayState := replay.State()

	require.InDelta(baselineState[0], replayState[0], 1e-6)
}

func TestUpdateOOSMRejectsLagBeyondHistoryDepth(t *testing.T) {
	D := 6
	L := 2
	x0 := mat.NewVecDense(D, make([]float64, D))
	P0 := identityP(D, 1.0)
	est := timeengine.NewEstimator(D, L, x0, P0, flatQ(D, 0.01))

	err := est.UpdateOOSM(L+1, make([]float64, 6), 1.0, 1.0)
	require.ErrorIs(t, err, timeengine.ErrStaleMeasurement)
}

func TestUpdateRejectsWrongMeasurementDimension(t *testing.T) {
	D := 9
	x0 := mat.NewVecDense(D, make([]float64, D))
	P0 := identityP(D, 1.0)
	est := timeengine.NewEstimator(D, 2, x0, P0, flatQ(D, 0.01))

	err := est.Update([]float64{1, 2, 3}, 1.0, 1.0)
	require.ErrorIs(t, err, timeengine.ErrInvalidDimensions)
}

func TestConstantAccelerationModelAdvancesPositionAndVelocity(t *testing.T) {
	require := require.New(t)

	D := 9
	x0 := mat.NewVecDense(D, []float64{0, 0, 0, 0, 0, 0, 1, 0, 0})
	P0 := identityP(D, 1.0)
	est := timeengine.NewEstimator(D, 1, x0, P0, flatQ(D, 0.01))

	est.Predict(1.0)
	s := est.State()
	require.InDelta(0.5, s[0], 1e-9) // 0.5*a*t^2
	require.InDelta(1.0, s[3], 1e-9) // v += a*t
}
