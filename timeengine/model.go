// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timeengine

import "gonum.org/v1/gonum/mat"

// MeasurementDim is the fixed dimension of an observation: position
// (x,y,z) and velocity (vx,vy,vz) (spec §6 observation packet fields).
const MeasurementDim = 6

// motionMatrix builds the D x D constant-velocity (D=6) or constant-
// acceleration (D=9) discretized motion model for one tick of length
// dt (spec §4.4 "Evolve the current block through the motion model
// (constant velocity or constant acceleration)"). Base state order per
// axis-group is [pos(3), vel(3), acc(3 if D==9)].
func motionMatrix(D int, dt float64) *mat.Dense {
	F := mat.NewDense(D, D, nil)
	for i := 0; i < D; i++ {
		F.Set(i, i, 1)
	}
	// pos += vel*dt
	for i := 0; i < 3; i++ {
		F.Set(i, 3+i, dt)
	}
	if D == 9 {
		// pos += 0.5*acc*dt^2 ; vel += acc*dt
		half := 0.5 * dt * dt
		for i := 0; i < 3; i++ {
			F.Set(i, 6+i, half)
			F.Set(3+i, 6+i, dt)
		}
	}
	return F
}

// processNoise builds the D x D diagonal process noise matrix Q from
// the configured per-component diagonal (spec §6 process_noise_Q).
func processNoise(diag []float64) *mat.Dense {
	D := len(diag)
	Q := mat.NewDense(D, D, nil)
	for i, q := range diag {
		Q.Set(i, i, q)
	}
	return Q
}

// measurementNoise builds the 6x6 diagonal measurement noise matrix,
// scaled by confidence: lower confidence widens R (spec §4.4/§4.5.1
// "R is derived from the observation's confidence (lower confidence
// -> larger R)").
func measurementNoise(base, confidence float64) *mat.Dense {
	if confidence < 0.01 {
		confidence = 0.01
	}
	if confidence > 1 {
		confidence = 1
	}
	scale := base * (2 - confidence) // confidence=1 -> base; confidence->0 -> ~2*base
	R := mat.NewDense(MeasurementDim, MeasurementDim, nil)
	for i := 0; i < MeasurementDim; i++ {
		R.Set(i, i, scale)
	}
	return R
}
