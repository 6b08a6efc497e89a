// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timeengine is the Time Engine (spec §4.4): a per-entity
// augmented-state Kalman estimator that absorbs out-of-sequence
// measurements whose lag does not exceed a configured depth L, using
// gonum.org/v1/gonum/mat for the underlying linear algebra.
package timeengine

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// HighUncertaintyDiag is the self-heal diagonal value written to the
// current block's covariance when an innovation covariance turns out
// singular (spec §4.4 "Covariance health").
const HighUncertaintyDiag = 1e6

// Estimator holds one track's augmented state: the current base state
// concatenated with up to L past base states, and the matching block
// covariance (spec §3 AugmentedState).
type Estimator struct {
	D int // base state dimension, 6 or 9
	L int // lag depth

	x *mat.VecDense // (L+1)*D
	P *mat.Dense    // ((L+1)*D) x ((L+1)*D)

	processNoiseQ []float64

	lastNIS float64
}

// NewEstimator initializes an Estimator with base state x0 and
// covariance P0 replicated across every lag block — the only
// consistent prior available at track creation, since no real history
// exists yet (spec §3 AugmentedState invariants).
func NewEstimator(D, L int, x0 *mat.VecDense, P0 *mat.Dense, processNoiseQ []float64) *Estimator {
	augDim := (L + 1) * D
	x := mat.NewVecDense(augDim, nil)
	P := mat.NewDense(augDim, augDim, nil)

	for i := 0; i <= L; i++ {
		for d := 0; d < D; d++ {
			x.SetVec(i*D+d, x0.AtVec(d))
		}
	}
	for i := 0; i <= L; i++ {
		for j := 0; j <= L; j++ {
			setBlock(P, i, j, D, P0)
		}
	}

	return &Estimator{D: D, L: L, x: x, P: P, processNoiseQ: processNoiseQ}
}

// State returns the current (lag-0) base state.
func (e *Estimator) State() []float64 {
	out := make([]float64, e.D)
	for d := 0; d < e.D; d++ {
		out[d] = e.x.AtVec(d)
	}
	return out
}

// Covariance returns the current (lag-0) base covariance block.
func (e *Estimator) Covariance() *mat.Dense {
	return getBlock(e.P, 0, 0, e.D)
}

// LastNIS returns the Normalized Innovation Squared from the most
// recent Update/UpdateOOSM call (spec §4.4 "Consistency metric").
func (e *Estimator) LastNIS() float64 {
	return e.lastNIS
}

// Dim returns the base state dimension D.
func (e *Estimator) Dim() int {
	return e.D
}

// Mahalanobis computes the squared Mahalanobis distance between
// measurement z and the current (block 0) predicted state, without
// mutating the estimator (spec §4.5.1 step 4: the Tracking Engine's
// association gate).
func (e *Estimator) Mahalanobis(z []float64, confidence, measurementNoiseBase float64) (float64, error) {
	if len(z) != MeasurementDim {
		return 0, ErrInvalidDimensions
	}
	H := measurementMatrixAt(0, e.D, e.L)
	R := measurementNoise(measurementNoiseBase, confidence)
	zVec := mat.NewVecDense(MeasurementDim, z)

	var Hx mat.VecDense
	Hx.MulVec(H, e.x)
	var innov mat.VecDense
	innov.SubVec(zVec, &Hx)

	P00 := getBlock(e.P, 0, 0, e.D)
	S := mat.NewDense(MeasurementDim, MeasurementDim, nil)
	for i := 0; i < MeasurementDim; i++ {
		for j := 0; j < MeasurementDim; j++ {
			S.Set(i, j, P00.At(i, j))
		}
	}
	S.Add(S, R)

	var Sinv mat.Dense
	if err := Sinv.Inverse(S); err != nil {
		return 0, ErrSingularInnovation
	}
	var SinvInnov mat.VecDense
	SinvInnov.MulVec(&Sinv, &innov)
	d2 := mat.Dot(&innov, &SinvInnov)
	if math.IsNaN(d2) || math.IsInf(d2, 0) {
		return 0, ErrSingularInnovation
	}
	return d2, nil
}

// SetCurrentBlock overwrites the current (block 0) base state and
// covariance — used after Covariance Intersection fusion (spec
// §4.5.3/§4.5.4 "State handoff to the Time Engine"). Cross-covariance
// terms with history blocks are zeroed: fusion changes the current
// estimate through a channel (mesh gossip) the retained history blocks
// know nothing about, so any claimed correlation with them is stale.
func (e *Estimator) SetCurrentBlock(x []float64, P *mat.Dense) error {
	if len(x) != e.D {
		return ErrInvalidDimensions
	}
	for d := 0; d < e.D; d++ {
		e.x.SetVec(d, x[d])
	}
	setBlock(e.P, 0, 0, e.D, P)

	blocks := e.L + 1
	zero := mat.NewDense(e.D, e.D, nil)
	for j := 1; j < blocks; j++ {
		setBlock(e.P, 0, j, e.D, zero)
		setBlock(e.P, j, 0, e.D, zero)
	}
	return nil
}

func getBlock(m *mat.Dense, bi, bj, D int) *mat.Dense {
	out := mat.NewDense(D, D, nil)
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			out.Set(i, j, m.At(bi*D+i, bj*D+j))
		}
	}
	return out
}

func setBlock(m *mat.Dense, bi, bj, D int, src mat.Matrix) {
	for i := 0; i < D; i++ {
		for j := 0; j < D; j++ {
			m.Set(bi*D+i, bj*D+j, src.At(i, j))
		}
	}
}

// Predict advances the estimator by one tick: shifts the augmented
// state and covariance blocks (lag i -> i+1, discarding the oldest),
// then evolves the current block through the motion model and adds
// process noise (spec §4.4 "Predict").
func (e *Estimator) Predict(dt float64) {
	D, L := e.D, e.L
	F := motionMatrix(D, dt)
	Q := processNoise(e.processNoiseQ)

	augDim := (L + 1) * D
	newX := mat.NewVecDense(augDim, nil)
	newP := mat.NewDense(augDim, augDim, nil)

	// Shift state: new block i+1 = old block i, for i in [0, L-1].
	for i := 0; i < L; i++ {
		for d := 0; d < D; d++ {
			newX.SetVec((i+1)*D+d, e.x.AtVec(i*D+d))
		}
	}
	// Evolve current block: new block0 = F * old block0.
	oldBlock0 := mat.NewVecDense(D, nil)
	for d := 0; d < D; d++ {
		oldBlock0.SetVec(d, e.x.AtVec(d))
	}
	var newBlock0 mat.VecDense
	newBlock0.MulVec(F, oldBlock0)
	for d := 0; d < D; d++ {
		newX.SetVec(d, newBlock0.AtVec(d))
	}

	// Shift covariance: new block (i+1, j+1) = old block (i, j).
	for i := 0; i < L; i++ {
		for j := 0; j < L; j++ {
			setBlock(newP, i+1, j+1, D, getBlock(e.P, i, j, D))
		}
	}
	// New block (0,0) = F P(0,0) F^T + Q.
	P00 := getBlock(e.P, 0, 0, D)
	var FP, FPFt mat.Dense
	FP.Mul(F, P00)
	FPFt.Mul(&FP, F.T())
	FPFt.Add(&FPFt, Q)
	setBlock(newP, 0, 0, D, &FPFt)

	// Cross terms between the new current block and shifted history:
	// new block (0, j+1) = F * old block (0, j); new block (i+1, 0) =
	// old block (i, 0) * F^T. This is the step that is
	// invariant-critical for OOSM correction (spec §4.4).
	for j := 0; j < L; j++ {
		P0j := getBlock(e.P, 0, j, D)
		var FP0j mat.Dense
		FP0j.Mul(F, P0j)
		setBlock(newP, 0, j+1, D, &FP0j)

		Pj0 := getBlock(e.P, j, 0, D)
		var Pj0Ft mat.Dense
		Pj0Ft.Mul(Pj0, F.T())
		setBlock(newP, j+1, 0, D, &Pj0Ft)
	}

	e.x = newX
	e.P = newP
}

// measurementMatrixAt builds the sparse-in-spirit (dense in
// representation) M x augDim selector that picks out position+velocity
// from lag block i (spec §4.4 "Build a sparse measurement matrix
// H_aug that selects the current block" / "block i, not block 0").
func measurementMatrixAt(block, D, L int) *mat.Dense {
	augDim := (L + 1) * D
	H := mat.NewDense(MeasurementDim, augDim, nil)
	for k := 0; k < MeasurementDim; k++ {
		H.Set(k, block*D+k, 1)
	}
	return H
}

// Update applies an in-sequence measurement at the current time (spec
// §4.4 "Update"). z must have MeasurementDim entries.
func (e *Estimator) Update(z []float64, confidence float64, measurementNoiseBase float64) error {
	return e.updateAt(0, z, confidence, measurementNoiseBase)
}

// UpdateOOSM applies a measurement whose wall time is lag ticks behind
// now (spec §4.4 "Update OOSM"). Returns ErrStaleMeasurement if lag is
// out of [0, L].
func (e *Estimator) UpdateOOSM(lag int, z []float64, confidence float64, measurementNoiseBase float64) error {
	if lag < 0 || lag > e.L {
		return ErrStaleMeasurement
	}
	return e.updateAt(lag, z, confidence, measurementNoiseBase)
}

func (e *Estimator) updateAt(block int, z []float64, confidence, measurementNoiseBase float64) error {
	if len(z) != MeasurementDim {
		return ErrInvalidDimensions
	}

	D, L := e.D, e.L
	augDim := (L + 1) * D
	H := measurementMatrixAt(block, D, L)
	R := measurementNoise(measurementNoiseBase, confidence)

	zVec := mat.NewVecDense(MeasurementDim, z)

	var Hx mat.VecDense
	Hx.MulVec(H, e.x)
	var innov mat.VecDense
	innov.SubVec(zVec, &Hx)

	// S = H P H^T + R = the top-left MeasurementDim corner of block
	// (block,block), since H is an identity selector into that block.
	Pbb := getBlock(e.P, block, block, D)
	S := mat.NewDense(MeasurementDim, MeasurementDim, nil)
	for i := 0; i < MeasurementDim; i++ {
		for j := 0; j < MeasurementDim; j++ {
			S.Set(i, j, Pbb.At(i, j))
		}
	}
	S.Add(S, R)

	var Sinv mat.Dense
	if err := Sinv.Inverse(S); err != nil {
		e.resetCovarianceHealth(block)
		return ErrSingularInnovation
	}

	var SinvInnov mat.VecDense
	SinvInnov.MulVec(&Sinv, &innov)
	nis := mat.Dot(&innov, &SinvInnov)
	if math.IsNaN(nis) || math.IsInf(nis, 0) {
		e.resetCovarianceHealth(block)
		return ErrSingularInnovation
	}
	e.lastNIS = nis

	// K = P H^T S^-1: the augDim x MeasurementDim matrix formed by
	// taking every row of P at columns [block*D : block*D+M].
	PHt := mat.NewDense(augDim, MeasurementDim, nil)
	for i := 0; i < augDim; i++ {
		for j := 0; j < MeasurementDim; j++ {
			PHt.Set(i, j, e.P.At(i, block*D+j))
		}
	}
	var K mat.Dense
	K.Mul(PHt, &Sinv)

	var dx mat.VecDense
	dx.MulVec(&K, &innov)
	e.x.AddVec(e.x, &dx)

	// Joseph form: P <- (I-KH) P (I-KH)^T + K R K^T (spec §4.4
	// "mandatory; ... remains symmetric and positive-definite under
	// floating-point rounding").
	var KH mat.Dense
	KH.Mul(&K, H)
	I := mat.NewDense(augDim, augDim, nil)
	for i := 0; i < augDim; i++ {
		I.Set(i, i, 1)
	}
	var ImKH mat.Dense
	ImKH.Sub(I, &KH)

	var tmp, newP mat.Dense
	tmp.Mul(&ImKH, e.P)
	newP.Mul(&tmp, ImKH.T())

	var KR, KRKt mat.Dense
	KR.Mul(&K, R)
	KRKt.Mul(&KR, K.T())
	newP.Add(&newP, &KRKt)

	e.P = &newP
	return nil
}

// resetCovarianceHealth guards against degenerate updates by resetting
// the affected block's covariance to a high-uncertainty diagonal
// rather than propagating a singular or NaN state (spec §4.4
// "Covariance health").
func (e *Estimator) resetCovarianceHealth(block int) {
	D := e.D
	diag := mat.NewDense(D, D, nil)
	for i := 0; i < D; i++ {
		diag.Set(i, i, HighUncertaintyDiag)
	}
	setBlock(e.P, block, block, D, diag)

	augDim := (e.L + 1) * D
	for j := 0; j < augDim/D; j++ {
		if j == block {
			continue
		}
		zero := mat.NewDense(D, D, nil)
		setBlock(e.P, block, j, D, zero)
		setBlock(e.P, j, block, D, zero)
	}
}
