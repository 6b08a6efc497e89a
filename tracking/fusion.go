// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracking

import (
	"github.com/galanafai/godview/internal/safemath"
	"gonum.org/v1/gonum/mat"
)

// ciWeight is the closed-form trace heuristic ω = tr(P_B)/(tr(P_A)+tr(P_B))
// (spec §4.5.3 "Fusion weight"). Falls back to 0.5 (equal trust) if
// both traces are zero.
func ciWeight(PA, PB *mat.Dense) float64 {
	trA := mat.Trace(PA)
	trB := mat.Trace(PB)
	return safemath.SafeDiv(trB, trA+trB, 0.5)
}

// fuseCovarianceIntersection combines two (state, covariance) pairs
// via Covariance Intersection (spec §4.5.3), which remains consistent
// under unknown correlation between the inputs — the required
// alternative to naive information-filter fusion, which would let
// mesh gossip loops shrink covariance to zero (data incest).
//
// Returns ErrNoAssociationMatrixInversion if either input or the
// fused precision matrix is not invertible; the caller must retain
// the prior track state on error (spec §4.5.3 "Fusion failures").
func fuseCovarianceIntersection(xA *mat.VecDense, PA *mat.Dense, xB *mat.VecDense, PB *mat.Dense) (*mat.VecDense, *mat.Dense, error) {
	var PAinv, PBinv mat.Dense
	if err := PAinv.Inverse(PA); err != nil {
		return nil, nil, ErrNoAssociationMatrixInversion
	}
	if err := PBinv.Inverse(PB); err != nil {
		return nil, nil, ErrNoAssociationMatrixInversion
	}

	omega := ciWeight(PA, PB)

	var wA, wB mat.Dense
	wA.Scale(omega, &PAinv)
	wB.Scale(1-omega, &PBinv)

	var PFinv mat.Dense
	PFinv.Add(&wA, &wB)

	var PF mat.Dense
	if err := PF.Inverse(&PFinv); err != nil {
		return nil, nil, ErrNoAssociationMatrixInversion
	}

	var wAxA, wBxB, sum mat.VecDense
	wAxA.MulVec(&wA, xA)
	wBxB.MulVec(&wB, xB)
	sum.AddVec(&wAxA, &wBxB)

	var xF mat.VecDense
	xF.MulVec(&PF, &sum)

	return &xF, &PF, nil
}
