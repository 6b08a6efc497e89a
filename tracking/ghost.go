// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracking

import "math"

// ghostScore blends three diagnostic signals into a [0,1] score (spec
// §4.5.7): a high-trace covariance, proximity (in Mahalanobis terms)
// to another live track of the same class, and a thin observed_ids
// support set, are each individually weak evidence of a duplicate
// ("ghost") track; combined they are a useful test/observability
// signal. Not used in the fusion or association path itself.
func ghostScore(ownTraceP, divergenceThreshold, minD2ToSameClass, gateChi2 float64, observedIDCount int) float64 {
	covComponent := clamp01(ownTraceP / divergenceThreshold)

	proximityComponent := 0.0
	if !math.IsInf(minD2ToSameClass, 1) {
		proximityComponent = 1 - clamp01(minD2ToSameClass/gateChi2)
	}

	supportComponent := 1 - clamp01(float64(observedIDCount-1)/3.0)

	return clamp01((covComponent + proximityComponent + supportComponent) / 3.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
