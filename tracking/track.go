// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracking

import (
	"github.com/galanafai/godview/config"
	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/internal/set"
	"github.com/galanafai/godview/spatial"
	"github.com/galanafai/godview/timeengine"
	"gonum.org/v1/gonum/mat"
)

// Track is the world-model entry the Tracking Engine owns (spec §3
// UniqueTrack). CanonicalID is the min-CRDT reduction of ObservedIDs
// (spec §4.5.2 Highlander) and is also the key under which the track's
// position is stored in the spatial index.
type Track struct {
	CanonicalID ids.EntityID
	ObservedIDs set.Set[ids.EntityID]
	Class       ClassID

	Estimator *timeengine.Estimator

	// Origin is the local tangent-plane anchor this track's estimator
	// state is expressed against (spec §4.3 "a shard's local Cartesian
	// frame"); fixed at creation for estimator consistency across
	// predict/update cycles.
	Origin spatial.Position

	// Age is ticks since the last successful association (spec
	// §4.5.5).
	Age int

	// TicksSinceFreshUpdate drives the optional ownership-suppression
	// gossip hint (spec §4.5.6).
	TicksSinceFreshUpdate int

	// MintedLocally is true if this agent originated CanonicalID's
	// first observation (spec §4.5.6 "not originally minted locally").
	MintedLocally bool
}

// newTrack creates a track from the first observation of a new
// physical object (spec §4.5.1 step 5): canonical_id = entity_id,
// observed_ids = {entity_id}, state from (position, velocity),
// covariance from confidence.
func newTrack(o Observation, cfg config.Config) *Track {
	D := cfg.StateDim
	x0 := make([]float64, D)
	x0[3], x0[4], x0[5] = o.Velocity[0], o.Velocity[1], o.Velocity[2]
	x0vec := mat.NewVecDense(D, x0)

	confidence := o.Confidence
	if confidence < 0.01 {
		confidence = 0.01
	}
	initUncertainty := cfg.MeasurementNoiseRBase * (2 - confidence)
	P0 := mat.NewDense(D, D, nil)
	for i := 0; i < D; i++ {
		v := initUncertainty
		if i >= 6 {
			v *= 10 // acceleration components start far less certain
		}
		P0.Set(i, i, v)
	}

	est := timeengine.NewEstimator(D, cfg.LagDepth, x0vec, P0, cfg.ProcessNoiseQ)

	return &Track{
		CanonicalID:   o.EntityID,
		ObservedIDs:   set.Of(o.EntityID),
		Class:         o.Class,
		Estimator:     est,
		Origin:        o.Position,
		MintedLocally: true,
	}
}

// mahalanobisTo computes D² between observation o and this track's
// current estimate, in the track's own local frame (spec §4.5.1 step
// 4).
func (t *Track) mahalanobisTo(o Observation, measurementNoiseBase float64) (float64, error) {
	z := measurementVector(t.Origin, o)
	return t.Estimator.Mahalanobis(z, o.Confidence, measurementNoiseBase)
}

// Position returns the track's current global position, derived from
// its local-frame estimator state and fixed origin.
func (t *Track) Position() spatial.Position {
	s := t.Estimator.State()
	return spatial.ToGlobal(t.Origin, spatial.Local{X: s[0], Y: s[1], Z: s[2]})
}

// Velocity returns the track's current local-frame velocity.
func (t *Track) Velocity() [3]float64 {
	s := t.Estimator.State()
	return [3]float64{s[3], s[4], s[5]}
}

// TraceP returns the trace of the track's current base covariance
// (spec §4.5.5 divergence check, §4.5.7 ghost score input).
func (t *Track) TraceP() float64 {
	P := t.Estimator.Covariance()
	var tr float64
	r, _ := P.Dims()
	for i := 0; i < r; i++ {
		tr += P.At(i, i)
	}
	return tr
}
