// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tracking is the Tracking Engine (spec §4.5): data
// association, Highlander identity consensus, Covariance Intersection
// fusion, and track lifecycle management.
package tracking

import (
	"time"

	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/spatial"
)

// ClassID is a small object-class enumeration (spec §6 observation
// packet field class_id); class mismatch is a hard association gate
// (spec §4.5.1 step 3).
type ClassID uint8

// Observation is one verified inbound (or locally sensed) detection
// (spec §6 "Observation packet").
type Observation struct {
	EntityID   ids.EntityID
	Position   spatial.Position
	Velocity   [3]float64
	Class      ClassID
	Timestamp  time.Time
	Confidence float64
	Publisher  ids.PublicKey
}

// measurementVector returns the 6-dimensional [pos, vel] observation
// in the local frame of origin, matching timeengine.MeasurementDim.
func measurementVector(origin spatial.Position, o Observation) []float64 {
	l := spatial.ToLocal(origin, o.Position)
	return []float64{l.X, l.Y, l.Z, o.Velocity[0], o.Velocity[1], o.Velocity[2]}
}
