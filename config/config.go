// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the agent's tunable parameters (spec §6
// "Configuration (enumerated)") and their presets, validated as a
// group so a single startup error reports every violated invariant.
package config

import (
	"time"

	"github.com/galanafai/godview/internal/wrappers"
)

// h3EdgeMetersByResolution is the approximate average hexagon edge
// length, in meters, at each H3 resolution (Uber's published table).
// The default resolution 9 (≈174 m) lies above spec's 25-150 m
// shard_edge_m range; resolution 10 (≈66 m) lies inside it and
// resolution 11 (≈25 m) at its lower end.
var h3EdgeMetersByResolution = map[int]float64{
	7:  1220.6,
	8:  461.4,
	9:  174.4,
	10: 65.9,
	11: 24.9,
}

// Config holds every parameter spec §6 enumerates.
type Config struct {
	// TickDT is the fixed tick period (spec §4.6, default 33ms).
	TickDT time.Duration `json:"tick_dt_ms"`

	// LagDepth is L, the number of past base-state blocks retained
	// for OOSM correction (spec §3/§4.4, default 20).
	LagDepth int `json:"lag_depth_L"`

	// StateDim is D, the per-tick base state dimension: 6
	// (position+velocity) or 9 (+acceleration). Default 9 — one of
	// the spec's two admissible Open-Question choices (spec §9).
	StateDim int `json:"state_dim_D"`

	// H3Resolution selects the global hex shard size (spec §4.3's
	// other Open Question). Default 9.
	H3Resolution int `json:"h3_resolution"`

	// CellEdge is the local 3D cell edge length in meters (spec §3,
	// default 10, admissible range 1-10).
	CellEdge float64 `json:"cell_edge_m"`

	// EdgeHalo is the distance-to-shard-boundary threshold below
	// which an entity is also inserted as a ghost in the neighboring
	// shard (spec §4.3 edge caching).
	EdgeHalo float64 `json:"edge_halo_m"`

	// GateChi2 is the squared-Mahalanobis association gate (spec
	// §4.5.1, default 12.59 = chi-square 95% @ 6 DOF).
	GateChi2 float64 `json:"gate_chi2"`

	// MaxAgeTicks is the track eviction age (spec §4.5.5, default 60
	// ticks = 2s at 30Hz).
	MaxAgeTicks int `json:"max_age_ticks"`

	// MaxSkew bounds the replay-protection window (spec §4.2,
	// default 10s total, split evenly past/future in Trust).
	MaxSkew time.Duration `json:"max_skew_s"`

	// ProcessNoiseQ is the diagonal of the D×D process noise matrix
	// added to the current block at each predict (spec §4.4).
	ProcessNoiseQ []float64 `json:"process_noise_Q"`

	// MeasurementNoiseRBase is the scalar measurement noise baseline,
	// scaled by (1-confidence) per observation (spec §4.4/§4.5.1).
	MeasurementNoiseRBase float64 `json:"measurement_noise_R_base"`

	// SuppressionTicks is the "ownership suppression" gossip hint
	// window (spec §4.5.6, optional — 0 disables it).
	SuppressionTicks int `json:"suppression_ticks"`

	// MaxTracksPerShard bounds the candidate set size the Tracking
	// Engine considers per association pass (spec §4.5.1 "cap the
	// candidate set if necessary").
	MaxTracksPerShard int `json:"max_tracks_per_shard"`
}

// MaxLag is L * TickDT, the maximum age of an accepted OOSM
// measurement (spec §6: "max_lag_s = L * tick_dt_ms / 1000").
func (c Config) MaxLag() time.Duration {
	return time.Duration(c.LagDepth) * c.TickDT
}

// H3EdgeMeters returns the approximate shard edge length for the
// configured resolution, or 0 if the resolution has no known entry.
func (c Config) H3EdgeMeters() float64 {
	return h3EdgeMetersByResolution[c.H3Resolution]
}

// Validate aggregates every violated invariant into one error instead
// of failing on the first (spec §7 Config: fatal at startup).
func (c Config) Validate() error {
	var errs wrappers.Errs

	if c.TickDT <= 0 {
		errs.Add(ErrInvalidTickDT)
	}
	if c.LagDepth < 1 {
		errs.Add(ErrInvalidLagDepth)
	}
	if c.StateDim != 6 && c.StateDim != 9 {
		errs.Add(ErrInvalidStateDim)
	}
	if c.H3Resolution < 0 || c.H3Resolution > 15 {
		errs.Add(ErrInvalidH3Resolution)
	}
	if c.CellEdge <= 0 {
		errs.Add(ErrInvalidCellEdge)
	}
	if c.EdgeHalo < 0 {
		errs.Add(ErrInvalidEdgeHaloCells)
	}
	if c.GateChi2 <= 0 {
		errs.Add(ErrInvalidGateChi2)
	}
	if c.MaxAgeTicks < 1 {
		errs.Add(ErrInvalidMaxAgeTicks)
	}
	if c.MaxSkew < 0 {
		errs.Add(ErrInvalidMaxSkew)
	}
	if len(c.ProcessNoiseQ) != c.StateDim {
		errs.Add(ErrInvalidProcessNoise)
	} else {
		for _, q := range c.ProcessNoiseQ {
			if q < 0 {
				errs.Add(ErrInvalidProcessNoise)
				break
			}
		}
	}
	if c.MeasurementNoiseRBase <= 0 {
		errs.Add(ErrInvalidMeasNoiseBase)
	}
	if c.MaxTracksPerShard < 1 {
		errs.Add(ErrInvalidMaxTracksPerShard)
	}

	return errs.Err()
}
