// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

// Config errors are fatal at startup (spec §7: "Config (startup,
// fatal): inconsistent parameters ... abort startup").
var (
	ErrInvalidTickDT            = errors.New("config: tick_dt_ms must be >= 1")
	ErrInvalidLagDepth          = errors.New("config: lag_depth_L must be >= 1")
	ErrInvalidStateDim          = errors.New("config: state_dim_D must be 6 or 9")
	ErrInvalidH3Resolution      = errors.New("config: h3_resolution must be in [0, 15]")
	ErrInvalidCellEdge          = errors.New("config: cell_edge_m must be > 0")
	ErrInvalidGateChi2          = errors.New("config: gate_chi2 must be > 0")
	ErrInvalidMaxAgeTicks       = errors.New("config: max_age_ticks must be >= 1")
	ErrInvalidMaxSkew           = errors.New("config: max_skew_s must be >= 0")
	ErrInvalidProcessNoise      = errors.New("config: process_noise_Q must have state_dim_D entries, all >= 0")
	ErrInvalidMeasNoiseBase     = errors.New("config: measurement_noise_R_base must be > 0")
	ErrInvalidEdgeHaloCells     = errors.New("config: edge_halo_m must be >= 0")
	ErrInvalidMaxTracksPerShard = errors.New("config: max_tracks_per_shard must be >= 1")
)
