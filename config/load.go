// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// rawConfig mirrors Config's on-disk representation (spec §6
// "Configuration (enumerated)"): durations are written the way an
// operator would naturally express them in a deployment file
// (milliseconds, seconds) rather than as a Go time.Duration literal.
type rawConfig struct {
	TickDTMillis          int64     `yaml:"tick_dt_ms"`
	LagDepth              int       `yaml:"lag_depth_L"`
	StateDim              int       `yaml:"state_dim_D"`
	H3Resolution          int       `yaml:"h3_resolution"`
	CellEdgeM             float64   `yaml:"cell_edge_m"`
	EdgeHaloM             float64   `yaml:"edge_halo_m"`
	GateChi2              float64   `yaml:"gate_chi2"`
	MaxAgeTicks           int       `yaml:"max_age_ticks"`
	MaxSkewSeconds        float64   `yaml:"max_skew_s"`
	ProcessNoiseQ         []float64 `yaml:"process_noise_Q"`
	MeasurementNoiseRBase float64   `yaml:"measurement_noise_R_base"`
	SuppressionTicks      int       `yaml:"suppression_ticks"`
	MaxTracksPerShard     int       `yaml:"max_tracks_per_shard"`
}

func rawFromConfig(c Config) rawConfig {
	return rawConfig{
		TickDTMillis:          c.TickDT.Milliseconds(),
		LagDepth:              c.LagDepth,
		StateDim:              c.StateDim,
		H3Resolution:          c.H3Resolution,
		CellEdgeM:             c.CellEdge,
		EdgeHaloM:             c.EdgeHalo,
		GateChi2:              c.GateChi2,
		MaxAgeTicks:           c.MaxAgeTicks,
		MaxSkewSeconds:        c.MaxSkew.Seconds(),
		ProcessNoiseQ:         c.ProcessNoiseQ,
		MeasurementNoiseRBase: c.MeasurementNoiseRBase,
		SuppressionTicks:      c.SuppressionTicks,
		MaxTracksPerShard:     c.MaxTracksPerShard,
	}
}

func (rc rawConfig) toConfig() Config {
	return Config{
		TickDT:                time.Duration(rc.TickDTMillis) * time.Millisecond,
		LagDepth:              rc.LagDepth,
		StateDim:              rc.StateDim,
		H3Resolution:          rc.H3Resolution,
		CellEdge:              rc.CellEdgeM,
		EdgeHalo:              rc.EdgeHaloM,
		GateChi2:              rc.GateChi2,
		MaxAgeTicks:           rc.MaxAgeTicks,
		MaxSkew:               time.Duration(rc.MaxSkewSeconds * float64(time.Second)),
		ProcessNoiseQ:         rc.ProcessNoiseQ,
		MeasurementNoiseRBase: rc.MeasurementNoiseRBase,
		SuppressionTicks:      rc.SuppressionTicks,
		MaxTracksPerShard:     rc.MaxTracksPerShard,
	}
}

// LoadFile reads a YAML configuration file at path, starting from
// Default() for any field the document omits (yaml.Unmarshal only
// overwrites keys actually present), then validates the merged result
// (spec §7 "Config (startup, fatal)").
func LoadFile(path string) (Config, error) {
	return LoadFileOverPreset(path, Default())
}

// LoadFileOverPreset is LoadFile but starting from base instead of
// Default — wired from cmd/godview-agent's --preset flag so a
// deployment file only needs to override what differs from the chosen
// preset.
func LoadFileOverPreset(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	rc := rawFromConfig(base)
	if err := yaml.Unmarshal(raw, &rc); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := rc.toConfig()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
