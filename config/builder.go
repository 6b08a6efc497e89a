// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"time"
)

// Builder provides a fluent interface for constructing a Config,
// mirroring the teacher's NewBuilder/FromPreset/With.../Build idiom.
type Builder struct {
	config Config
	err    error
}

// NewBuilder starts from Default and returns a Builder ready for
// overrides.
func NewBuilder() *Builder {
	return &Builder{config: Default()}
}

// FromPreset replaces the builder's config with a named preset.
func (b *Builder) FromPreset(name string) *Builder {
	if b.err != nil {
		return b
	}
	switch name {
	case "default":
		b.config = Default()
	case "urban":
		b.config = Urban()
	case "highway":
		b.config = Highway()
	case "local":
		b.config = Local()
	default:
		b.err = fmt.Errorf("config: unknown preset %q", name)
	}
	return b
}

// WithTickDT overrides the tick period.
func (b *Builder) WithTickDT(d time.Duration) *Builder {
	if b.err == nil {
		b.config.TickDT = d
	}
	return b
}

// WithLagDepth overrides L. ProcessNoiseQ is left untouched (state
// dimension is independent of lag depth).
func (b *Builder) WithLagDepth(l int) *Builder {
	if b.err == nil {
		b.config.LagDepth = l
	}
	return b
}

// WithStateDim overrides D. If the current ProcessNoiseQ diagonal
// doesn't match the new dimension, it's reset to a flat default so
// Build doesn't hand back a silently mismatched config.
func (b *Builder) WithStateDim(d int) *Builder {
	if b.err != nil {
		return b
	}
	if d != 6 && d != 9 {
		b.err = fmt.Errorf("config: state dim must be 6 or 9, got %d", d)
		return b
	}
	b.config.StateDim = d
	if len(b.config.ProcessNoiseQ) != d {
		b.config.ProcessNoiseQ = flatDiagonal(d, 0.1)
	}
	return b
}

// WithH3Resolution overrides the shard resolution.
func (b *Builder) WithH3Resolution(res int) *Builder {
	if b.err == nil {
		b.config.H3Resolution = res
	}
	return b
}

// WithGateChi2 overrides the association gate.
func (b *Builder) WithGateChi2(chi2 float64) *Builder {
	if b.err == nil {
		b.config.GateChi2 = chi2
	}
	return b
}

// WithProcessNoiseQ overrides the process noise diagonal directly.
func (b *Builder) WithProcessNoiseQ(diag []float64) *Builder {
	if b.err == nil {
		b.config.ProcessNoiseQ = diag
	}
	return b
}

// Build validates and returns the final Config.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}

func flatDiagonal(d int, v float64) []float64 {
	q := make([]float64, d)
	for i := range q {
		q[i] = v
	}
	return q
}

// Default is the spec §6 default configuration: 33ms tick, L=20,
// D=9, H3 resolution 9, 10m cells, chi2 12.59, 60-tick max age, 10s
// skew window.
func Default() Config {
	return Config{
		TickDT:                33 * time.Millisecond,
		LagDepth:              20,
		StateDim:              9,
		H3Resolution:          9,
		CellEdge:              10,
		EdgeHalo:              5,
		GateChi2:              12.59,
		MaxAgeTicks:           60,
		MaxSkew:               10 * time.Second,
		ProcessNoiseQ:         flatDiagonal(9, 0.25),
		MeasurementNoiseRBase: 1.0,
		SuppressionTicks:      30,
		MaxTracksPerShard:     256,
	}
}

// Urban tightens shard/cell granularity for dense, slow-moving traffic
// — finer H3 resolution, smaller cells and halo, a larger per-shard
// candidate cap, and a shorter suppression window since peers are
// numerous and nearby. The association gate is the default one.
func Urban() Config {
	c := Default()
	c.H3Resolution = 10
	c.CellEdge = 3
	c.EdgeHalo = 2
	c.MaxTracksPerShard = 512
	c.SuppressionTicks = 15
	return c
}

// Highway widens shards (coarser H3 resolution), the edge halo, the
// gate and the measurement noise baseline for fast, sparse traffic
// covering more ground between ticks. Cell size stays at the default.
func Highway() Config {
	c := Default()
	c.H3Resolution = 8
	c.CellEdge = 10
	c.EdgeHalo = 15
	c.GateChi2 = 16.81 // 6 DOF @ 99%, wider gate for faster traffic
	c.MeasurementNoiseRBase = 2.0
	return c
}

// Local is a tight-loop configuration for unit tests and single-host
// demos: short max age, small lag depth, aggressive ticking.
func Local() Config {
	c := Default()
	c.TickDT = 10 * time.Millisecond
	c.LagDepth = 5
	c.MaxAgeTicks = 10
	c.H3Resolution = 9
	return c
}
