// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the agent's telemetry sinks: the Time
// Engine's per-update NIS scalar (spec §4.4/§8) and the Tracking
// Engine's per-track ghost score (spec §4.5.7) are not required for
// correctness but are testable and observable properties.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Averager tracks a running average of an observed scalar, backed by a
// prometheus counter (observation count) and gauge (running sum).
type Averager interface {
	Observe(value float64)
	Read() float64
}

type averager struct {
	mu    sync.RWMutex
	sum   float64
	count float64

	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

// NewAverager registers a count/sum metric pair under reg and returns
// an Averager backed by them.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	count := prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_count",
		Help: "Total # of observations of " + help,
	})
	sum := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_sum",
		Help: "Sum of " + help,
	})

	if err := reg.Register(count); err != nil {
		return nil, err
	}
	if err := reg.Register(sum); err != nil {
		return nil, err
	}

	return &averager{promCount: count, promSum: sum}, nil
}

func (a *averager) Observe(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sum += value
	a.count++

	if a.promCount != nil {
		a.promCount.Inc()
	}
	if a.promSum != nil {
		a.promSum.Add(value)
	}
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// Registry is the set of per-agent telemetry sinks handed to the
// engines at construction time. Nil fields are valid — engines treat a
// nil sink as "metrics disabled" rather than requiring a null object.
type Registry struct {
	Registerer prometheus.Registerer

	// NIS is the Time Engine's per-update Normalized Innovation
	// Squared running average (spec §4.4).
	NIS Averager

	// GhostScore is the Tracking Engine's per-track diagnostic gauge
	// (spec §4.5.7), updated on each association pass.
	GhostScore prometheus.Gauge

	// TrackCount reports the live track count in the world model.
	TrackCount prometheus.Gauge

	// PacketsDropped counts packets dropped for any Trust/Space/
	// Tracking reason (spec §7 counters).
	PacketsDropped *prometheus.CounterVec
}

// NewRegistry registers the agent's fixed metric set under reg.
func NewRegistry(reg prometheus.Registerer) (*Registry, error) {
	nis, err := NewAverager("godview_nis", "normalized innovation squared", reg)
	if err != nil {
		return nil, err
	}

	ghostScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "godview_ghost_score",
		Help: "Most recently computed per-track ghost score",
	})
	if err := reg.Register(ghostScore); err != nil {
		return nil, err
	}

	trackCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "godview_track_count",
		Help: "Live tracks currently held in the world model",
	})
	if err := reg.Register(trackCount); err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godview_packets_dropped_total",
		Help: "Packets dropped, labeled by reason",
	}, []string{"reason"})
	if err := reg.Register(dropped); err != nil {
		return nil, err
	}

	return &Registry{
		Registerer:     reg,
		NIS:            nis,
		GhostScore:     ghostScore,
		TrackCount:     trackCount,
		PacketsDropped: dropped,
	}, nil
}
