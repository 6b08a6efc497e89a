// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"github.com/galanafai/godview/metrics"
)

// InboundQueue is a fixed-capacity FIFO that drops the oldest entry
// when full rather than blocking or growing unbounded (spec §4.6
// "Backpressure: if the inbound queue exceeds a bound, the oldest
// packets are dropped (policy is telemetered)").
type InboundQueue struct {
	items   []Inbound
	cap     int
	metrics *metrics.Registry
}

// NewInboundQueue builds a queue bounded at capacity.
func NewInboundQueue(capacity int, reg *metrics.Registry) *InboundQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &InboundQueue{cap: capacity, metrics: reg}
}

// Push appends in, dropping the oldest queued item first if the queue
// is already at capacity.
func (q *InboundQueue) Push(in Inbound) {
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		if q.metrics != nil && q.metrics.PacketsDropped != nil {
			q.metrics.PacketsDropped.WithLabelValues("backpressure").Inc()
		}
	}
	q.items = append(q.items, in)
}

// Drain removes and returns up to max queued items, oldest first.
func (q *InboundQueue) Drain(max int) []Inbound {
	if max <= 0 || max > len(q.items) {
		max = len(q.items)
	}
	out := q.items[:max]
	q.items = q.items[max:]
	return out
}

// Len reports how many items are currently queued.
func (q *InboundQueue) Len() int {
	return len(q.items)
}
