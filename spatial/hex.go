// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spatial

import (
	"math"

	"github.com/uber/h3-go/v4"
)

// ShardKey identifies a global hex cell at the index's configured
// resolution (spec §3 Shard, GLOSSARY).
type ShardKey h3.Cell

// String renders the shard key as H3's canonical hex string, which is
// also what the gossip topic layout addresses by (spec §6 "godview/hazards/<shard-key>").
func (k ShardKey) String() string {
	return h3.Cell(k).String()
}

// shardKeyFor resolves the H3 cell containing p at resolution res.
func shardKeyFor(p Position, res int) (ShardKey, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), res)
	if err != nil {
		return 0, err
	}
	return ShardKey(cell), nil
}

// centroid returns the shard's hex centroid as a global Position, used
// as the gnomonic projection origin (spec §4.3).
func centroid(k ShardKey) (Position, error) {
	ll, err := h3.Cell(k).LatLng()
	if err != nil {
		return Position{}, err
	}
	return Position{Lat: ll.Lat, Lon: ll.Lng, Alt: 0}, nil
}

// ring returns every shard within k hex-rings of origin (spec §4.3
// "expanding k hex rings"), including origin itself.
func ring(origin ShardKey, k int) ([]ShardKey, error) {
	cells, err := h3.Cell(origin).GridDisk(k)
	if err != nil {
		return nil, err
	}
	out := make([]ShardKey, len(cells))
	for i, c := range cells {
		out[i] = ShardKey(c)
	}
	return out, nil
}

// ringsForRadius computes k = ceil(r / hexEdge), the number of hex
// rings a radius-r query must expand to guarantee coverage (spec
// §4.3 "Radius query" step 1).
func ringsForRadius(r, hexEdge float64) int {
	if hexEdge <= 0 {
		return 0
	}
	k := int(math.Ceil(r / hexEdge))
	if k < 1 {
		k = 1
	}
	return k
}
