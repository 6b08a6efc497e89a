// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spatial

import (
	"fmt"
	"math"

	"github.com/galanafai/godview/ids"
)

// CellKey is a 3D cube hash key within a shard's local Cartesian frame
// (spec §3 GLOSSARY "Cell").
type CellKey struct {
	I, J, K int32
}

func cellKeyFor(l Local, edge float64) CellKey {
	return CellKey{
		I: int32(math.Floor(l.X / edge)),
		J: int32(math.Floor(l.Y / edge)),
		K: int32(math.Floor(l.Z / edge)),
	}
}

type entityRecord struct {
	ID     ids.EntityID
	Local  Local
	Global Position
	ghost  bool
}

type shard struct {
	origin Position
	arena  *Arena[entityRecord]
	byID   map[ids.EntityID]Handle
	cells  map[CellKey][]Handle
}

func newShard(origin Position) *shard {
	return &shard{
		origin: origin,
		arena:  NewArena[entityRecord](),
		byID:   make(map[ids.EntityID]Handle),
		cells:  make(map[CellKey][]Handle),
	}
}

func (s *shard) insert(id ids.EntityID, global Position, cellEdge float64, ghost bool) Handle {
	local := ToLocal(s.origin, global)
	h := s.arena.Insert(entityRecord{ID: id, Local: local, Global: global, ghost: ghost})
	s.byID[id] = h
	ck := cellKeyFor(local, cellEdge)
	s.cells[ck] = append(s.cells[ck], h)
	return h
}

func (s *shard) remove(id ids.EntityID, cellEdge float64) {
	h, ok := s.byID[id]
	if !ok {
		return
	}
	rec, ok := s.arena.Get(h)
	if ok {
		ck := cellKeyFor(rec.Local, cellEdge)
		s.cells[ck] = removeHandle(s.cells[ck], h)
	}
	s.arena.Remove(h)
	delete(s.byID, id)
}

func removeHandle(hs []Handle, target Handle) []Handle {
	for i, h := range hs {
		if h == target {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}

// Result is one radius-query hit (spec §4.3 "Results: a list of entity
// handles and their distances").
type Result struct {
	EntityID ids.EntityID
	Distance float64
}

// Index is the Space Engine's entity store: a hex-shard grid of 3D
// cell grids, with generation-safe handles and boundary ghost caching
// (spec §4.3).
type Index struct {
	resolution int
	cellEdge   float64
	edgeHalo   float64

	shards        map[ShardKey]*shard
	homeShardOf   map[ids.EntityID]ShardKey
	ghostShardsOf map[ids.EntityID][]ShardKey

	// hexEdgeOverride is the precise per-resolution edge length
	// (config.Config.H3EdgeMeters); 0 falls back to the resolution-9
	// approximation.
	hexEdgeOverride float64
}

// NewIndex builds an Index at the given H3 resolution with the given
// local cell edge length (meters) and boundary-ghost halo (meters).
func NewIndex(resolution int, cellEdge, edgeHalo float64) *Index {
	return &Index{
		resolution:    resolution,
		cellEdge:      cellEdge,
		edgeHalo:      edgeHalo,
		shards:        make(map[ShardKey]*shard),
		homeShardOf:   make(map[ids.EntityID]ShardKey),
		ghostShardsOf: make(map[ids.EntityID][]ShardKey),
	}
}

func (idx *Index) shardFor(key ShardKey) (*shard, error) {
	if s, ok := idx.shards[key]; ok {
		return s, nil
	}
	origin, err := centroid(key)
	if err != nil {
		return nil, err
	}
	s := newShard(origin)
	idx.shards[key] = s
	return s, nil
}

// Insert places entity id at global position p, hex-edge-caching it
// into neighboring shards when it is near a boundary (spec §4.3
// "Edge caching").
func (idx *Index) Insert(id ids.EntityID, p Position) error {
	if !p.IsFinite() {
		return ErrInvalidPosition
	}
	if _, exists := idx.homeShardOf[id]; exists {
		return idx.Move(id, p)
	}

	key, err := shardKeyFor(p, idx.resolution)
	if err != nil {
		return fmt.Errorf("spatial: %w", err)
	}
	home, err := idx.shardFor(key)
	if err != nil {
		return err
	}
	home.insert(id, p, idx.cellEdge, false)
	idx.homeShardOf[id] = key

	if err := idx.refreshGhosts(id, key, p); err != nil {
		return err
	}
	return nil
}

// Move removes id from its current position and reinserts it at p,
// updating any ghost references (spec §4.3 "ghosts are removed when
// the source entity moves").
func (idx *Index) Move(id ids.EntityID, p Position) error {
	if !p.IsFinite() {
		return ErrInvalidPosition
	}
	if _, ok := idx.homeShardOf[id]; !ok {
		return ErrUnknownEntity
	}
	if err := idx.Remove(id); err != nil {
		return err
	}
	return idx.Insert(id, p)
}

// Remove deletes id from the index and clears any ghost references.
func (idx *Index) Remove(id ids.EntityID) error {
	key, ok := idx.homeShardOf[id]
	if !ok {
		return ErrUnknownEntity
	}
	if s, ok := idx.shards[key]; ok {
		s.remove(id, idx.cellEdge)
	}
	delete(idx.homeShardOf, id)
	idx.clearGhosts(id)
	return nil
}

func (idx *Index) clearGhosts(id ids.EntityID) {
	for _, key := range idx.ghostShardsOf[id] {
		if s, ok := idx.shards[key]; ok {
			s.remove(id, idx.cellEdge)
		}
	}
	delete(idx.ghostShardsOf, id)
}

// refreshGhosts re-evaluates whether id needs ghost copies in its
// 1-ring neighbor shards, based on its distance from the shard
// centroid relative to the configured hex edge and halo (spec §4.3:
// "distance to any shard boundary is below a configured threshold").
func (idx *Index) refreshGhosts(id ids.EntityID, homeKey ShardKey, p Position) error {
	idx.clearGhosts(id)

	home, err := idx.shardFor(homeKey)
	if err != nil {
		return err
	}
	local := ToLocal(home.origin, p)
	hexEdge := idx.hexEdgeOverride
	if hexEdge <= 0 {
		hexEdge = 174.4 // resolution-9 default, see config.h3EdgeMetersByResolution
	}
	distFromCentroid := math.Hypot(local.X, local.Y)
	if distFromCentroid < hexEdge-idx.edgeHalo {
		return nil // well inside the shard, no ghosting needed
	}

	neighbors, err := ring(homeKey, 1)
	if err != nil {
		return err
	}
	var ghosted []ShardKey
	for _, n := range neighbors {
		if n == homeKey {
			continue
		}
		ns, err := idx.shardFor(n)
		if err != nil {
			return err
		}
		ns.insert(id, p, idx.cellEdge, true)
		ghosted = append(ghosted, n)
	}
	idx.ghostShardsOf[id] = ghosted
	return nil
}

// ShardKeyFor resolves the hex shard containing p at the index's
// configured resolution (spec §4.3; exported so callers outside this
// package — the Agent Runtime addressing gossip topics, spec §6
// "Topic layout" — can compute shard keys without duplicating H3
// resolution bookkeeping).
func (idx *Index) ShardKeyFor(p Position) (ShardKey, error) {
	return shardKeyFor(p, idx.resolution)
}

// Neighbors returns key's 1-ring neighborhood, including key itself
// (spec §6 "Subscribers subscribe to their current shard and its
// 1-ring").
func (idx *Index) Neighbors(key ShardKey) ([]ShardKey, error) {
	return ring(key, 1)
}

// SetHexEdgeMeters lets callers (wired from config.Config.H3EdgeMeters)
// supply the exact per-resolution edge length instead of the
// resolution-9 default baked into refreshGhosts/RadiusQuery.
func (idx *Index) SetHexEdgeMeters(m float64) {
	idx.hexEdgeOverride = m
}

// RadiusQuery returns every entity within r meters of p (spec §4.3
// "Radius query"). Complexity O(k^3) where k = r/cell_edge, per shard
// expanded.
func (idx *Index) RadiusQuery(p Position, r float64) ([]Result, error) {
	if !p.IsFinite() {
		return nil, ErrInvalidPosition
	}

	queryKey, err := shardKeyFor(p, idx.resolution)
	if err != nil {
		return nil, fmt.Errorf("spatial: %w", err)
	}
	hexEdge := idx.hexEdgeOverride
	if hexEdge <= 0 {
		hexEdge = 174.4
	}
	k := ringsForRadius(r, hexEdge)
	candidates, err := ring(queryKey, k)
	if err != nil {
		return nil, err
	}

	best := make(map[ids.EntityID]float64)
	for _, key := range candidates {
		s, ok := idx.shards[key]
		if !ok {
			continue
		}
		localQuery := ToLocal(s.origin, p)
		kc := int(math.Ceil(r / idx.cellEdge))
		qc := cellKeyFor(localQuery, idx.cellEdge)

		for di := -kc; di <= kc; di++ {
			for dj := -kc; dj <= kc; dj++ {
				for dk := -kc; dk <= kc; dk++ {
					ck := CellKey{I: qc.I + int32(di), J: qc.J + int32(dj), K: qc.K + int32(dk)}
					for _, h := range s.cells[ck] {
						rec, ok := s.arena.Get(h)
						if !ok {
							continue
						}
						d := math.Sqrt(
							(rec.Local.X-localQuery.X)*(rec.Local.X-localQuery.X) +
								(rec.Local.Y-localQuery.Y)*(rec.Local.Y-localQuery.Y) +
								(rec.Local.Z-localQuery.Z)*(rec.Local.Z-localQuery.Z),
						)
						if d > r {
							continue
						}
						if prev, ok := best[rec.ID]; !ok || d < prev {
							best[rec.ID] = d
						}
					}
				}
			}
		}
	}

	out := make([]Result, 0, len(best))
	for id, d := range best {
		out = append(out, Result{EntityID: id, Distance: d})
	}
	return out, nil
}
