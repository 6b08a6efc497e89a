// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracking

import (
	"math"
	"sort"
	"time"

	"github.com/galanafai/godview/config"
	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/log"
	"github.com/galanafai/godview/metrics"
	"github.com/galanafai/godview/spatial"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DivergenceTraceThreshold is the covariance-trace ceiling above which
// a track is considered divergent and evicted (spec §4.5.5 "Tracks
// whose covariance exceeds a divergence threshold are also removed").
// It sits below timeengine.HighUncertaintyDiag so a track the Time
// Engine has already self-healed via its covariance-health guard is
// reliably swept up on the next tick rather than lingering.
const DivergenceTraceThreshold = 1e5

// Engine is the Tracking Engine (spec §4.5): it owns the agent's
// world-model of tracks and the association/consensus/fusion/lifecycle
// machinery, keyed by each track's canonical identifier.
type Engine struct {
	cfg     config.Config
	index   *spatial.Index
	metrics *metrics.Registry
	log     log.Logger

	tracks map[ids.EntityID]*Track

	searchRadius float64
}

// NewEngine builds a Tracking Engine over a shared spatial index
// (spec §9 "the spatial index owns entity storage; the tracking engine
// owns tracks; handles are the one-way lookup").
func NewEngine(cfg config.Config, index *spatial.Index, reg *metrics.Registry, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNoOp()
	}
	radius := cfg.H3EdgeMeters() * 1.5
	if radius <= 0 {
		radius = cfg.CellEdge * 20
	}
	return &Engine{
		cfg:          cfg,
		index:        index,
		metrics:      reg,
		log:          logger,
		tracks:       make(map[ids.EntityID]*Track),
		searchRadius: radius,
	}
}

// Tracks returns the live track set, keyed by canonical id. Callers
// must not retain the map across a Tick/Ingest call that may re-key
// entries.
func (e *Engine) Tracks() map[ids.EntityID]*Track {
	return e.tracks
}

// Track looks up a track by canonical id.
func (e *Engine) Track(id ids.EntityID) (*Track, bool) {
	t, ok := e.tracks[id]
	return t, ok
}

func (e *Engine) lagTicks(o Observation, now time.Time) int {
	if e.cfg.TickDT <= 0 {
		return 0
	}
	delta := now.Sub(o.Timestamp)
	if delta <= 0 {
		return 0
	}
	lag := int(math.Round(float64(delta) / float64(e.cfg.TickDT)))
	if lag < 0 {
		lag = 0
	}
	return lag
}

// Ingest processes one verified inbound observation packet (spec
// §4.5.1 "Packet ingress"): gates candidates by spatial proximity and
// class, associates by nearest Mahalanobis distance under the
// configured χ² gate, and either creates a new track or folds the
// observation into the best match via Highlander + a Time Engine
// update.
func (e *Engine) Ingest(o Observation, now time.Time) error {
	candidates, err := e.index.RadiusQuery(o.Position, e.searchRadius)
	if err != nil {
		return err
	}
	candidates = e.capCandidates(candidates)

	var best *Track
	bestD2 := math.Inf(1)
	for _, c := range candidates {
		t, ok := e.tracks[c.EntityID]
		if !ok {
			continue
		}
		if t.Class != o.Class {
			continue
		}
		d2, err := t.mahalanobisTo(o, e.cfg.MeasurementNoiseRBase)
		if err != nil {
			continue // singular S for this candidate; skip, do not abort ingress
		}
		if d2 > e.cfg.GateChi2 {
			continue
		}
		if d2 < bestD2 {
			bestD2 = d2
			best = t
		}
	}

	if best == nil {
		t := newTrack(o, e.cfg)
		e.tracks[t.CanonicalID] = t
		if err := e.index.Insert(t.CanonicalID, o.Position); err != nil {
			delete(e.tracks, t.CanonicalID)
			return err
		}
		return nil
	}

	return e.associate(best, o, now)
}

// capCandidates bounds the candidate set RadiusQuery returns to
// e.cfg.MaxTracksPerShard, keeping the nearest candidates first (spec
// §4.5.1 "cap the candidate set if necessary"). A shard packed with
// more live tracks than the bound would otherwise make every Ingest
// call do unbounded work per observation.
func (e *Engine) capCandidates(candidates []spatial.Result) []spatial.Result {
	if e.cfg.MaxTracksPerShard <= 0 || len(candidates) <= e.cfg.MaxTracksPerShard {
		return candidates
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates[:e.cfg.MaxTracksPerShard]
}

// associate folds an observation into an already-matched track:
// Highlander identity consensus (spec §4.5.2), then a Time Engine
// update using the observation's lag relative to now.
func (e *Engine) associate(t *Track, o Observation, now time.Time) error {
	oldCanonical := t.CanonicalID
	t.ObservedIDs.Add(o.EntityID)
	newCanonical := ids.Min(t.ObservedIDs.List())

	if newCanonical != oldCanonical {
		delete(e.tracks, oldCanonical)
		t.CanonicalID = newCanonical
		e.tracks[newCanonical] = t
		if err := e.index.Remove(oldCanonical); err != nil {
			e.log.Warn("tracking: failed to remove stale shard entry on rekey", zap.Error(err))
		}
		if err := e.index.Insert(newCanonical, t.Position()); err != nil {
			return err
		}
	}

	z := measurementVector(t.Origin, o)
	lag := e.lagTicks(o, now)

	var updateErr error
	if lag == 0 {
		updateErr = t.Estimator.Update(z, o.Confidence, e.cfg.MeasurementNoiseRBase)
	} else {
		updateErr = t.Estimator.UpdateOOSM(lag, z, o.Confidence, e.cfg.MeasurementNoiseRBase)
	}
	if updateErr != nil {
		e.log.Warn("tracking: time engine update failed", zap.Error(updateErr), zap.String("track", t.CanonicalID.String()))
	}

	t.Age = 0
	t.TicksSinceFreshUpdate = 0

	if err := e.index.Move(t.CanonicalID, t.Position()); err != nil {
		return err
	}
	if e.metrics != nil && e.metrics.NIS != nil {
		e.metrics.NIS.Observe(t.Estimator.LastNIS())
	}
	return nil
}

// FuseRemote folds a remote agent's track summary into the matching
// local track via Covariance Intersection (spec §4.5.3), looked up by
// its canonical id localID. Returns ErrUnknownTrack if no live track
// has that canonical id.
func (e *Engine) FuseRemote(localID ids.EntityID, remoteState []float64, remoteP *mat.Dense) error {
	t, ok := e.tracks[localID]
	if !ok {
		return ErrUnknownTrack
	}

	xA := mat.NewVecDense(len(t.Estimator.State()), t.Estimator.State())
	PA := t.Estimator.Covariance()

	xF, PF, err := fuseCovarianceIntersection(xA, PA, mat.NewVecDense(len(remoteState), remoteState), remoteP)
	if err != nil {
		// Fusion failure retains the prior track state untouched (spec
		// §4.5.3 "must not corrupt the track").
		return err
	}

	flat := make([]float64, xF.Len())
	for i := 0; i < xF.Len(); i++ {
		flat[i] = xF.AtVec(i)
	}
	if err := t.Estimator.SetCurrentBlock(flat, PF); err != nil {
		return err
	}
	return e.index.Move(t.CanonicalID, t.Position())
}

// Tick advances every live track by one predict step, ages it, and
// prunes tracks that exceed max age or diverge (spec §4.5.5
// "Lifecycle and aging").
func (e *Engine) Tick() {
	var toRemove []ids.EntityID

	for id, t := range e.tracks {
		t.Estimator.Predict(e.cfg.TickDT.Seconds())
		t.Age++
		t.TicksSinceFreshUpdate++

		if err := e.index.Move(id, t.Position()); err != nil {
			e.log.Warn("tracking: failed to move track in spatial index", zap.Error(err))
		}

		if t.Age > e.cfg.MaxAgeTicks {
			toRemove = append(toRemove, id)
			continue
		}
		if t.TraceP() > DivergenceTraceThreshold {
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toRemove {
		delete(e.tracks, id)
		if err := e.index.Remove(id); err != nil {
			e.log.Warn("tracking: failed to remove expired track from spatial index", zap.Error(err))
		}
	}

	if e.metrics != nil && e.metrics.TrackCount != nil {
		e.metrics.TrackCount.Set(float64(len(e.tracks)))
	}
}

// ShouldGossip reports whether a track should be included in this
// tick's outbound gossip batch (spec §4.5.6): a track this agent did
// not mint may be suppressed unless it has gone suppressionTicks
// without a fresh update. A non-positive SuppressionTicks disables
// suppression entirely.
func (e *Engine) ShouldGossip(t *Track) bool {
	if e.cfg.SuppressionTicks <= 0 {
		return true
	}
	if t.MintedLocally {
		return true
	}
	return t.TicksSinceFreshUpdate >= e.cfg.SuppressionTicks
}

// GhostScore computes the diagnostic [0,1] ghost score for t against
// the current track set (spec §4.5.7).
func (e *Engine) GhostScore(t *Track) float64 {
	minD2 := math.Inf(1)
	for _, other := range e.tracks {
		if other == t || other.Class != t.Class {
			continue
		}
		pseudo := Observation{
			Position:   other.Position(),
			Velocity:   other.Velocity(),
			Class:      other.Class,
			Confidence: 1.0,
		}
		d2, err := t.mahalanobisTo(pseudo, e.cfg.MeasurementNoiseRBase)
		if err != nil {
			continue
		}
		if d2 < minD2 {
			minD2 = d2
		}
	}

	score := ghostScore(t.TraceP(), DivergenceTraceThreshold, minD2, e.cfg.GateChi2, t.ObservedIDs.Len())
	if e.metrics != nil && e.metrics.GhostScore != nil {
		e.metrics.GhostScore.Set(score)
	}
	return score
}
