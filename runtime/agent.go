// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime is the Agent Runtime (spec §4.6): it holds the four
// engines — Trust, Space, Time (embedded inside Tracking's tracks),
// Tracking — as pointers handed in by the composition root, which
// shares one spatial.Index between the Agent and the Tracking Engine,
// and it drives the fixed-rate tick loop, converting
// inbound packets into Tracking Engine operations and composing
// bounded outbound gossip. Control flow is single-threaded cooperative
// per agent (spec §5): Tick is the only function that ever mutates
// engine state, and it never suspends — the only suspension point in
// Run's loop is Sleep, matching spec §5's "only sleep and transport
// recv may suspend."
package runtime

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/galanafai/godview/config"
	"github.com/galanafai/godview/env"
	"github.com/galanafai/godview/gossip"
	"github.com/galanafai/godview/log"
	"github.com/galanafai/godview/metrics"
	"github.com/galanafai/godview/spatial"
	"github.com/galanafai/godview/tracking"
	"github.com/galanafai/godview/trust"
)

// DefaultInboundBudgetPerTick bounds how many queued inbound batches
// one tick will drain from the inbound queue (spec §4.6 step 1 "Drain
// incoming packets up to a per-tick budget").
const DefaultInboundBudgetPerTick = 64

// DefaultInboundQueueCapacity bounds the inbound queue itself — the
// backpressure bound proper (spec §4.6 "if the inbound queue exceeds a
// bound, the oldest packets are dropped (policy is telemetered)"). Sized
// well above the per-tick processing budget so a single slow tick
// doesn't immediately start shedding load.
const DefaultInboundQueueCapacity = 4 * DefaultInboundBudgetPerTick

// Agent composes one mesh participant's runtime (spec §4.6). It is
// constructed over already-built engines — wiring the trust store,
// spatial index resolution, and estimator configuration is the
// composition root's job (cmd/godview-agent, or a test harness).
type Agent struct {
	cfg config.Config
	env env.Environment

	trust      *trust.Engine
	spatialIdx *spatial.Index
	tracking   *tracking.Engine
	gossip     *gossip.Engine
	inbound    *gossip.InboundQueue

	logger  log.Logger
	metrics *metrics.Registry

	outboundToken trust.Token
	inboundBudget int
}

// New builds an Agent. outboundToken is the capability token attached
// to every packet this agent publishes (spec §6 "Every inbound
// envelope is accompanied by a token chain").
func New(
	cfg config.Config,
	environment env.Environment,
	trustEngine *trust.Engine,
	index *spatial.Index,
	trackingEngine *tracking.Engine,
	gossipEngine *gossip.Engine,
	reg *metrics.Registry,
	logger log.Logger,
	outboundToken trust.Token,
) *Agent {
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Agent{
		cfg:           cfg,
		env:           environment,
		trust:         trustEngine,
		spatialIdx:    index,
		tracking:      trackingEngine,
		gossip:        gossipEngine,
		inbound:       gossip.NewInboundQueue(DefaultInboundQueueCapacity, reg),
		logger:        logger,
		metrics:       reg,
		outboundToken: outboundToken,
		inboundBudget: DefaultInboundBudgetPerTick,
	}
}

// SubscribeAt subscribes the agent's transport to the shard containing
// p and its 1-ring (spec §6 "Subscribers subscribe to their current
// shard and its 1-ring"). Call before Run, and again whenever the
// agent's own carrier moves into a new shard.
func (a *Agent) SubscribeAt(p spatial.Position) error {
	key, err := a.spatialIdx.ShardKeyFor(p)
	if err != nil {
		return err
	}
	neighbors, err := a.spatialIdx.Neighbors(key)
	if err != nil {
		return err
	}
	keys := make([]string, len(neighbors))
	for i, n := range neighbors {
		keys[i] = n.String()
	}
	return a.gossip.SubscribeShards(keys)
}

// Run drives the fixed-rate tick loop (spec §4.6) until ctx is
// canceled, returning nil on a clean shutdown (spec §5 "Cancellation":
// drains the current tick, then returns — there is no separate
// revocation-flush step here since trust.Engine.Revoke already
// persists synchronously before returning, per spec §4.2).
func (a *Agent) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		a.Tick(ctx)

		if err := a.env.Sleep(ctx, a.cfg.TickDT); err != nil {
			return nil
		}
	}
}

// Tick runs one deterministic pass of the loop (spec §4.6): drain
// queued inbound batches into the Tracking Engine, predict/age/prune
// every track, and compose bounded outbound gossip. Exported so a test
// or deterministic simulation harness can single-step the agent
// instead of driving it through Run's real-time loop.
func (a *Agent) Tick(ctx context.Context) {
	now := a.env.WallTime()
	a.drainInbound(ctx, now)
	a.tracking.Tick()
	a.sendGossip(ctx, now)
}

// drainInbound pulls every already-buffered inbound batch off transport
// into the bounded inbound queue, then hands up to the per-tick budget
// of queued batches to the Tracking Engine (spec §4.6 step 1 "Drain
// incoming packets up to a per-tick budget", §4.6 "Backpressure: if the
// inbound queue exceeds a bound, the oldest packets are dropped").
// Splitting pull-from-transport from process-from-queue is what makes
// the queue's drop-oldest bound the actual backpressure point: a tick
// that falls behind sheds the oldest queued batches instead of the
// transport's own recv loop silently doing it with no telemetry.
func (a *Agent) drainInbound(ctx context.Context, now time.Time) {
	a.pullTransport(ctx, now)

	for _, in := range a.inbound.Drain(a.inboundBudget) {
		a.ingestBatch(in, now)
	}
}

// pullTransport drains every batch transport already has buffered
// without ever blocking the tick (spec §5: engine operations are
// synchronous and bounded). Each attempt uses an already-expired
// context so gossip.Engine.Receive's call into env.Transport.Recv
// returns immediately — either a queued packet, or a context-expiry
// error signaling nothing is left to pull this tick — rather than
// suspending the tick loop itself.
func (a *Agent) pullTransport(ctx context.Context, now time.Time) {
	tryCtx, cancel := context.WithDeadline(ctx, time.Unix(0, 0))
	defer cancel()

	for {
		in, err := a.gossip.Receive(tryCtx, now)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return // nothing left buffered; stop pulling this tick
			}
			continue // trust/decode failure, already counted; keep pulling
		}
		a.inbound.Push(in)
	}
}

func (a *Agent) ingestBatch(in gossip.Inbound, now time.Time) {
	for _, wp := range in.Packets {
		obs := observationFromWire(wp)
		if err := a.tracking.Ingest(obs, now); err != nil {
			a.logger.Warn("runtime: ingest failed",
				zap.String("entity_id", obs.EntityID.String()),
				zap.Error(err),
			)
		}
	}
}

// sendGossip groups gossip-eligible tracks by their current shard and
// publishes one bounded batch per shard topic (spec §4.5.6, §6 "Topic
// layout"). A shard whose eligible track count exceeds
// gossip.MaxBatchSize carries MaxBatchSize of them this tick, taken in
// Tracks() map iteration order (unspecified, so the subset can differ
// from tick to tick); the others are not sent this tick.
func (a *Agent) sendGossip(ctx context.Context, now time.Time) {
	batches := make(map[string][]gossip.WirePacket)

	for _, t := range a.tracking.Tracks() {
		if !a.tracking.ShouldGossip(t) {
			continue
		}
		wp, shardKey, err := a.wirePacketFor(t, now)
		if err != nil {
			a.logger.Warn("runtime: failed to shard-key track for gossip",
				zap.String("canonical_id", t.CanonicalID.String()),
				zap.Error(err),
			)
			continue
		}
		if len(batches[shardKey]) >= gossip.MaxBatchSize {
			continue
		}
		batches[shardKey] = append(batches[shardKey], wp)
	}

	for shardKey, packets := range batches {
		if err := a.gossip.Publish(ctx, shardKey, packets, a.outboundToken, now); err != nil {
			a.logger.Warn("runtime: outbound gossip publish failed",
				zap.String("shard", shardKey),
				zap.Error(err),
			)
		}
	}
}

func (a *Agent) wirePacketFor(t *tracking.Track, now time.Time) (gossip.WirePacket, string, error) {
	pos := t.Position()
	key, err := a.spatialIdx.ShardKeyFor(pos)
	if err != nil {
		return gossip.WirePacket{}, "", err
	}
	vel := t.Velocity()

	wp := gossip.WirePacket{
		EntityID:    t.CanonicalID,
		Position:    [3]float64{pos.Lat, pos.Lon, pos.Alt},
		Velocity:    vel,
		ClassID:     uint8(t.Class),
		Timestamp:   float64(now.UnixNano()) / 1e9,
		Confidence:  outboundConfidence(t.TraceP()),
		PublisherID: a.trust.PublicKey(),
	}
	return wp, key.String(), nil
}

// outboundConfidence derives a republished track's confidence from its
// own covariance trace relative to the divergence threshold — a
// high-trace (less certain) track is republished with lower
// confidence, which in turn widens the measurement noise a receiving
// peer's Tracking Engine derives from it (spec §4.4/§4.5.1 "R is
// derived from the observation's confidence").
func outboundConfidence(traceP float64) float64 {
	c := 1.0 - traceP/tracking.DivergenceTraceThreshold
	if c < 0.05 {
		return 0.05
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

func observationFromWire(wp gossip.WirePacket) tracking.Observation {
	return tracking.Observation{
		EntityID:   wp.EntityID,
		Position:   spatial.Position{Lat: wp.Position[0], Lon: wp.Position[1], Alt: wp.Position[2]},
		Velocity:   wp.Velocity,
		Class:      tracking.ClassID(wp.ClassID),
		Timestamp:  unixSecondsToTime(wp.Timestamp),
		Confidence: wp.Confidence,
		Publisher:  wp.PublisherID,
	}
}

func unixSecondsToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9)).UTC()
}
