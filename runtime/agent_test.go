package runtime_test

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/galanafai/godview/config"
	"github.com/galanafai/godview/env"
	"github.com/galanafai/godview/gossip"
	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/runtime"
	"github.com/galanafai/godview/spatial"
	"github.com/galanafai/godview/tracking"
	"github.com/galanafai/godview/trust"
)

type testAgent struct {
	agent    *runtime.Agent
	tracking *tracking.Engine
	manual   *env.Manual
}

func buildAgent(t *testing.T, rootPriv ed25519.PrivateKey, rootKey ids.PublicKey, wall time.Time, seed string) testAgent {
	t.Helper()

	cfg, err := config.NewBuilder().FromPreset("local").Build()
	require.NoError(t, err)

	manual := env.NewManual(wall, []byte(seed))

	pub, priv, err := manual.DeriveKeypair([]byte("agent"))
	require.NoError(t, err)
	var agentKey ids.PublicKey
	copy(agentKey[:], pub)

	trustEngine, err := trust.NewEngine(trust.DefaultConfig(rootKey), priv, agentKey, nil)
	require.NoError(t, err)

	index := spatial.NewIndex(cfg.H3Resolution, cfg.CellEdge, cfg.EdgeHalo)
	index.SetHexEdgeMeters(cfg.H3EdgeMeters())

	trackingEngine := tracking.NewEngine(cfg, index, nil, nil)
	gossipEngine := gossip.NewEngine(trustEngine, manual.Transport(), nil)

	token := trust.IssueToken(rootPriv, agentKey, []trust.Rule{
		{Operations: []string{"*"}},
	}, time.Hour, wall)

	agent := runtime.New(cfg, manual, trustEngine, index, trackingEngine, gossipEngine, nil, nil, token)

	return testAgent{agent: agent, tracking: trackingEngine, manual: manual}
}

// forward delivers every packet src's transport has sent into dst's
// transport, modeling one hop of network delivery between two agents
// sharing no transport of their own (spec §1 "concrete transport
// libraries" are an external collaborator; this is the minimal
// in-memory stand-in the Agent Runtime's own tests need).
func forward(src, dst *env.Manual) {
	for _, p := range src.Sent() {
		dst.Deliver(p)
	}
}

// TestTwoAgentsConvergeOnHighlanderCanonicalID drives spec §8 scenario
// 3 end to end through the Agent Runtime: two agents independently
// mint tracks for the same physical object; once each agent's tick
// ingests the other's gossiped observation, both converge on the
// minimum canonical id and observed_ids contains both originals.
func TestTwoAgentsConvergeOnHighlanderCanonicalID(t *testing.T) {
	require := require.New(t)

	rootPub, rootPriv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	var rootKey ids.PublicKey
	copy(rootKey[:], rootPub)

	wall := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	alpha := buildAgent(t, rootPriv, rootKey, wall, "alpha-seed")
	beta := buildAgent(t, rootPriv, rootKey, wall, "beta-seed")

	pos := spatial.Position{Lat: 37.7749, Lon: -122.4194, Alt: 0}
	require.NoError(alpha.agent.SubscribeAt(pos))
	require.NoError(beta.agent.SubscribeAt(pos))

	idAlpha := ids.NewEntityID()
	idBeta := ids.NewEntityID()
	want := idAlpha
	if ids.Less(idBeta, idAlpha) {
		want = idBeta
	}

	require.NoError(alpha.tracking.Ingest(tracking.Observation{
		EntityID:   idAlpha,
		Position:   pos,
		Velocity:   [3]float64{1, 0, 0},
		Class:      1,
		Timestamp:  wall,
		Confidence: 0.9,
	}, wall))
	require.NoError(beta.tracking.Ingest(tracking.Observation{
		EntityID:   idBeta,
		Position:   pos,
		Velocity:   [3]float64{1, 0, 0},
		Class:      1,
		Timestamp:  wall,
		Confidence: 0.9,
	}, wall))

	ctx := context.Background()

	// Round 1: each agent gossips its own freshly-minted track.
	alpha.agent.Tick(ctx)
	beta.agent.Tick(ctx)

	forward(alpha.manual, beta.manual)
	forward(beta.manual, alpha.manual)

	// Round 2: each agent ingests the other's observation, associates
	// it against its own local track (same position, same class,
	// D² within gate), and runs Highlander identity consensus.
	alpha.agent.Tick(ctx)
	beta.agent.Tick(ctx)

	alphaTrack, ok := alpha.tracking.Track(want)
	require.True(ok, "alpha should hold a track keyed by the min canonical id")
	require.True(alphaTrack.ObservedIDs.Contains(idAlpha))
	require.True(alphaTrack.ObservedIDs.Contains(idBeta))

	betaTrack, ok := beta.tracking.Track(want)
	require.True(ok, "beta should hold a track keyed by the min canonical id")
	require.True(betaTrack.ObservedIDs.Contains(idAlpha))
	require.True(betaTrack.ObservedIDs.Contains(idBeta))
}

// TestSubscribeAtSucceedsAndIsRepeatable checks that SubscribeAt
// (which subscribes to the shard and its 1-ring, spec §6) succeeds for
// a position and succeeds again when repeated; which topics end up
// registered is not asserted here.
func TestSubscribeAtSucceedsAndIsRepeatable(t *testing.T) {
	require := require.New(t)

	rootPub, rootPriv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	var rootKey ids.PublicKey
	copy(rootKey[:], rootPub)

	wall := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := buildAgent(t, rootPriv, rootKey, wall, "solo-seed")

	pos := spatial.Position{Lat: 37.7749, Lon: -122.4194, Alt: 0}
	require.NoError(a.agent.SubscribeAt(pos))
	// SubscribeAt must not error on a second call for the same
	// position; the manual transport accepts repeat subscriptions
	// idempotently.
	require.NoError(a.agent.SubscribeAt(pos))
}
