// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/trust"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBatchRoundTrip(t *testing.T) {
	require := require.New(t)

	sentAt := time.Unix(1_700_000_000, 500_000_000).UTC()
	packets := []WirePacket{
		{
			EntityID:    ids.NewEntityID(),
			Position:    [3]float64{37.7749, -122.4194, 12},
			Velocity:    [3]float64{1, 2, 3},
			ClassID:     1,
			Timestamp:   float64(sentAt.Unix()),
			Confidence:  0.8,
			PublisherID: ids.PublicKey{0xAA},
		},
	}

	payload, err := encodeBatch(packets, sentAt)
	require.NoError(err)

	b, err := decodeBatch(payload)
	require.NoError(err)
	require.Equal(packets, b.Packets)
	// sentAtTime round-trips to within float64-seconds precision.
	require.WithinDuration(sentAt, b.sentAtTime(), time.Millisecond)
}

func TestDecodeBatchRejectsMalformedPayload(t *testing.T) {
	_, err := decodeBatch([]byte("not json"))
	require.ErrorIs(t, err, ErrEnvelopeMalformed)
}

// TestEnvelopeJSONRoundTrip exercises the wire-level Envelope (spec §6
// "Signed envelope"): a SignedPacket plus its capability token chain
// must survive a JSON marshal/unmarshal unchanged, since that is
// exactly what crosses env.Transport between Publish and Receive.
func TestEnvelopeJSONRoundTrip(t *testing.T) {
	require := require.New(t)

	rootPub, rootPriv, err := generateKeypair()
	require.NoError(err)
	_ = rootPriv

	// A fixed UTC instant: JSON carries neither time.Now()'s monotonic
	// reading nor its Local zone, both of which require.Equal compares.
	token := trust.IssueToken(rootPriv, rootPub, []trust.Rule{
		{ShardPrefixes: []string{"8a2a"}, Operations: []string{OperationPublish}},
	}, time.Hour, time.Unix(1_700_000_000, 0).UTC())

	envelope := Envelope{
		Signed: trust.SignedPacket{
			Payload:   []byte(`{"packets":[]}`),
			Signature: []byte{1, 2, 3},
			PublicKey: rootPub,
		},
		Token: token,
	}

	raw, err := json.Marshal(envelope)
	require.NoError(err)

	var decoded Envelope
	require.NoError(json.Unmarshal(raw, &decoded))
	require.Equal(envelope, decoded)
}

func TestTopicAndResourceKeyForShard(t *testing.T) {
	require := require.New(t)

	require.Equal("godview/hazards/8a2a1072b59ffff", TopicForShard("8a2a1072b59ffff"))
	require.Equal("8a2a1072b59ffff", ResourceKeyForShard("8a2a1072b59ffff"))
}

func TestShardKeyFromTopicRoundTripsWithTopicForShard(t *testing.T) {
	require := require.New(t)

	shardKey := "8a2a1072b59ffff"
	got, err := shardKeyFromTopic(TopicForShard(shardKey))
	require.NoError(err)
	require.Equal(shardKey, got)
}

func TestShardKeyFromTopicRejectsMissingPrefix(t *testing.T) {
	require := require.New(t)

	_, err := shardKeyFromTopic("not/a/hazard/topic")
	require.Error(err)

	_, err = shardKeyFromTopic(ShardTopicPrefix)
	require.Error(err)
}

func TestTrustDropReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{trust.ErrInvalidSignature, "invalid_signature"},
		{trust.ErrRevokedKey, "revoked_key"},
		{trust.ErrMissingToken, "missing_token"},
		{trust.ErrInvalidToken, "invalid_token"},
		{trust.ErrExpiredToken, "expired_token"},
		{trust.ErrPolicyDenied, "policy_denied"},
		{trust.ErrClockSkew, "clock_skew"},
		{ErrEnvelopeMalformed, "unknown"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, trustDropReason(c.err))
	}
}

func generateKeypair() (ids.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return ids.PublicKey{}, nil, err
	}
	var pk ids.PublicKey
	copy(pk[:], pub)
	return pk, priv, nil
}
