package trust_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/trust"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*trust.Engine, ed25519.PrivateKey, ids.PublicKey) {
	t.Helper()
	rootPub, rootPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	agentPub, agentPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var rootKey, agentKey ids.PublicKey
	copy(rootKey[:], rootPub)
	copy(agentKey[:], agentPub)

	e, err := trust.NewEngine(trust.DefaultConfig(rootKey), agentPriv, agentKey, nil)
	require.NoError(t, err)
	return e, rootPriv, rootKey
}

func TestSignVerifyRoundTrip(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	now := time.Now()
	token := trust.IssueToken(rootPriv, e.PublicKey(), []trust.Rule{
		{ShardPrefixes: []string{"8a2a"}, Operations: []string{"publish"}},
	}, time.Hour, now)

	packet := e.Sign([]byte("hello world"))
	err := e.Verify(packet, token, "8a2a1072b59ffff", "publish", now, now)
	require.NoError(err)
}

func TestVerifyRejectsBitFlippedPayload(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	now := time.Now()
	token := trust.IssueToken(rootPriv, e.PublicKey(), []trust.Rule{
		{Operations: []string{"*"}},
	}, time.Hour, now)

	packet := e.Sign([]byte("hello world"))
	packet.Payload[0] ^= 0xFF

	err := e.Verify(packet, token, "anything", "publish", now, now)
	require.ErrorIs(err, trust.ErrInvalidSignature)
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	now := time.Now()
	token := trust.IssueToken(rootPriv, e.PublicKey(), []trust.Rule{
		{Operations: []string{"*"}},
	}, time.Hour, now)
	packet := e.Sign([]byte("payload"))

	require.NoError(e.Revoke(e.PublicKey(), now))
	require.True(e.IsRevoked(e.PublicKey()))

	err := e.Verify(packet, token, "x", "publish", now, now)
	require.ErrorIs(err, trust.ErrRevokedKey)
}

func TestVerifyRejectsPolicyDenied(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	now := time.Now()
	token := trust.IssueToken(rootPriv, e.PublicKey(), []trust.Rule{
		{ShardPrefixes: []string{"8a2a"}, Operations: []string{"publish"}},
	}, time.Hour, now)
	packet := e.Sign([]byte("payload"))

	err := e.Verify(packet, token, "8b9900000000", "publish", now, now)
	require.ErrorIs(err, trust.ErrPolicyDenied)
}

func TestVerifyRejectsClockSkew(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	now := time.Now()
	token := trust.IssueToken(rootPriv, e.PublicKey(), []trust.Rule{
		{Operations: []string{"*"}},
	}, time.Hour, now)
	packet := e.Sign([]byte("payload"))

	staleTimestamp := now.Add(-20 * time.Second)
	err := e.Verify(packet, token, "x", "publish", staleTimestamp, now)
	require.ErrorIs(err, trust.ErrClockSkew)
}

func TestAttenuateNarrowsChain(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	delegatePub, delegatePriv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	var delegateKey ids.PublicKey
	copy(delegateKey[:], delegatePub)

	now := time.Now()
	root := trust.IssueToken(rootPriv, delegateKey, []trust.Rule{
		{ShardPrefixes: []string{"8a"}, Operations: []string{"*"}},
	}, time.Hour, now)

	attenuated := trust.Attenuate(root, delegatePriv, e.PublicKey(), []trust.Rule{
		{ShardPrefixes: []string{"8a2a"}, Operations: []string{"publish"}},
	}, time.Hour, now)

	packet := e.Sign([]byte("payload"))
	require.NoError(e.Verify(packet, attenuated, "8a2a10000000", "publish", now, now))
	require.ErrorIs(e.Verify(packet, attenuated, "8b00000000", "publish", now, now), trust.ErrPolicyDenied)
}

// TestAttenuateCannotEscalatePrivilege exercises the case
// TestAttenuateNarrowsChain never does: an intermediate holder signs
// an attenuation that is *broader* than what it was granted. Policy
// evaluation must require every link in the chain to permit the
// operation — not just the final one — or this would let a dishonest
// delegate mint itself permissions its own parent never held.
func TestAttenuateCannotEscalatePrivilege(t *testing.T) {
	require := require.New(t)
	e, rootPriv, _ := newEngine(t)

	delegatePub, delegatePriv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	var delegateKey ids.PublicKey
	copy(delegateKey[:], delegatePub)

	now := time.Now()
	root := trust.IssueToken(rootPriv, delegateKey, []trust.Rule{
		{ShardPrefixes: []string{"8a2a"}, Operations: []string{"publish"}},
	}, time.Hour, now)

	// The delegate was only ever granted "8a2a"/"publish", but signs
	// itself a wildcard attenuation anyway.
	escalated := trust.Attenuate(root, delegatePriv, e.PublicKey(), []trust.Rule{
		{Operations: []string{"*"}},
	}, time.Hour, now)

	packet := e.Sign([]byte("payload"))

	// A resource within the root grant still passes, since the final
	// link's wildcard is also permitted by the root link.
	require.NoError(e.Verify(packet, escalated, "8a2a10000000", "publish", now, now))

	// A resource outside the root grant must still be denied, even
	// though the final link alone would have permitted it.
	require.ErrorIs(e.Verify(packet, escalated, "8b00000000", "publish", now, now), trust.ErrPolicyDenied)
}
