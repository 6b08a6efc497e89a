package env_test

import (
	"context"
	"testing"
	"time"

	"github.com/galanafai/godview/env"
	"github.com/stretchr/testify/require"
)

func TestManualClockAdvancesOnlyExplicitly(t *testing.T) {
	require := require.New(t)

	m := env.NewManual(time.Unix(1000, 0), []byte("seed"))
	require.Equal(time.Duration(0), m.Now())

	m.Advance(33 * time.Millisecond)
	require.Equal(33*time.Millisecond, m.Now())
	require.Equal(time.Unix(1000, 0).Add(33*time.Millisecond), m.WallTime())
}

func TestManualDeriveKeypairIsDeterministic(t *testing.T) {
	require := require.New(t)

	m := env.NewManual(time.Now(), []byte("agent-seed"))
	pub1, priv1, err := m.DeriveKeypair([]byte("agent-alpha"))
	require.NoError(err)
	pub2, priv2, err := m.DeriveKeypair([]byte("agent-alpha"))
	require.NoError(err)

	require.Equal(pub1, pub2)
	require.Equal(priv1, priv2)

	pub3, _, err := m.DeriveKeypair([]byte("agent-beta"))
	require.NoError(err)
	require.NotEqual(pub1, pub3)
}

func TestManualTransportDeliverAndSend(t *testing.T) {
	require := require.New(t)

	m := env.NewManual(time.Now(), []byte("seed"))
	transport := m.Transport()
	require.NoError(transport.Subscribe("godview/hazards/abc"))

	m.Deliver(env.Packet{Topic: "godview/hazards/abc", Payload: []byte("hello")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := transport.Recv(ctx)
	require.NoError(err)
	require.Equal("godview/hazards/abc", p.Topic)

	require.NoError(transport.Send(context.Background(), "godview/hazards/abc", []byte("world")))
	sent := m.Sent()
	require.Len(sent, 1)
	require.Equal([]byte("world"), sent[0].Payload)
}
