// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package env

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// ErrManualClosed is returned by Manual's transport once Close has
// been called (spec §5 "in-flight recvs return a shutdown sentinel").
var ErrManualClosed = errors.New("env: manual transport closed")

// Manual is a deterministic Environment test double: the clock only
// advances when Advance is called, and transport is in-memory
// channels. It is not a full simulation harness (that is an external
// collaborator, spec §1), just enough determinism to unit test the
// engines without wall-clock flakiness.
type Manual struct {
	mu       sync.Mutex
	now      time.Duration
	wall     time.Time
	masterKey []byte

	transport *manualTransport
}

var _ Environment = (*Manual)(nil)

// NewManual builds a Manual environment with its clock starting at
// the given wall time and Now() at zero.
func NewManual(wall time.Time, masterKey []byte) *Manual {
	return &Manual{
		wall:      wall,
		masterKey: masterKey,
		transport: newManualTransport(),
	}
}

// Advance moves both Now() and WallTime() forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	m.wall = m.wall.Add(d)
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) WallTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall
}

// Sleep advances the clock immediately by d rather than actually
// blocking — tests drive time explicitly.
func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	m.Advance(d)
	return nil
}

func (m *Manual) Spawn(task func(ctx context.Context)) {
	task(context.Background())
}

func (m *Manual) DeriveKeypair(seedExtension []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	r := hkdf.New(sha256.New, m.masterKey, nil, seedExtension)
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

func (m *Manual) Transport() Transport {
	return m.transport
}

// Deliver injects a packet as if it arrived from a peer, for tests
// driving the Agent Runtime's ingest path. A packet whose topic was
// never subscribed is dropped, as Transport.Subscribe describes.
func (m *Manual) Deliver(p Packet) {
	m.transport.deliver(p)
}

// Sent returns every packet published via Send, in order, for test
// assertions on outbound gossip.
func (m *Manual) Sent() []Packet {
	return m.transport.sent()
}

type manualTransport struct {
	mu     sync.Mutex
	closed bool
	inbox  chan Packet
	out    []Packet
	topics map[string]bool
}

func newManualTransport() *manualTransport {
	return &manualTransport{
		inbox:  make(chan Packet, 1024),
		topics: make(map[string]bool),
	}
}

func (t *manualTransport) Send(_ context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrManualClosed
	}
	t.out = append(t.out, Packet{Topic: topic, Payload: payload})
	return nil
}

func (t *manualTransport) Subscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics[topic] = true
	return nil
}

func (t *manualTransport) Recv(ctx context.Context) (Packet, error) {
	// A non-blocking first attempt always prefers an already-queued
	// packet over an already-expired ctx: a caller polling with a
	// pre-canceled context (runtime.Agent's per-tick drain) must see
	// every queued packet, not race Go's pseudo-random select choice
	// between two simultaneously-ready cases.
	select {
	case p, ok := <-t.inbox:
		if !ok {
			return Packet{}, ErrManualClosed
		}
		return p, nil
	default:
	}

	select {
	case p, ok := <-t.inbox:
		if !ok {
			return Packet{}, ErrManualClosed
		}
		return p, nil
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	}
}

func (t *manualTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.inbox)
	}
	return nil
}

func (t *manualTransport) deliver(p Packet) {
	t.mu.Lock()
	closed := t.closed
	subscribed := t.topics[p.Topic]
	t.mu.Unlock()
	if closed || !subscribed {
		return
	}
	t.inbox <- p
}

func (t *manualTransport) sent() []Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Packet, len(t.out))
	copy(out, t.out)
	return out
}
