// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package env abstracts every nondeterministic capability the core
// consumes (spec §4.1/§9 "Polymorphism"): clock, sleep, spawn, key
// derivation, and transport. Hot-path code is written against the
// Environment interface and never names a concrete provider, so the
// same engines run unmodified against the OS or a deterministic test
// double.
package env

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/galanafai/godview/ids"
)

// Packet is one message exchanged over transport: a topic plus opaque,
// already-serialized payload bytes (in practice a gossip envelope that
// wraps a trust.SignedPacket). env only needs to move bytes, so it
// doesn't import the trust package, which avoids a cycle.
type Packet struct {
	Topic   string
	Payload []byte
}

// Transport is the pub/sub capability the Agent Runtime and Trust
// Engine depend on (spec §4.1, §6 "Topic layout").
type Transport interface {
	// Send publishes payload under topic. Returns a transport error
	// on failure; the caller continues (spec §5 "Timeouts").
	Send(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers interest in topic (and, by the Space
	// Engine's 1-ring convention, its neighbors); Recv only yields
	// packets for subscribed topics.
	Subscribe(topic string) error

	// Recv yields the next packet, or ctx.Err() / a shutdown
	// sentinel error when the transport is closed.
	Recv(ctx context.Context) (Packet, error)

	// Close releases transport resources.
	Close() error
}

// Environment is the capability set described in spec §4.1 and §9.
type Environment interface {
	// Now returns a monotonic duration since an arbitrary epoch, used
	// for scheduling (spec §4.1).
	Now() time.Duration

	// WallTime returns the timestamp used in packet headers (spec
	// §4.1); it may differ from Now.
	WallTime() time.Time

	// Sleep cooperatively suspends for d, or returns early if ctx is
	// canceled.
	Sleep(ctx context.Context, d time.Duration) error

	// Spawn launches task on the same logical executor (spec §4.1,
	// §5 "auxiliary goroutines ... never touch engine state
	// directly").
	Spawn(task func(ctx context.Context))

	// DeriveKeypair deterministically derives an Ed25519 keypair from
	// the environment's internal RNG extended by seedExtension (spec
	// §4.1/§4.2).
	DeriveKeypair(seedExtension []byte) (ed25519.PublicKey, ed25519.PrivateKey, error)

	// Transport returns the environment's pub/sub transport.
	Transport() Transport
}

// EntityIDFromSeed is a convenience used by tests and CLI bootstrap to
// turn a derived public key into a stable EntityID-shaped seed; it is
// not part of the Environment contract.
func EntityIDFromSeed(pub ed25519.PublicKey) ids.EntityID {
	var b [16]byte
	copy(b[:], pub)
	id, _ := ids.EntityIDFromBytes(b[:])
	return id
}
