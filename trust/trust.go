// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package trust is the decentralized trust layer (spec §4.2): per-
// packet Ed25519 signatures, capability-token policy checks, replay/
// clock-skew protection, and a persistent revocation set.
package trust

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/trust/store"
)

// SignedPacket is the wire envelope (spec §3 SignedPacket, §6 "Signed
// envelope"): payload bytes, a signature over those exact bytes, and
// the signer's 32-byte public key.
type SignedPacket struct {
	Payload   []byte        `json:"payload"`
	Signature []byte        `json:"signature"`
	PublicKey ids.PublicKey `json:"public_key"`
}

// Config is the Trust Engine's static configuration: the root
// authority key tokens are ultimately verified against, and the
// replay/skew window (spec §4.2, default 10s total).
type Config struct {
	RootKey ids.PublicKey
	MaxPast time.Duration
	MaxFuture time.Duration
}

// DefaultConfig splits the spec's 10s default skew window evenly.
func DefaultConfig(rootKey ids.PublicKey) Config {
	return Config{RootKey: rootKey, MaxPast: 5 * time.Second, MaxFuture: 5 * time.Second}
}

// Engine is one agent's Trust Engine instance: its own signing key,
// the root authority it verifies tokens against, and the revocation
// set (cached in memory, persisted via store.Store).
type Engine struct {
	cfg  Config
	priv ed25519.PrivateKey
	pub  ids.PublicKey

	store   *store.Store
	revoked map[ids.PublicKey]struct{}
}

// NewEngine builds an Engine, hydrating the revocation set from db
// before accepting any inbound packet (spec §4.2 "On startup the
// revocation set is hydrated before accepting any inbound packet").
func NewEngine(cfg Config, priv ed25519.PrivateKey, pub ids.PublicKey, db *store.Store) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		priv:    priv,
		pub:     pub,
		store:   db,
		revoked: make(map[ids.PublicKey]struct{}),
	}
	if db != nil {
		records, err := db.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("trust: hydrate revocation set: %w", err)
		}
		for k := range records {
			e.revoked[k] = struct{}{}
		}
	}
	return e, nil
}

// PublicKey returns this engine's own signing identity.
func (e *Engine) PublicKey() ids.PublicKey {
	return e.pub
}

// Sign produces a SignedPacket over payload using the agent's private
// key (spec §4.2 "sign(payload) -> signed_packet").
func (e *Engine) Sign(payload []byte) SignedPacket {
	sig := ed25519.Sign(e.priv, payload)
	return SignedPacket{Payload: payload, Signature: sig, PublicKey: e.pub}
}

// Verify checks a signed packet end to end: signature validity,
// signer not revoked, token valid under the root authority and not
// expired, and token permits operation on resourceKey (spec §4.2
// "verify(signed_packet, resource_key, operation)"). timestamp is the
// packet's embedded wall-clock time, checked against now for replay
// protection (spec §4.2 "Replay protection").
func (e *Engine) Verify(p SignedPacket, token Token, resourceKey, operation string, timestamp, now time.Time) error {
	if !ed25519.Verify(p.PublicKey[:], p.Payload, p.Signature) {
		return ErrInvalidSignature
	}
	if e.IsRevoked(p.PublicKey) {
		return ErrRevokedKey
	}
	if now.Sub(timestamp) > e.cfg.MaxPast || timestamp.Sub(now) > e.cfg.MaxFuture {
		return ErrClockSkew
	}

	holder, err := verifyChain(token, e.cfg.RootKey, resourceKey, operation, now)
	if err != nil {
		return err
	}
	if !holder.Equal(p.PublicKey) {
		return ErrInvalidToken
	}
	return nil
}

// IssueToken mints a token rooted at this engine's own key, treating
// it as the root authority. Only meaningful when this engine holds the
// authority's private key.
func (e *Engine) IssueToken(holder ids.PublicKey, rules []Rule, validFor time.Duration, now time.Time) Token {
	return IssueToken(e.priv, holder, rules, validFor, now)
}

// Attenuate narrows token for newHolder, signed by this engine's own
// key (spec §4.2 "attenuate(token, extra_rules) — chained signing").
func (e *Engine) Attenuate(token Token, newHolder ids.PublicKey, extraRules []Rule, validFor time.Duration, now time.Time) Token {
	return Attenuate(token, e.priv, newHolder, extraRules, validFor, now)
}

// Revoke adds key to the revocation set, persisting it atomically
// before returning (spec §4.2 "adds to revocation set and persists
// atomically").
func (e *Engine) Revoke(key ids.PublicKey, now time.Time) error {
	if e.store != nil {
		if err := e.store.Put(key, store.Record{RevokerID: e.pub, Timestamp: now}); err != nil {
			return fmt.Errorf("trust: persist revocation: %w", err)
		}
	}
	e.revoked[key] = struct{}{}
	return nil
}

// IsRevoked is a constant-time set lookup (spec §4.2 "is_revoked(public_key)
// — constant-time set lookup").
func (e *Engine) IsRevoked(key ids.PublicKey) bool {
	_, ok := e.revoked[key]
	return ok
}
