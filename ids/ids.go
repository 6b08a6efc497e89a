// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ids defines the identifier and key types shared across the
// agent: entity identifiers, track identifiers, and publisher public
// keys, plus the total order Highlander identity consensus is built on.
package ids

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// EntityID is the 128-bit stable identifier minted by the first
// observer of an object (spec §3: "entity_id is assigned by the first
// observer; it is opaque; it is NEVER mutated").
type EntityID uuid.UUID

// Nil is the zero-value EntityID.
var Nil = EntityID(uuid.Nil)

// NewEntityID mints a fresh random identifier.
func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

// EntityIDFromBytes parses a 16-byte slice into an EntityID.
func EntityIDFromBytes(b []byte) (EntityID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return Nil, fmt.Errorf("ids: %w", err)
	}
	return EntityID(u), nil
}

func (id EntityID) String() string {
	return uuid.UUID(id).String()
}

// Bytes returns the 16 raw bytes of the identifier.
func (id EntityID) Bytes() []byte {
	b := uuid.UUID(id)
	return b[:]
}

func (id EntityID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + uuid.UUID(id).String() + `"`), nil
}

func (id *EntityID) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("ids: malformed entity id JSON")
	}
	var u uuid.UUID
	if err := u.UnmarshalText(b[1 : len(b)-1]); err != nil {
		return err
	}
	*id = EntityID(u)
	return nil
}

// Less defines the total order Highlander's min-CRDT merges against:
// unsigned big-endian byte comparison of the raw 16 bytes.
func Less(a, b EntityID) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// Min returns the lesser of a set of identifiers under Less. Panics if
// ids is empty — callers always have at least the canonical id itself.
func Min(ids []EntityID) EntityID {
	m := ids[0]
	for _, id := range ids[1:] {
		if Less(id, m) {
			m = id
		}
	}
	return m
}

// PublicKey is a 32-byte Ed25519 publisher identity (spec §3
// SignedPacket: "the signer's public key (32 bytes)").
type PublicKey [32]byte

func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

func (k PublicKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(k[:]) + `"`), nil
}

func (k *PublicKey) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("ids: malformed public key JSON")
	}
	decoded, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return fmt.Errorf("ids: %w", err)
	}
	if len(decoded) != len(k) {
		return fmt.Errorf("ids: public key must be %d bytes, got %d", len(k), len(decoded))
	}
	copy(k[:], decoded)
	return nil
}

// Equal reports whether two public keys are identical.
func (k PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(k[:], other[:])
}
