// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store is the Trust Engine's durable revocation set (spec
// §3 RevocationSet, §4.2 "Persistence", §6 "an append-mostly key-value
// file"). Its Reader/Writer/Batch shape mirrors the teacher's own
// crypto/database interface; it is backed by
// github.com/cockroachdb/pebble, the pack's embedded-KV library.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/galanafai/godview/ids"
)

// ErrNotFound is returned when a key has no revocation record.
var ErrNotFound = errors.New("store: key not found")

// Record is the opaque revocation metadata stored per key (spec §6:
// "at least: revoker id, timestamp").
type Record struct {
	RevokerID ids.PublicKey `json:"revoker_id"`
	Timestamp time.Time     `json:"timestamp"`
}

// Store is the revocation set's persistence layer: hydrate on
// startup, atomic write-then-fsync on Revoke (spec §4.2).
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put persists rec under key and fsyncs before returning, satisfying
// "flushed to a durable key-value store before revoke returns" (spec
// §4.2).
func (s *Store) Put(key ids.PublicKey, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Set(key[:], raw, pebble.Sync)
}

// Get returns the revocation record for key, or ErrNotFound.
func (s *Store) Get(key ids.PublicKey) (Record, error) {
	raw, closer, err := s.db.Get(key[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// LoadAll hydrates every revoked key, for startup (spec §4.2: "On
// startup the revocation set is hydrated before accepting any inbound
// packet").
func (s *Store) LoadAll() (map[ids.PublicKey]Record, error) {
	out := make(map[ids.PublicKey]Record)

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var key ids.PublicKey
		k := iter.Key()
		if len(k) != len(key) {
			continue
		}
		copy(key[:], k)

		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		out[key] = rec
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
