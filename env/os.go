// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package env

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// OS is the production Environment: real OS clock, HKDF-derived
// keypairs seeded from a single master secret, and goroutine-based
// Spawn.
type OS struct {
	start     time.Time
	masterKey []byte
	transport Transport

	wg sync.WaitGroup
}

var _ Environment = (*OS)(nil)

// NewOS builds an OS environment. masterKey seeds DeriveKeypair via
// HKDF (golang.org/x/crypto/hkdf) so repeated calls with the same
// seedExtension are reproducible for a given agent identity, while
// different agents (different masterKey) never collide.
func NewOS(masterKey []byte, transport Transport) *OS {
	return &OS{
		start:     time.Now(),
		masterKey: masterKey,
		transport: transport,
	}
}

func (o *OS) Now() time.Duration {
	return time.Since(o.start)
}

func (o *OS) WallTime() time.Time {
	return time.Now()
}

func (o *OS) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *OS) Spawn(task func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		task(context.Background())
	}()
}

// Wait blocks until every Spawned task returns. Used by graceful
// shutdown (spec §5 "Cancellation").
func (o *OS) Wait() {
	o.wg.Wait()
}

func (o *OS) DeriveKeypair(seedExtension []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	r := hkdf.New(sha256.New, o.masterKey, nil, seedExtension)
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

func (o *OS) Transport() Transport {
	return o.transport
}
