// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trust

import "errors"

// Error taxonomy from spec §4.2/§7. These are all per-packet,
// recoverable: the caller drops the packet and increments a counter,
// it never aborts the agent.
var (
	ErrInvalidSignature = errors.New("trust: invalid signature")
	ErrRevokedKey       = errors.New("trust: publisher key is revoked")
	ErrMissingToken     = errors.New("trust: no capability token presented")
	ErrInvalidToken     = errors.New("trust: capability token chain is invalid")
	ErrExpiredToken     = errors.New("trust: capability token is outside its validity window")
	ErrPolicyDenied     = errors.New("trust: token does not permit this operation on this resource")
	ErrClockSkew        = errors.New("trust: packet timestamp is outside the accepted skew window")
)
