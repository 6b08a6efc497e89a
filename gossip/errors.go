// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import "errors"

var (
	// ErrEnvelopeMalformed is returned when an inbound payload cannot
	// be decoded as an Envelope before trust verification even runs.
	ErrEnvelopeMalformed = errors.New("gossip: malformed envelope")

	// ErrBatchTooLarge rejects an outbound batch over the configured
	// cap rather than silently truncating it.
	ErrBatchTooLarge = errors.New("gossip: batch exceeds configured max size")
)
