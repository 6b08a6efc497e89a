// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spatial

import "errors"

// Error taxonomy from spec §4.3/§7.
var (
	ErrInvalidPosition = errors.New("spatial: position is not finite or is outside earth")
	ErrUnknownEntity   = errors.New("spatial: unknown entity handle")
)
