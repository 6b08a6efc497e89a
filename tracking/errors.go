// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracking

import "errors"

// Error taxonomy from spec §4.5/§7.
var (
	ErrNoAssociationMatrixInversion = errors.New("tracking: fusion matrix inversion failed; prior state retained")
	ErrDivergentTrack               = errors.New("tracking: track covariance exceeded divergence threshold")
	ErrUnknownTrack                 = errors.New("tracking: no track with that canonical id")
)
