// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timeengine

import "errors"

// Error taxonomy from spec §4.4/§7.
var (
	ErrStaleMeasurement   = errors.New("timeengine: measurement lag exceeds the configured history depth")
	ErrSingularInnovation = errors.New("timeengine: innovation covariance is not invertible; covariance was reset")
	ErrInvalidDimensions  = errors.New("timeengine: measurement shape does not match the configured state dimension")
)
