// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package safemath provides overflow-guarded integer arithmetic and
// divide-by-zero-guarded float arithmetic used by the hot path, which
// per spec §5 must never panic.
package safemath

import (
	"errors"
	"math"
)

var (
	ErrOverflow  = errors.New("safemath: overflow")
	ErrUnderflow = errors.New("safemath: underflow")
)

// Add64 returns a + b with overflow detection.
func Add64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub64 returns a - b with underflow detection.
func Sub64(a, b uint64) (uint64, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Min returns the minimum of two ints.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two ints.
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SafeDiv divides a by b, returning fallback instead of Inf/NaN when b
// is zero. Used by Covariance Intersection's trace-heuristic weight
// (spec §4.5.3), which may never propagate a NaN into the hot path.
func SafeDiv(a, b, fallback float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return fallback
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fallback
	}
	return r
}
