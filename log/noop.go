// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import "go.uber.org/zap"

// noOp discards everything. Used by tests and the deterministic
// environment double so assertions aren't drowned in log lines.
type noOp struct{}

// NewNoOp returns a Logger that discards everything.
func NewNoOp() Logger { return noOp{} }

func (noOp) With(fields ...zap.Field) Logger          { return noOp{} }
func (noOp) Debug(msg string, fields ...zap.Field)    {}
func (noOp) Info(msg string, fields ...zap.Field)     {}
func (noOp) Warn(msg string, fields ...zap.Field)     {}
func (noOp) Error(msg string, fields ...zap.Field)    {}
func (noOp) Sync() error                              { return nil }
