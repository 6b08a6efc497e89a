// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log defines the structured-logging capability the agent
// consumes. Hot-path code is written against the Logger interface and
// never names a concrete provider, mirroring the Environment
// Interface's own capability-set contract (spec §4.1/§9).
package log

import "go.uber.org/zap"

// Logger is the structured logger contract used throughout the agent.
// Fields follow zap's key-value convention (zap.String, zap.Error, ...).
type Logger interface {
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
}
