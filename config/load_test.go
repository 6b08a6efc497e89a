// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/galanafai/godview/config"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "godview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverridesOnlyNamedFields(t *testing.T) {
	require := require.New(t)

	path := writeYAML(t, `
tick_dt_ms: 50
h3_resolution: 11
`)

	c, err := config.LoadFile(path)
	require.NoError(err)
	require.Equal(50*time.Millisecond, c.TickDT)
	require.Equal(11, c.H3Resolution)

	def := config.Default()
	require.Equal(def.LagDepth, c.LagDepth)
	require.Equal(def.StateDim, c.StateDim)
	require.Equal(def.ProcessNoiseQ, c.ProcessNoiseQ)
}

func TestLoadFileOverPresetStartsFromNamedPreset(t *testing.T) {
	require := require.New(t)

	path := writeYAML(t, `
suppression_ticks: 5
`)

	c, err := config.LoadFileOverPreset(path, config.Urban())
	require.NoError(err)
	require.Equal(5, c.SuppressionTicks)
	require.Equal(config.Urban().H3Resolution, c.H3Resolution)
	require.Equal(config.Urban().CellEdge, c.CellEdge)
}

func TestLoadFileRejectsInvalidResult(t *testing.T) {
	require := require.New(t)

	path := writeYAML(t, `
tick_dt_ms: 0
`)

	_, err := config.LoadFile(path)
	require.Error(err)
}

func TestLoadFileMissingPath(t *testing.T) {
	require := require.New(t)

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}
