// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
listen_addr: ":9100"
workspace: /tmp/sheets
staged_capacity: 5
prune_boundary: exclusive
watch_forks: true
log_level: debug
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9100", cfg.ListenAddr)
		assert.Equal(t, "/tmp/sheets", cfg.Workspace)
		assert.Equal(t, 5, cfg.StagedCapacity)
		assert.Equal(t, "exclusive", cfg.PruneBoundary)
		assert.True(t, cfg.WatchForks)
		assert.Equal(t, "debug", cfg.LogLevel)
		// Untouched fields keep their defaults.
		assert.Equal(t, ":9090", cfg.MetricsAddr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "listen_addr: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("oversized file rejected", func(t *testing.T) {
		big := make([]byte, MaxYAMLFileSize+1)
		for i := range big {
			big[i] = '#'
		}
		_, err := Load(writeConfig(t, string(big)))
		assert.ErrorContains(t, err, "exceeds")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty workspace", func(c *Config) { c.Workspace = "" }, "workspace"},
		{"zero staged capacity", func(c *Config) { c.StagedCapacity = 0 }, "staged_capacity"},
		{"bad prune boundary", func(c *Config) { c.PruneBoundary = "sometimes" }, "prune_boundary"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.validate()
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().validate())
	})
}
