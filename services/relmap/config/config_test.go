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
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relmap/services/relmap/ast"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(ast.DefaultMaxFileSize), cfg.Extract.MaxFileSize)
	assert.Equal(t, "nested", cfg.Extract.MethodScope)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract:
  method_scope: direct
batch:
  workers: 3
  debounce: 1s
server:
  port: 9000
storage:
  path: /tmp/relmap-db
log:
  level: debug
  json: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "direct", cfg.Extract.MethodScope)
	assert.Equal(t, int64(ast.DefaultMaxFileSize), cfg.Extract.MaxFileSize, "absent keys keep defaults")
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, time.Second, cfg.Batch.Debounce)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Storage.Enabled())
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  workers: 3\n"), 0o644))
	t.Setenv("RELMAP_WORKERS", "7")
	t.Setenv("RELMAP_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("RELMAP_PORT", "eighty")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELMAP_PORT")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"method scope", func(c *Config) { c.Extract.MethodScope = "deep" }},
		{"max file size", func(c *Config) { c.Extract.MaxFileSize = 0 }},
		{"extension without dot", func(c *Config) { c.Extract.Extensions = []string{"py"} }},
		{"no extensions", func(c *Config) { c.Extract.Extensions = nil }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"burst", func(c *Config) { c.Server.RateBurst = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Server.Port = 8123
	require.NoError(t, Write(path, &cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.Server.Port)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", JSON: true}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "info"}.NewLogger(&buf).Info("shown")
	assert.True(t, strings.Contains(buf.String(), "msg=shown"))
}
