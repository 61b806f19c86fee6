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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replayprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
dispatch:
  address: ws://localhost:8000
  handshake_timeout: 5s
  commands_per_second: 20
exploration:
  recording_id: rec-1
  label_url: https://example.test/page
  seed: 7
  runs: 3
history:
  in_memory: true
telemetry:
  metric_exporter: prometheus
  metrics_addr: ":9464"
log:
  level: debug
  format: json
`)
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://localhost:8000", cfg.Dispatch.Address)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.HandshakeTimeout)
	assert.InDelta(t, 20.0, cfg.Dispatch.CommandsPerSecond, 0.001)
	assert.Equal(t, "rec-1", cfg.Exploration.RecordingID)
	assert.Equal(t, uint64(7), cfg.Exploration.Seed)
	assert.Equal(t, 3, cfg.Exploration.Runs)
	assert.True(t, cfg.History.InMemory)
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, int64(64<<20), cfg.Dispatch.MaxMessageBytes)
	assert.Equal(t, 30*time.Second, cfg.Exploration.TeardownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "dispatch:\n  address: ws://from-file:1\n")
	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		EnvDispatch:   "wss://from-env",
		EnvRecording:  "rec-env",
		EnvHistoryDir: "/tmp/h",
		EnvLogLevel:   "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, "wss://from-env", cfg.Dispatch.Address)
	assert.Equal(t, "rec-env", cfg.Exploration.RecordingID)
	assert.Equal(t, "/tmp/h", cfg.HistoryDir())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	assert.Error(t, err)
}

func TestLoad_EmptyPathWithoutDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadWithEnv("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "dispatch: [unclosed")
	_, err := LoadWithEnv(path, noEnv)
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http dispatch", func(c *Config) { c.Dispatch.Address = "http://x" }},
		{"empty dispatch", func(c *Config) { c.Dispatch.Address = "" }},
		{"negative rate", func(c *Config) { c.Dispatch.CommandsPerSecond = -1 }},
		{"zero runs", func(c *Config) { c.Exploration.Runs = 0 }},
		{"bad label url", func(c *Config) { c.Exploration.LabelURL = "not a url" }},
		{"history without dir", func(c *Config) { c.History.Dir = "" }},
		{"unknown exporter", func(c *Config) { c.Telemetry.TraceExporter = "zipkin" }},
		{"bad metrics addr", func(c *Config) { c.Telemetry.MetricsAddr = "nine" }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_HistoryDirOptionalWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.History.Dir = ""
	cfg.History.Disabled = true
	assert.NoError(t, cfg.Validate())
}

func TestHistoryDir_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	cfg := Default()
	assert.Equal(t, filepath.Join(home, ".replayprobe", "history"), cfg.HistoryDir())
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "handshake_timeout: 30s")

	path := writeFile(t, string(data))
	back, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, cfg, *back)
}
