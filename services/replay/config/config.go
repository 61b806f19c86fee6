// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads replayprobe settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/replayprobe/pkg/logging"
	"github.com/AleutianAI/replayprobe/services/replay/telemetry"
)

// DefaultFile is read when no path is given and it exists.
const DefaultFile = "replayprobe.yaml"

// Environment overrides.
const (
	EnvDispatch   = "REPLAYPROBE_DISPATCH"
	EnvRecording  = "REPLAYPROBE_RECORDING"
	EnvHistoryDir = "REPLAYPROBE_HISTORY_DIR"
	EnvLogLevel   = "REPLAYPROBE_LOG_LEVEL"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("wsurl", validateWebSocketURL); err != nil {
		panic(fmt.Sprintf("failed to register wsurl validator: %v", err))
	}
}

// validateWebSocketURL accepts absolute ws:// and wss:// URLs.
func validateWebSocketURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
}

// Config is the full settings tree.
type Config struct {
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Exploration ExplorationConfig `yaml:"exploration"`
	History     HistoryConfig     `yaml:"history"`
	Telemetry   telemetry.Config  `yaml:"telemetry"`
	Log         logging.Config    `yaml:"log"`
}

// DispatchConfig locates the replay backend.
type DispatchConfig struct {
	Address           string        `yaml:"address" validate:"required,wsurl"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" validate:"gte=0"`
	CommandsPerSecond float64       `yaml:"commands_per_second" validate:"gte=0"`
	MaxMessageBytes   int64         `yaml:"max_message_bytes" validate:"gte=0"`
}

// ExplorationConfig controls the explorations.
type ExplorationConfig struct {
	RecordingID     string        `yaml:"recording_id"`
	LabelURL        string        `yaml:"label_url" validate:"omitempty,url"`
	Seed            uint64        `yaml:"seed"`
	Runs            int           `yaml:"runs" validate:"gte=1"`
	TeardownTimeout time.Duration `yaml:"teardown_timeout" validate:"gte=0"`
}

// HistoryConfig controls where reports are kept.
type HistoryConfig struct {
	Dir      string `yaml:"dir" validate:"required_without_all=InMemory Disabled"`
	InMemory bool   `yaml:"in_memory"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Dispatch: DispatchConfig{
			Address:          "wss://dispatch.replay.io",
			HandshakeTimeout: 30 * time.Second,
			MaxMessageBytes:  64 << 20,
		},
		Exploration: ExplorationConfig{
			Runs:            1,
			TeardownTimeout: 30 * time.Second,
		},
		History: HistoryConfig{
			Dir: "~/.replayprobe/history",
		},
		Telemetry: telemetry.DefaultConfig(),
		Log: logging.Config{
			Level:  "info",
			Format: logging.FormatAuto,
		},
	}
}

// Load reads settings from path, then applies environment overrides.
//
// Description:
//
//	An empty path reads DefaultFile when it exists and uses the defaults
//	otherwise. A non-empty path must exist. The result is not validated;
//	call Validate once command-line flags have been applied.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(lookup)
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDispatch); ok && v != "" {
		c.Dispatch.Address = v
	}
	if v, ok := lookup(EnvRecording); ok && v != "" {
		c.Exploration.RecordingID = v
	}
	if v, ok := lookup(EnvHistoryDir); ok && v != "" {
		c.History.Dir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// HistoryDir returns the history directory with ~ expanded.
func (c *Config) HistoryDir() string {
	dir := c.History.Dir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
