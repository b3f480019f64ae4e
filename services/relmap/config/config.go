// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads relmap configuration.
//
// Values come from, in increasing precedence: DefaultConfig, a YAML file,
// and RELMAP_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	"github.com/AleutianAI/relmap/services/relmap/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	Extract   ExtractConfig    `yaml:"extract"`
	Batch     BatchConfig      `yaml:"batch"`
	Server    ServerConfig     `yaml:"server"`
	Storage   StorageConfig    `yaml:"storage"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Log       LogConfig        `yaml:"log"`
}

// ExtractConfig controls parsing and extraction.
type ExtractConfig struct {
	// MaxFileSize rejects larger files, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`

	// MethodScope is "nested" or "direct".
	MethodScope string `yaml:"method_scope" validate:"oneof=nested direct"`

	// Extensions selects files during discovery.
	Extensions []string `yaml:"extensions" validate:"min=1,dive,startswith=."`

	// SkipDirs are directory names discovery never enters.
	SkipDirs []string `yaml:"skip_dirs"`
}

// BatchConfig controls parallel extraction.
type BatchConfig struct {
	// Workers bounds concurrent extractions. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	// Debounce is the quiet period watch mode waits for.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// RateLimit is extraction requests per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=1"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	Debug bool `yaml:"debug"`
}

// StorageConfig controls result persistence.
type StorageConfig struct {
	// Path is the Badger directory. Empty disables persistence unless
	// InMemory is set.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Enabled reports whether results should be stored.
func (s StorageConfig) Enabled() bool {
	return s.InMemory || s.Path != ""
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// SlogLevel returns the configured level. Unknown names map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text or JSON logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Extract: ExtractConfig{
			MaxFileSize: ast.DefaultMaxFileSize,
			MethodScope: ast.MethodScopeNested.String(),
			Extensions:  []string{".py", ".pyi"},
			SkipDirs:    []string{".git", "__pycache__", ".venv", "venv", ".tox", "node_modules", "site-packages"},
		},
		Batch: BatchConfig{
			Workers:  0,
			Debounce: 200 * time.Millisecond,
		},
		Server: ServerConfig{
			Port:         12218,
			RateLimit:    50,
			RateBurst:    100,
			MaxBodyBytes: ast.DefaultMaxFileSize + 64*1024,
		},
		Telemetry: telemetry.DefaultConfig(),
		Log: LogConfig{
			Level: "info",
		},
	}
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
//
// Description:
//
//	An empty path skips the file. A path that does not exist is not an
//	error; it falls back to defaults so a first run works without setup.
//	Keys absent from the file keep their default value.
//
// Outputs:
//   - *Config: The validated configuration.
//   - error: Read, YAML, environment or ErrInvalidConfig failures.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write stores cfg as YAML at path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv overrides cfg from RELMAP_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	num("RELMAP_MAX_FILE_SIZE", func(v string) (err error) {
		cfg.Extract.MaxFileSize, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	str("RELMAP_METHOD_SCOPE", &cfg.Extract.MethodScope)
	num("RELMAP_WORKERS", func(v string) (err error) {
		cfg.Batch.Workers, err = strconv.Atoi(v)
		return err
	})
	num("RELMAP_PORT", func(v string) (err error) {
		cfg.Server.Port, err = strconv.Atoi(v)
		return err
	})
	num("RELMAP_RATE_LIMIT", func(v string) (err error) {
		cfg.Server.RateLimit, err = strconv.ParseFloat(v, 64)
		return err
	})
	str("RELMAP_STORAGE_PATH", &cfg.Storage.Path)
	str("RELMAP_LOG_LEVEL", &cfg.Log.Level)
	num("RELMAP_LOG_JSON", func(v string) (err error) {
		cfg.Log.JSON, err = strconv.ParseBool(v)
		return err
	})

	return errors.Join(errs...)
}
