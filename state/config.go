// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

// Package state loads, validates and saves the utunguard configuration.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/we-are-mono/utunguard/daemon"
	"github.com/we-are-mono/utunguard/system"
	"github.com/we-are-mono/utunguard/types"
	"github.com/we-are-mono/utunguard/validation"
)

const (
	// EnvConfigPath names the config file when --config is not given
	EnvConfigPath = "UTUNGUARD_CONFIG"
	// DefaultConfigFile is picked up from the working directory if present
	DefaultConfigFile = "utunguard.toml"
)

// DefaultEngineBinary is the engine executable expected next to utunguard
func DefaultEngineBinary() string {
	return "./mihomo-" + runtime.GOOS + "-" + runtime.GOARCH
}

// DefaultConfig returns the configuration used when no file sets a value
func DefaultConfig() *types.Config {
	return &types.Config{
		Engine: types.EngineConfig{
			Binary:    DefaultEngineBinary(),
			DataDir:   ".",
			KillGrace: types.Duration(daemon.DefaultKillGrace),
		},
		DNS: types.DNSConfig{
			Trigger:        daemon.DefaultTrigger,
			Activate:       daemon.DefaultActivateDNS,
			Restore:        system.RestoreValue,
			CommandTimeout: types.Duration(daemon.DefaultCommandTimeout),
			ProbeTimeout:   types.Duration(system.DefaultProbeTimeout),
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
		Journal: types.JournalConfig{
			Path: "utunguard.db",
		},
	}
}

// ResolvePath picks the config file: the flag value, then $UTUNGUARD_CONFIG,
// then ./utunguard.toml if it exists. Empty means run on defaults.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Load reads the TOML file at path over the defaults. An empty path
// returns the defaults. Unknown keys are rejected.
func Load(path string) (*types.Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals TOML into cfg with line and column in syntax errors
func Decode(data []byte, cfg *types.Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	err := dec.Decode(cfg)
	if err == nil {
		return nil
	}

	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Errorf("line %d, column %d: %w", row, col, err)
	}

	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		keys := make([]string, 0, len(strictErr.Errors))
		for _, e := range strictErr.Errors {
			keys = append(keys, strings.Join(e.Key(), "."))
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	return err
}

// Validate checks tag constraints and the rules that span fields
func Validate(cfg *types.Config) error {
	c := validation.NewCollector()
	c.Merge(validation.Struct(cfg))

	if cfg.DNS.Trigger != "" && strings.TrimSpace(cfg.DNS.Trigger) == "" {
		c.Add("dns.trigger", "must not be blank")
	}
	if cfg.DNS.Activate != "" && cfg.DNS.Activate == cfg.DNS.Restore {
		c.Add("dns.restore", "must differ from dns.activate")
	}

	return c.Err()
}

// Encode renders cfg as TOML
func Encode(cfg *types.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes cfg to path atomically, backing up an existing file first
func Save(path string, cfg *types.Config) error {
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	data, err := Encode(cfg)
	if err != nil {
		return err
	}

	// Write atomically (temp file + rename)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0600)
}
