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

package types

import (
	"fmt"
	"time"
)

// Config is the full utunguard configuration (utunguard.toml)
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	DNS     DNSConfig     `toml:"dns"`
	Log     LogConfig     `toml:"log"`
	Journal JournalConfig `toml:"journal"`
}

// EngineConfig describes how the proxy engine is launched
type EngineConfig struct {
	Binary    string   `toml:"binary" validate:"required"`
	DataDir   string   `toml:"data_dir" validate:"required"` // passed as -d <data_dir>
	Args      []string `toml:"args"`                         // appended after -d <data_dir>
	KillGrace Duration `toml:"kill_grace" validate:"gt=0"`   // wait for output to close after a kill
}

// DNSConfig controls the DNS override
type DNSConfig struct {
	Trigger        string   `toml:"trigger" validate:"required"`
	Activate       string   `toml:"activate" validate:"required,ip"`
	Restore        string   `toml:"restore" validate:"required,dns_value"`
	CommandTimeout Duration `toml:"command_timeout" validate:"gt=0"`
	ProbeDomain    string   `toml:"probe_domain" validate:"omitempty,fqdn"` // empty disables the probe
	ProbeTimeout   Duration `toml:"probe_timeout" validate:"gt=0"`
}

// LogConfig represents configuration for the logging system
type LogConfig struct {
	Level       string `toml:"level" validate:"oneof=debug info warn error"`
	Format      string `toml:"format" validate:"oneof=text json"`
	File        string `toml:"file"` // optional, appended to
	Color       bool   `toml:"color"`
	Passthrough bool   `toml:"passthrough"` // emit unstructured engine lines at info
}

// JournalConfig controls the SQLite log journal
type JournalConfig struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path" validate:"required_if=Enabled true"`
	MaxEntries int    `toml:"max_entries" validate:"gte=0"` // pruned at startup, 0 keeps everything
}

// Duration is a time.Duration read from strings like "5s" or "1m30s"
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}
