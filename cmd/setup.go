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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/journal"
	"github.com/we-are-mono/utunguard/state"
	"github.com/we-are-mono/utunguard/types"
)

// loadConfig resolves the config file, applies changed flags on top and
// validates the result.
func loadConfig(cmd *cobra.Command) (*types.Config, error) {
	flagPath, _ := cmd.Flags().GetString("config")

	cfg, err := state.Load(state.ResolvePath(flagPath))
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(cmd.Flags(), cfg)

	if err := state.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies every flag the user set onto cfg
func applyFlagOverrides(fs *pflag.FlagSet, cfg *types.Config) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}

	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("log-file", &cfg.Log.File)
	if fs.Changed("no-color") {
		noColor, _ := fs.GetBool("no-color")
		cfg.Log.Color = !noColor
	}

	str("engine", &cfg.Engine.Binary)
	str("data-dir", &cfg.Engine.DataDir)
	str("trigger", &cfg.DNS.Trigger)
	str("activate-dns", &cfg.DNS.Activate)
	str("restore-dns", &cfg.DNS.Restore)
	str("probe-domain", &cfg.DNS.ProbeDomain)
	if fs.Changed("passthrough") {
		cfg.Log.Passthrough, _ = fs.GetBool("passthrough")
	}
	if fs.Changed("journal") {
		cfg.Journal.Path, _ = fs.GetString("journal")
		cfg.Journal.Enabled = cfg.Journal.Path != ""
	}
}

// initLogging sets up the global logger: console on stderr, an optional
// log file and the optional journal. The returned func flushes and closes
// all of them.
func initLogging(cfg *types.Config, stderr io.Writer) (func(), error) {
	config := logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Component: "utunguard",
	}

	backends := []logger.Backend{
		logger.NewConsoleBackend(stderr, cfg.Log.Format, cfg.Log.Color),
	}

	if cfg.Log.File != "" {
		fileBackend, err := logger.NewFileBackend(cfg.Log.File, cfg.Log.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file backend: %w", err)
		}
		backends = append(backends, fileBackend)
	}

	var emitter *logger.Emitter
	var j *journal.Journal
	if cfg.Journal.Enabled {
		var err error
		j, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			for _, b := range backends {
				_ = b.Close()
			}
			return nil, err
		}
		emitter = logger.NewEmitter()
		emitter.Subscribe(j)
	}

	logger.Init(config, backends, emitter)

	if j != nil && cfg.Journal.MaxEntries > 0 {
		if n, err := j.Prune(context.Background(), cfg.Journal.MaxEntries); err != nil {
			logger.Warn("Failed to prune journal", logger.Err(err))
		} else if n > 0 {
			logger.Debug("Pruned journal", logger.Field{Key: "removed", Value: n})
		}
	}

	fields := []logger.Field{
		{Key: "level", Value: cfg.Log.Level},
		{Key: "format", Value: cfg.Log.Format},
	}
	if cfg.Log.File != "" {
		fields = append(fields, logger.Field{Key: "file", Value: cfg.Log.File})
	}
	if j != nil {
		fields = append(fields,
			logger.Field{Key: "journal", Value: j.Path()},
			logger.Field{Key: "session", Value: j.SessionID()})
	}
	logger.Debug("Logging initialized", fields...)

	return func() {
		if j != nil {
			if em := logger.GetEmitter(); em != nil {
				em.Unsubscribe(j)
			}
			if n := j.Dropped(); n > 0 {
				logger.Warn("Journal queue was full, entries were not recorded",
					logger.Field{Key: "dropped", Value: n})
			}
		}

		if err := logger.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to close log backends: %v\n", err)
		}
		if j == nil {
			return
		}
		if err := j.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Journal: %v\n", err)
		}
	}, nil
}

// setup loads the configuration and initializes logging for a command
func setup(cmd *cobra.Command) (*types.Config, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	closeLogging, err := initLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLogging, nil
}
