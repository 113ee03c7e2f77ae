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

// Package cmd implements the utunguard CLI using cobra.
// It provides the root command structure and version management.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the application version string.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "utunguard",
	Short: "utunguard - mihomo supervisor with DNS takeover",
	Long: `utunguard runs the mihomo proxy engine, relays its log output and points
the active network service's DNS at the engine once its tunnel adapter is up.
DNS is restored when the engine stops.

Without a subcommand utunguard behaves like "utunguard run".`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRun,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("utunguard v%s (built: %s)\n", Version, BuildTime))

	addGlobalFlags(rootCmd.PersistentFlags())
	addRunFlags(rootCmd.Flags())
}

// addGlobalFlags registers flags shared by every command
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Config file (default $UTUNGUARD_CONFIG, then ./utunguard.toml)")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-format", "", "Log format: text, json")
	fs.String("log-file", "", "Also append logs to this file")
	fs.Bool("no-color", false, "Disable colored console output")
}

// Execute runs the root command and handles any errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exitWithError()
	}
}

// SetVersion updates the version and build time for display in help and version output.
func SetVersion(version, buildTime string) {
	Version = version
	BuildTime = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("utunguard v%s (built: %s)\n", version, buildTime))
}

// exitWithError is a helper function that exits with code 1.
// It can be overridden in tests to avoid actual exit.
var exitWithError = func() {
	os.Exit(1)
}
