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
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/we-are-mono/utunguard/daemon"
	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/system"
	"github.com/we-are-mono/utunguard/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine under supervision",
	Long: `Starts the engine with "-d <data_dir>", re-emits its log records and switches
DNS to the engine's resolver when the tunnel adapter comes up. SIGINT and
SIGTERM terminate the engine; DNS is restored on every way out.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
}

// addRunFlags registers the supervisor flags on fs
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("engine", "", "Engine binary (default ./mihomo-<os>-<arch>)")
	fs.String("data-dir", "", "Engine data directory, passed as -d")
	fs.String("trigger", "", "Log substring announcing the tunnel adapter")
	fs.String("activate-dns", "", "DNS server set while the tunnel is up")
	fs.String("restore-dns", "", `DNS value restored on exit ("empty" clears manual servers)`)
	fs.String("probe-domain", "", "Query this domain against the override resolver after switching")
	fs.Bool("passthrough", false, "Show unstructured engine output at info level")
	fs.String("journal", "", "Record logs in this SQLite file")
	fs.String("pid-file", "", "Refuse to start while the process in this PID file is alive")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, closeLogging, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLogging()

	pidFile, _ := cmd.Flags().GetString("pid-file")
	if pidFile != "" {
		if err := checkExistingInstance(pidFile); err != nil {
			return err
		}
		if err := writePIDFile(pidFile); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer os.Remove(pidFile)
	}

	runner := system.NewDefaultCommandRunner()
	sup := newSupervisor(cfg, runner)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	defer close(done)
	go forwardSignals(sigChan, sup, done)

	res, err := sup.Run(commandContext(cmd))
	if err != nil {
		logger.Error("Supervisor failed", logger.Err(err))
		return err
	}

	logger.Info("utunguard stopped",
		logger.Field{Key: "engine_exit", Value: res.ExitCode},
		logger.Field{Key: "lines", Value: res.Lines},
		logger.Field{Key: "triggers", Value: res.Triggers})
	return nil
}

type interrupter interface {
	Interrupt()
}

// forwardSignals interrupts the supervisor for every signal until done
func forwardSignals(sigChan <-chan os.Signal, target interrupter, done <-chan struct{}) {
	for {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal", logger.Field{Key: "signal", Value: sig.String()})
			target.Interrupt()
		case <-done:
			return
		}
	}
}

// newSupervisor wires the DNS controller, interface resolver and prober
// for cfg into a supervisor
func newSupervisor(cfg *types.Config, runner system.CommandRunner) *daemon.Supervisor {
	resolver := system.NewResolver(
		system.NewDefaultInterfaceSource(runner),
		logger.With(logger.Field{Key: "component", Value: "netif"}))
	controller := system.NewDNSController(resolver, runner,
		logger.With(logger.Field{Key: "component", Value: "dns"}))

	opts := buildOptions(cfg)
	if cfg.DNS.ProbeDomain != "" {
		opts.Prober = system.NewDNSProber(cfg.DNS.ProbeDomain, cfg.DNS.ProbeTimeout.Std())
	}
	return daemon.New(controller, opts)
}

// buildOptions maps the configuration onto supervisor options
func buildOptions(cfg *types.Config) daemon.Options {
	args := append([]string{"-d", cfg.Engine.DataDir}, cfg.Engine.Args...)

	return daemon.Options{
		Binary:         cfg.Engine.Binary,
		Args:           args,
		Trigger:        cfg.DNS.Trigger,
		ActivateDNS:    cfg.DNS.Activate,
		RestoreDNS:     cfg.DNS.Restore,
		KillGrace:      cfg.Engine.KillGrace.Std(),
		CommandTimeout: cfg.DNS.CommandTimeout.Std(),
		Passthrough:    cfg.Log.Passthrough,
	}
}

// checkExistingInstance fails if the PID file names a live process
func checkExistingInstance(pidFile string) error {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("PID file exists but cannot be read: %w (remove %s manually if utunguard is not running)", err, pidFile)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return fmt.Errorf("invalid PID in %s: %q (remove the file manually if utunguard is not running)", pidFile, pidStr)
	}

	// Signal 0 probes for existence without delivering anything
	if err := unix.Kill(pid, 0); err != nil && err != unix.EPERM {
		os.Remove(pidFile)
		return nil
	}

	return fmt.Errorf("utunguard already running with PID %d (stop it first or remove %s if it's stale)", pid, pidFile)
}

// writePIDFile writes the current process PID to a file
func writePIDFile(pidFile string) error {
	return os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}
