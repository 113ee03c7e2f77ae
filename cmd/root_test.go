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
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/journal"
	"github.com/we-are-mono/utunguard/state"
	"github.com/we-are-mono/utunguard/types"
)

func TestRootCmdExists(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "utunguard", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "mihomo")
	assert.NotNil(t, rootCmd.RunE, "bare utunguard runs the supervisor")
}

func TestRootCmdHasCommands(t *testing.T) {
	expected := []string{"run", "interfaces", "dns", "history", "config"}

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, name := range expected {
		assert.Contains(t, names, name, "command %s should be registered", name)
	}
}

func TestRootAndRunShareFlags(t *testing.T) {
	for _, name := range []string{"engine", "data-dir", "trigger", "activate-dns", "restore-dns", "probe-domain", "passthrough", "journal", "pid-file"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(name), "root flag %s", name)
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run flag %s", name)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().ShorthandLookup("c"))
}

func TestSetVersion(t *testing.T) {
	oldVersion, oldBuild := Version, BuildTime
	t.Cleanup(func() { SetVersion(oldVersion, oldBuild) })

	SetVersion("1.2.3", "2025-01-01")
	assert.Equal(t, "1.2.3", rootCmd.Version)
	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "2025-01-01", BuildTime)
}

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addGlobalFlags(fs)
	addRunFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestApplyFlagOverridesOnlyChanged(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.DNS.Activate = "10.0.0.53" // as if read from the file

	applyFlagOverrides(newFlagSet(t), cfg)

	assert.Equal(t, "10.0.0.53", cfg.DNS.Activate, "unset flags keep file values")
	assert.Equal(t, state.DefaultEngineBinary(), cfg.Engine.Binary)
	assert.True(t, cfg.Log.Color)
	assert.False(t, cfg.Journal.Enabled)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := state.DefaultConfig()

	fs := newFlagSet(t,
		"--engine", "/opt/mihomo",
		"--data-dir", "/etc/mihomo",
		"--trigger", "tun up",
		"--activate-dns", "10.0.0.1",
		"--restore-dns", "1.1.1.1",
		"--probe-domain", "example.com",
		"--passthrough",
		"--journal", "/tmp/j.db",
		"--log-level", "debug",
		"--log-format", "json",
		"--log-file", "/tmp/u.log",
		"--no-color",
	)
	applyFlagOverrides(fs, cfg)

	assert.Equal(t, "/opt/mihomo", cfg.Engine.Binary)
	assert.Equal(t, "/etc/mihomo", cfg.Engine.DataDir)
	assert.Equal(t, "tun up", cfg.DNS.Trigger)
	assert.Equal(t, "10.0.0.1", cfg.DNS.Activate)
	assert.Equal(t, "1.1.1.1", cfg.DNS.Restore)
	assert.Equal(t, "example.com", cfg.DNS.ProbeDomain)
	assert.True(t, cfg.Log.Passthrough)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/j.db", cfg.Journal.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/u.log", cfg.Log.File)
	assert.False(t, cfg.Log.Color)
}

func TestApplyFlagOverridesEmptyJournalDisables(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.Journal.Enabled = true

	applyFlagOverrides(newFlagSet(t, "--journal="), cfg)

	assert.False(t, cfg.Journal.Enabled)
}

func TestBuildOptions(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.Engine.Binary = "/opt/mihomo"
	cfg.Engine.DataDir = "/etc/mihomo"
	cfg.Engine.Args = []string{"-f", "tun.yaml"}
	cfg.Engine.KillGrace = types.Duration(3 * time.Second)
	cfg.DNS.CommandTimeout = types.Duration(4 * time.Second)
	cfg.Log.Passthrough = true

	opts := buildOptions(cfg)

	assert.Equal(t, "/opt/mihomo", opts.Binary)
	assert.Equal(t, []string{"-d", "/etc/mihomo", "-f", "tun.yaml"}, opts.Args)
	assert.Equal(t, cfg.DNS.Trigger, opts.Trigger)
	assert.Equal(t, "198.18.0.2", opts.ActivateDNS)
	assert.Equal(t, "empty", opts.RestoreDNS)
	assert.Equal(t, 3*time.Second, opts.KillGrace)
	assert.Equal(t, 4*time.Second, opts.CommandTimeout)
	assert.True(t, opts.Passthrough)
	assert.Nil(t, opts.Prober)
}

func TestPrintInterfacesMarksActive(t *testing.T) {
	ifaces := []types.NetworkInterface{
		{Name: "lo0", FriendlyName: "lo0", IPv4: []net.IP{net.ParseIP("127.0.0.1")}},
		{Name: "en1", FriendlyName: "Thunderbolt", Physical: true},
		{
			Name:         "en0",
			FriendlyName: "Wi-Fi",
			Physical:     true,
			IPv4:         []net.IP{net.ParseIP("192.168.1.10")},
			Gateway:      net.ParseIP("192.168.1.1"),
		},
	}

	var buf bytes.Buffer
	printInterfaces(&buf, ifaces)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "DEVICE")
	assert.True(t, strings.HasPrefix(lines[3], "*"), "en0 should be marked: %q", lines[3])
	assert.Contains(t, lines[3], "Wi-Fi")
	assert.Contains(t, lines[3], "192.168.1.1")
	assert.False(t, strings.HasPrefix(lines[2], "*"))
	assert.Contains(t, lines[2], "-")
	assert.NotContains(t, out, "No eligible interface")
}

func TestPrintInterfacesNoneEligible(t *testing.T) {
	var buf bytes.Buffer
	printInterfaces(&buf, []types.NetworkInterface{{Name: "en0", Physical: true}})

	assert.Contains(t, buf.String(), "No eligible interface")
	assert.NotContains(t, buf.String(), "*")
}

func TestPrintInterfacesJSON(t *testing.T) {
	var buf bytes.Buffer
	err := printInterfacesJSON(&buf, []types.NetworkInterface{{
		Name:         "en0",
		FriendlyName: "Wi-Fi",
		Physical:     true,
		IPv4:         []net.IP{net.ParseIP("10.0.0.2")},
		Gateway:      net.ParseIP("10.0.0.1"),
	}})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"active": "Wi-Fi"`)
	assert.Contains(t, buf.String(), `"interfaces"`)
}

type countingInterrupter struct {
	mu sync.Mutex
	n  int
	ch chan struct{}
}

func (c *countingInterrupter) Interrupt() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func TestForwardSignals(t *testing.T) {
	sigChan := make(chan os.Signal, 2)
	done := make(chan struct{})
	target := &countingInterrupter{ch: make(chan struct{}, 2)}

	exited := make(chan struct{})
	go func() {
		forwardSignals(sigChan, target, done)
		close(exited)
	}()

	sigChan <- os.Interrupt
	sigChan <- os.Interrupt
	for i := 0; i < 2; i++ {
		select {
		case <-target.ch:
		case <-time.After(2 * time.Second):
			t.Fatal("signal was not forwarded")
		}
	}

	close(done)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("forwardSignals did not return after done")
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Equal(t, 2, target.n)
}

func TestCheckExistingInstance(t *testing.T) {
	dir := t.TempDir()

	t.Run("no file", func(t *testing.T) {
		assert.NoError(t, checkExistingInstance(filepath.Join(dir, "missing.pid")))
	})

	t.Run("own process is running", func(t *testing.T) {
		path := filepath.Join(dir, "self.pid")
		require.NoError(t, writePIDFile(path))

		err := checkExistingInstance(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), fmt.Sprintf("PID %d", os.Getpid()))
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pid")
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0600))

		err := checkExistingInstance(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid PID")
	})

	t.Run("stale file is removed", func(t *testing.T) {
		path := filepath.Join(dir, "stale.pid")
		// Above the default Linux pid_max and the macOS limit
		require.NoError(t, os.WriteFile(path, []byte("4194304\n"), 0600))

		assert.NoError(t, checkExistingInstance(path))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestPrintRecordsChronological(t *testing.T) {
	records := []journal.Record{
		{ID: 2, Timestamp: "2025-01-01T00:00:02Z", Level: "warn", Component: "supervisor", Message: "Tunnel adapter detected, switching DNS", Fields: `{"dns":"198.18.0.2"}`},
		{ID: 1, Timestamp: "2025-01-01T00:00:01Z", Level: "info", Component: "engine", Message: "Start initial configuration", Fields: `{}`},
	}

	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, records, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2025-01-01T00:00:01Z [info] [engine] Start initial configuration", lines[0])
	assert.Equal(t, "2025-01-01T00:00:02Z [warn] [supervisor] Tunnel adapter detected, switching DNS dns=198.18.0.2", lines[1])
}

func TestPrintRecordsJSON(t *testing.T) {
	records := []journal.Record{
		{ID: 1, Timestamp: "2025-01-01T00:00:01Z", Level: "error", Component: "dns", Message: "boom", Fields: `{"code":1}`},
	}

	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, records, true))

	assert.Contains(t, buf.String(), `"timestamp":"2025-01-01T00:00:01Z"`)
	assert.Contains(t, buf.String(), `"component":"dns"`)
	assert.Contains(t, buf.String(), `"code":1`)
}

func TestRecordEntryIgnoresBadFields(t *testing.T) {
	entry := recordEntry(journal.Record{Timestamp: "t", Level: "info", Message: "m", Fields: "{not json"})

	assert.Equal(t, "t", entry.Timestamp)
	assert.Empty(t, entry.Fields)
}

func TestHistoryCommand(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.OnLogEvent(logger.NewEntry("info", "engine", "first", nil)))
	require.NoError(t, j.OnLogEvent(logger.NewEntry("warn", "supervisor", "second", nil)))
	require.NoError(t, j.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--journal", path, "--session", "last"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "[engine] first")
	assert.Contains(t, text, "[supervisor] second")
	assert.Less(t, strings.Index(text, "first"), strings.Index(text, "second"))
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utunguard.toml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"config", "init", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Wrote "+path)

	cfg, err := state.Load(path)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultConfig(), cfg)

	rootCmd.SetArgs([]string{"config", "init", path})
	err = rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitLoggingJournalCleanup(t *testing.T) {
	cfg := state.DefaultConfig()
	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	var stderr bytes.Buffer
	cleanup, err := initLogging(cfg, &stderr)
	require.NoError(t, err)
	require.NotNil(t, logger.GetEmitter())

	logger.Info("recorded entry")
	cleanup()
	assert.Nil(t, logger.GetEmitter())

	j, err := journal.Open(cfg.Journal.Path)
	require.NoError(t, err)
	defer j.Close()

	records, err := j.Query(context.Background(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "recorded entry", records[0].Message)
	assert.NotContains(t, stderr.String(), "Journal queue was full")
}
