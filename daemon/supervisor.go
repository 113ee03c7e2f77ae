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

// Package daemon runs the proxy engine, relays its log output and switches
// the host DNS while the engine's tunnel adapter is up.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/we-are-mono/utunguard/daemon/logger"
)

// Defaults used when Options leaves a field empty
const (
	DefaultTrigger        = "[TUN] Tun adapter listening at: utun"
	DefaultActivateDNS    = "198.18.0.2"
	DefaultRestoreDNS     = "empty"
	DefaultKillGrace      = 5 * time.Second
	DefaultCommandTimeout = 10 * time.Second
)

// ErrAlreadyRun is returned when Run is called a second time
var ErrAlreadyRun = errors.New("supervisor already ran")

// State is the supervisor lifecycle state
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateTerminating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Prober checks that the override resolver answers after activation
type Prober interface {
	Probe(ctx context.Context, server string) error
}

// Options configures a Supervisor
type Options struct {
	Binary string
	Args   []string
	Dir    string   // working directory; empty means the current directory
	Env    []string // nil inherits the environment

	Trigger     string // substring announcing the tunnel adapter
	ActivateDNS string
	RestoreDNS  string

	KillGrace      time.Duration // wait after a kill before closing our pipe ends
	CommandTimeout time.Duration // bound for each DNS command

	// Passthrough emits unstructured engine lines at info instead of debug
	Passthrough bool

	Prober Prober

	Logger       logger.Logger // supervisor's own records
	EngineLogger logger.Logger // re-emitted engine records
}

// Result summarizes a finished run
type Result struct {
	ExitCode int
	Lines    int
	Triggers int
}

// Supervisor owns the engine process for a single run
type Supervisor struct {
	opts   Options
	dns    DNSSetter
	guard  *DNSGuard
	log    logger.Logger
	engine logger.Logger

	mu    sync.Mutex
	proc  *Process
	grace *time.Timer

	state       atomic.Int32
	ran         atomic.Bool
	interrupted atomic.Bool
	triggers    atomic.Int64
	drained     chan struct{}
}

// New creates a supervisor that switches DNS through dns
func New(dns DNSSetter, opts Options) *Supervisor {
	if opts.Trigger == "" {
		opts.Trigger = DefaultTrigger
	}
	if opts.ActivateDNS == "" {
		opts.ActivateDNS = DefaultActivateDNS
	}
	if opts.RestoreDNS == "" {
		opts.RestoreDNS = DefaultRestoreDNS
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = DefaultKillGrace
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.With(logger.Field{Key: "component", Value: "supervisor"})
	}
	if opts.EngineLogger == nil {
		opts.EngineLogger = logger.With(logger.Field{Key: "component", Value: "engine"})
	}

	return &Supervisor{
		opts:    opts,
		dns:     dns,
		guard:   NewDNSGuard(dns, opts.RestoreDNS, opts.CommandTimeout, opts.Logger),
		log:     opts.Logger,
		engine:  opts.EngineLogger,
		drained: make(chan struct{}),
	}
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debug("State changed", logger.Field{Key: "state", Value: st.String()})
}

func (s *Supervisor) process() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc
}

// Run spawns the engine and relays its output until both streams close.
// DNS is restored before Run returns, whatever the path out.
// Only startup failures are returned as errors.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	var res Result
	if !s.ran.CompareAndSwap(false, true) {
		return res, ErrAlreadyRun
	}

	defer func() {
		s.guard.Release()
		s.setState(StateStopped)
	}()

	s.setState(StateStarting)

	dir := s.opts.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return res, fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}

	proc := NewProcess(s.opts.Binary, s.opts.Args, dir, s.opts.Env)
	if err := proc.Start(); err != nil {
		return res, fmt.Errorf("failed to start engine %s (working directory: %s): %w", s.opts.Binary, dir, err)
	}

	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	s.log.Info("Engine started",
		logger.Field{Key: "binary", Value: s.opts.Binary},
		logger.Field{Key: "pid", Value: proc.PID()},
		logger.Field{Key: "dir", Value: dir})

	s.setState(StateRunning)

	pumpCtx, cancelPump := context.WithCancel(context.Background())
	defer cancelPump()
	lines := StartPump(pumpCtx, s.log, proc.Streams()...)

	stopWatch := s.watch(ctx)
	defer stopWatch()

	// An interrupt that arrived while starting had nothing to kill yet
	if s.interrupted.Load() {
		s.Interrupt()
	}

	for line := range lines {
		res.Lines++
		s.handleLine(line)
	}
	s.finishDrain()

	s.setState(StateTerminating)

	state, err := proc.Wait()
	res.ExitCode = exitCode(state)
	res.Triggers = int(s.triggers.Load())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		s.log.Info("Engine exited", logger.Field{Key: "code", Value: res.ExitCode})
	case errors.As(err, &exitErr):
		s.log.Info("Engine exited", logger.Field{Key: "code", Value: res.ExitCode},
			logger.Field{Key: "status", Value: exitErr.String()})
	default:
		s.log.Error("Failed to wait for engine", logger.Err(err))
	}

	return res, nil
}

// Interrupt is the termination-signal handler. It kills the engine unless
// it already exited. Safe to call concurrently and repeatedly.
func (s *Supervisor) Interrupt() {
	s.interrupted.Store(true)

	proc := s.process()
	if proc == nil {
		s.log.Info("Interrupted before the engine started")
		return
	}

	if proc.Exited() {
		s.log.Info("Engine already exited")
		return
	}

	result, err := proc.Kill()
	switch result {
	case KillSent:
		s.log.Info("Terminating engine", logger.Field{Key: "pid", Value: proc.PID()})
		s.armGrace(proc)
	case KillNotRunning:
		s.log.Info("Engine already exited")
	case KillPending:
		s.log.Debug("Engine termination already requested")
	case KillFailed:
		s.log.Error("Failed to terminate engine", logger.Err(err))
	}
}

// watch turns cancellation of ctx into an Interrupt
func (s *Supervisor) watch(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Interrupt()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// armGrace closes our pipe ends if output is still open KillGrace after a
// kill, e.g. when a grandchild inherited them.
func (s *Supervisor) armGrace(proc *Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.drained:
		return
	default:
	}

	if s.grace != nil {
		return
	}
	s.grace = time.AfterFunc(s.opts.KillGrace, func() {
		select {
		case <-s.drained:
		default:
			s.log.Warn("Engine output still open after kill, closing pipes",
				logger.Field{Key: "grace", Value: s.opts.KillGrace.String()})
			proc.ClosePipes()
		}
	})
}

func (s *Supervisor) finishDrain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.drained)
	if s.grace != nil {
		s.grace.Stop()
	}
}

func (s *Supervisor) handleLine(line Line) {
	if strings.Contains(line.Text, s.opts.Trigger) {
		s.triggers.Add(1)
		s.log.Warn("Tunnel adapter detected, switching DNS",
			logger.Field{Key: "dns", Value: s.opts.ActivateDNS})
		if !s.guard.Go(s.activate) {
			s.log.Warn("DNS already restored, ignoring trigger")
		}
	}

	s.emit(line)
}

func (s *Supervisor) emit(line Line) {
	if ev, ok := Classify(line.Text); ok {
		s.engine.Log(ev.Level, ev.Message,
			logger.Field{Key: "time", Value: ev.Time},
			logger.Field{Key: "stream", Value: line.Stream})
		return
	}

	level := logger.LevelDebug
	if s.opts.Passthrough {
		level = logger.LevelInfo
	}
	s.engine.Log(level, line.Text, logger.Field{Key: "stream", Value: line.Stream})
}

func (s *Supervisor) activate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CommandTimeout)
	defer cancel()

	if err := s.dns.Set(ctx, s.opts.ActivateDNS); err != nil {
		s.log.Error("Failed to set DNS",
			logger.Field{Key: "dns", Value: s.opts.ActivateDNS}, logger.Err(err))
		return
	}
	s.log.Info("DNS override active", logger.Field{Key: "dns", Value: s.opts.ActivateDNS})

	if s.opts.Prober == nil {
		return
	}
	if err := s.opts.Prober.Probe(ctx, s.opts.ActivateDNS); err != nil {
		s.log.Warn("DNS override does not answer yet",
			logger.Field{Key: "dns", Value: s.opts.ActivateDNS}, logger.Err(err))
		return
	}
	s.log.Info("DNS override answers queries", logger.Field{Key: "dns", Value: s.opts.ActivateDNS})
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
