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

package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// KillResult describes what a Kill call did
type KillResult int

const (
	// KillSent means this call delivered the kill signal
	KillSent KillResult = iota
	// KillNotRunning means the process was never started or is already reaped
	KillNotRunning
	// KillPending means an earlier call already delivered the signal
	KillPending
	// KillFailed means the signal could not be delivered
	KillFailed
)

func (r KillResult) String() string {
	switch r {
	case KillSent:
		return "sent"
	case KillNotRunning:
		return "not-running"
	case KillPending:
		return "pending"
	default:
		return "failed"
	}
}

// Process is the shared handle to the engine child.
// Kill and the exit bookkeeping done by Wait are serialized by mu, so the
// interrupt path and the main loop can both use the handle safely.
type Process struct {
	mu            sync.Mutex
	cmd           *exec.Cmd
	stdout        io.ReadCloser
	stderr        io.ReadCloser
	started       bool
	exited        bool
	killRequested bool
	waitErr       error
	waitOnce      sync.Once
	done          chan struct{}
}

// NewProcess prepares (but does not start) binary with args in dir.
// A nil env inherits the current environment.
func NewProcess(binary string, args []string, dir string, env []string) *Process {
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Env = env
	return &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
}

// Start spawns the process with stdout and stderr captured
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("process already started")
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.stdout = stdout
	p.stderr = stderr
	p.started = true
	return nil
}

// Streams returns the captured output streams
func (p *Process) Streams() []Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return []Stream{
		{Name: StreamStdout, R: p.stdout},
		{Name: StreamStderr, R: p.stderr},
	}
}

// PID returns the process id, or 0 before Start
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited reports whether Wait has reaped the process
func (p *Process) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// Wait reaps the process. It must only be called after both output streams
// have been drained, since it closes the pipes. Safe to call more than once.
func (p *Process) Wait() (*os.ProcessState, error) {
	p.waitOnce.Do(func() {
		p.mu.Lock()
		started := p.started
		p.mu.Unlock()

		var err error
		if started {
			err = p.cmd.Wait()
		} else {
			err = errors.New("process not started")
		}

		p.mu.Lock()
		p.exited = true
		p.waitErr = err
		p.mu.Unlock()
		close(p.done)
	})

	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd.ProcessState, p.waitErr
}

// Kill delivers SIGKILL at most once. A process that is already reaped is
// left alone.
func (p *Process) Kill() (KillResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.exited {
		return KillNotRunning, nil
	}
	if p.killRequested {
		return KillPending, nil
	}

	if err := p.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return KillNotRunning, nil
		}
		return KillFailed, err
	}

	p.killRequested = true
	return KillSent, nil
}

// ClosePipes closes our ends of the output pipes, unblocking pending reads.
func (p *Process) ClosePipes() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdout != nil {
		_ = p.stdout.Close()
	}
	if p.stderr != nil {
		_ = p.stderr.Close()
	}
}
