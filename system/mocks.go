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

package system

import (
	"context"
	"strings"
	"sync"

	"github.com/we-are-mono/utunguard/types"
)

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	mu sync.Mutex

	// State, keyed by the space-joined command line
	CommandOutputs map[string][]byte
	CommandErrors  map[string]error

	// Call tracking
	Commands [][]string
	RunCalls int

	// Error injection
	RunError error
}

// NewMockCommandRunner creates a new MockCommandRunner.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		CommandOutputs: make(map[string][]byte),
		CommandErrors:  make(map[string]error),
		Commands:       make([][]string, 0),
	}
}

func (m *MockCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls++

	// Track the command that was run
	cmd := append([]string{name}, args...)
	m.Commands = append(m.Commands, cmd)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.RunError != nil {
		return nil, m.RunError
	}

	key := strings.Join(cmd, " ")
	return m.CommandOutputs[key], m.CommandErrors[key]
}

// SetOutput sets the output for a specific command.
func (m *MockCommandRunner) SetOutput(name string, args []string, output []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandOutputs[strings.Join(append([]string{name}, args...), " ")] = output
}

// SetError makes a specific command fail with err and output.
func (m *MockCommandRunner) SetError(name string, args []string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.Join(append([]string{name}, args...), " ")
	m.CommandOutputs[key] = output
	m.CommandErrors[key] = err
}

// Calls returns a copy of the recorded commands.
func (m *MockCommandRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.Commands))
	copy(out, m.Commands)
	return out
}

// MockInterfaceSource is a mock implementation of InterfaceSource for testing.
type MockInterfaceSource struct {
	mu sync.Mutex

	Ifaces []types.NetworkInterface
	Err    error
	Calls  int
}

func (m *MockInterfaceSource) Interfaces(ctx context.Context) ([]types.NetworkInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]types.NetworkInterface, len(m.Ifaces))
	copy(out, m.Ifaces)
	return out, nil
}

// Set replaces the interface list returned by later calls.
func (m *MockInterfaceSource) Set(ifaces ...types.NetworkInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ifaces = ifaces
}
