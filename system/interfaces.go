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

// Package system provides the host integration utunguard needs: interface
// enumeration, the networksetup DNS switch and a resolver probe.
package system

import (
	"context"
	"os/exec"

	"github.com/we-are-mono/utunguard/types"
)

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	// Run executes a command and returns its combined output
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner using real command execution.
type DefaultCommandRunner struct{}

// NewDefaultCommandRunner creates a new DefaultCommandRunner.
func NewDefaultCommandRunner() *DefaultCommandRunner {
	return &DefaultCommandRunner{}
}

func (c *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// InterfaceSource enumerates the host's network interfaces in OS order.
type InterfaceSource interface {
	Interfaces(ctx context.Context) ([]types.NetworkInterface, error)
}
