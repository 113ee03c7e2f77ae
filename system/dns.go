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
	"fmt"
	"strings"

	"github.com/we-are-mono/utunguard/daemon/logger"
)

// RestoreValue makes networksetup drop manual DNS servers, returning the
// service to DHCP-provided resolvers.
const RestoreValue = "empty"

// ActiveInterface resolves the network service to configure.
type ActiveInterface interface {
	Active(ctx context.Context) (string, bool)
}

// DNSController points the active network service at a DNS server.
type DNSController struct {
	iface ActiveInterface
	cmd   CommandRunner
	log   logger.Logger
}

// NewDNSController creates a controller.
func NewDNSController(iface ActiveInterface, cmd CommandRunner, log logger.Logger) *DNSController {
	if log == nil {
		log = logger.With(logger.Field{Key: "component", Value: "dns"})
	}
	return &DNSController{iface: iface, cmd: cmd, log: log}
}

// Set runs `networksetup -setdnsservers <service> <value>` for the active
// interface. Without an active interface it does nothing and returns nil.
// The command is bounded by ctx.
func (c *DNSController) Set(ctx context.Context, value string) error {
	service, ok := c.iface.Active(ctx)
	if !ok {
		c.log.Debug("No active interface, DNS left unchanged", logger.Field{Key: "value", Value: value})
		return nil
	}

	c.log.Debug("Setting DNS",
		logger.Field{Key: "interface", Value: service},
		logger.Field{Key: "value", Value: value})

	out, err := c.cmd.Run(ctx, "networksetup", "-setdnsservers", service, value)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("networksetup -setdnsservers %s %s: %w (output: %s)",
			service, value, err, strings.TrimSpace(string(out)))
	}

	// networksetup reports some failures on stdout with exit status 0
	if msg := strings.TrimSpace(string(out)); msg != "" {
		c.log.Warn("networksetup reported a problem",
			logger.Field{Key: "interface", Value: service},
			logger.Field{Key: "output", Value: msg})
	}
	return nil
}
