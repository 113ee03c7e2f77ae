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

	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/types"
)

// Select returns the friendly name of the first eligible interface.
// The first eligible interface decides: if it has no friendly name the
// result is empty even when a later one would have qualified.
func Select(ifaces []types.NetworkInterface) (string, bool) {
	for _, iface := range ifaces {
		if !iface.Eligible() {
			continue
		}
		if iface.FriendlyName == "" {
			return "", false
		}
		return iface.FriendlyName, true
	}
	return "", false
}

// Resolver finds the network service the DNS override applies to.
// It enumerates fresh on every call.
type Resolver struct {
	source InterfaceSource
	log    logger.Logger
}

// NewResolver creates a resolver over source.
func NewResolver(source InterfaceSource, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.With(logger.Field{Key: "component", Value: "netif"})
	}
	return &Resolver{source: source, log: log}
}

// Active returns the friendly name of the active interface, if any.
// Enumeration failures are logged and reported as no interface.
func (r *Resolver) Active(ctx context.Context) (string, bool) {
	ifaces, err := r.source.Interfaces(ctx)
	if err != nil {
		r.log.Warn("Failed to enumerate interfaces", logger.Err(err))
		return "", false
	}

	name, ok := Select(ifaces)
	if !ok {
		r.log.Debug("No eligible interface", logger.Field{Key: "count", Value: len(ifaces)})
		return "", false
	}
	return name, true
}

// Interfaces returns the raw enumeration.
func (r *Resolver) Interfaces(ctx context.Context) ([]types.NetworkInterface, error) {
	return r.source.Interfaces(ctx)
}
