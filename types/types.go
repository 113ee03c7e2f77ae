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

// Package types defines the data structures shared across utunguard:
// the configuration model and the enumerated network interfaces.
package types

import "net"

// NetworkInterface is one host interface as seen by the interface resolver
type NetworkInterface struct {
	Name         string   `json:"name"`          // OS device name (en0, eth0)
	FriendlyName string   `json:"friendly_name"` // network service name (Wi-Fi), empty if unknown
	IPv4         []net.IP `json:"ipv4,omitempty"`
	Gateway      net.IP   `json:"gateway,omitempty"`
	Physical     bool     `json:"physical"`
}

// HasIPv4 reports whether at least one IPv4 address is assigned
func (n NetworkInterface) HasIPv4() bool {
	for _, ip := range n.IPv4 {
		if ip.To4() != nil {
			return true
		}
	}
	return false
}

// Eligible reports whether the interface can carry the DNS override:
// physical, addressed over IPv4 and with a gateway.
func (n NetworkInterface) Eligible() bool {
	return n.Physical && n.HasIPv4() && n.Gateway != nil
}
