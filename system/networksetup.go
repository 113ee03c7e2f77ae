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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/we-are-mono/utunguard/types"
)

// hostInterface is an OS interface with its assigned addresses
type hostInterface struct {
	Name     string
	Loopback bool
	Addrs    []net.IP
}

// NetworkSetupSource enumerates interfaces on macOS. Devices that
// networksetup lists as hardware ports are physical and carry the port
// name as friendly name; the gateway comes from the default route.
type NetworkSetupSource struct {
	cmd   CommandRunner
	hosts func() ([]hostInterface, error)
}

// NewNetworkSetupSource creates a source that runs commands through cmd.
func NewNetworkSetupSource(cmd CommandRunner) *NetworkSetupSource {
	return &NetworkSetupSource{cmd: cmd, hosts: listHostInterfaces}
}

func (s *NetworkSetupSource) Interfaces(ctx context.Context) ([]types.NetworkInterface, error) {
	out, err := s.cmd.Run(ctx, "networksetup", "-listallhardwareports")
	if err != nil {
		return nil, fmt.Errorf("failed to list hardware ports: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	ports := parseHardwarePorts(out)

	// No default route is not an error, the host is just offline
	var gateway net.IP
	var gatewayDev string
	if out, err := s.cmd.Run(ctx, "route", "-n", "get", "default"); err == nil {
		gateway, gatewayDev = parseDefaultRoute(out)
	}

	hosts, err := s.hosts()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	ifaces := make([]types.NetworkInterface, 0, len(hosts))
	for _, h := range hosts {
		port, listed := ports[h.Name]
		iface := types.NetworkInterface{
			Name:         h.Name,
			FriendlyName: port,
			Physical:     listed && !h.Loopback,
		}
		for _, ip := range h.Addrs {
			if ip.To4() != nil {
				iface.IPv4 = append(iface.IPv4, ip)
			}
		}
		if gateway != nil && h.Name == gatewayDev {
			iface.Gateway = gateway
		}
		ifaces = append(ifaces, iface)
	}

	return ifaces, nil
}

// parseHardwarePorts maps device names to hardware port names from
// `networksetup -listallhardwareports` output.
func parseHardwarePorts(out []byte) map[string]string {
	ports := make(map[string]string)

	var port string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Hardware Port:"):
			port = strings.TrimSpace(strings.TrimPrefix(line, "Hardware Port:"))
		case strings.HasPrefix(line, "Device:"):
			dev := strings.TrimSpace(strings.TrimPrefix(line, "Device:"))
			if port != "" && dev != "" {
				ports[dev] = port
			}
			port = ""
		case line == "":
			port = ""
		}
	}

	return ports
}

// parseDefaultRoute extracts gateway and interface from
// `route -n get default` output.
func parseDefaultRoute(out []byte) (net.IP, string) {
	var gateway net.IP
	var dev string

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "gateway":
			gateway = net.ParseIP(value)
		case "interface":
			dev = value
		}
	}

	if gateway == nil || dev == "" {
		return nil, ""
	}
	return gateway, dev
}

func listHostInterfaces() ([]hostInterface, error) {
	nifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	hosts := make([]hostInterface, 0, len(nifs))
	for _, nif := range nifs {
		h := hostInterface{
			Name:     nif.Name,
			Loopback: nif.Flags&net.FlagLoopback != 0,
		}
		addrs, err := nif.Addrs()
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses of %s: %w", nif.Name, err)
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				h.Addrs = append(h.Addrs, ipnet.IP)
			}
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
