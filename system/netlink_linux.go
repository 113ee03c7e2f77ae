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
	"net"

	"github.com/vishvananda/netlink"

	"github.com/we-are-mono/utunguard/types"
)

// NetlinkClient abstracts the netlink calls used for interface enumeration.
type NetlinkClient interface {
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	RouteList(link netlink.Link, family int) ([]netlink.Route, error)
}

// DefaultNetlinkClient implements NetlinkClient using real netlink calls.
type DefaultNetlinkClient struct{}

// NewDefaultNetlinkClient creates a new DefaultNetlinkClient.
func NewDefaultNetlinkClient() *DefaultNetlinkClient {
	return &DefaultNetlinkClient{}
}

func (c *DefaultNetlinkClient) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

func (c *DefaultNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (c *DefaultNetlinkClient) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return netlink.RouteList(link, family)
}

// NetlinkSource enumerates interfaces over netlink.
// A link is physical when it is a plain device that is not loopback; its
// friendly name is the link alias, or the link name without one.
type NetlinkSource struct {
	netlink NetlinkClient
}

// NewNetlinkSource creates a source backed by nl.
func NewNetlinkSource(nl NetlinkClient) *NetlinkSource {
	return &NetlinkSource{netlink: nl}
}

// NewDefaultInterfaceSource returns the interface source for this platform.
func NewDefaultInterfaceSource(_ CommandRunner) InterfaceSource {
	return NewNetlinkSource(NewDefaultNetlinkClient())
}

func (s *NetlinkSource) Interfaces(ctx context.Context) ([]types.NetworkInterface, error) {
	links, err := s.netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	ifaces := make([]types.NetworkInterface, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attrs := link.Attrs()
		iface := types.NetworkInterface{
			Name:         attrs.Name,
			FriendlyName: attrs.Alias,
			Physical:     isPhysicalLink(link),
		}
		if iface.FriendlyName == "" {
			iface.FriendlyName = attrs.Name
		}

		addrs, err := s.netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses of %s: %w", attrs.Name, err)
		}
		for _, addr := range addrs {
			if addr.IPNet != nil && addr.IP.To4() != nil {
				iface.IPv4 = append(iface.IPv4, addr.IP)
			}
		}

		routes, err := s.netlink.RouteList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, fmt.Errorf("failed to list routes of %s: %w", attrs.Name, err)
		}
		iface.Gateway = defaultGateway(routes)

		ifaces = append(ifaces, iface)
	}

	return ifaces, nil
}

func isPhysicalLink(link netlink.Link) bool {
	if link.Type() != "device" {
		return false
	}
	return link.Attrs().Flags&net.FlagLoopback == 0
}

// defaultGateway returns the gateway of the first default route
func defaultGateway(routes []netlink.Route) net.IP {
	for _, r := range routes {
		if r.Gw == nil {
			continue
		}
		if r.Dst == nil {
			return r.Gw
		}
		if ones, _ := r.Dst.Mask.Size(); ones == 0 {
			return r.Gw
		}
	}
	return nil
}
