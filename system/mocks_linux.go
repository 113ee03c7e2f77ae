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
	"fmt"
	"net"
	"sync"

	"github.com/vishvananda/netlink"
)

// MockNetlinkClient is a mock implementation of NetlinkClient for testing.
// Links keep their insertion order.
type MockNetlinkClient struct {
	mu sync.Mutex

	// State
	Links     []netlink.Link
	Addresses map[string][]netlink.Addr
	Routes    map[string][]netlink.Route

	// Call counters for verification
	LinkListCalls  int
	AddrListCalls  int
	RouteListCalls int

	// Error injection for testing error paths
	LinkListError  error
	AddrListError  error
	RouteListError error
}

// NewMockNetlinkClient creates a new MockNetlinkClient.
func NewMockNetlinkClient() *MockNetlinkClient {
	return &MockNetlinkClient{
		Addresses: make(map[string][]netlink.Addr),
		Routes:    make(map[string][]netlink.Route),
	}
}

// AddLink registers a link with its IPv4 addresses in CIDR form.
func (m *MockNetlinkClient) AddLink(link netlink.Link, cidrs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := link.Attrs().Name
	m.Links = append(m.Links, link)
	for _, c := range cidrs {
		ip, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("bad cidr %q: %v", c, err))
		}
		ipnet.IP = ip
		m.Addresses[name] = append(m.Addresses[name], netlink.Addr{IPNet: ipnet})
	}
}

// AddDefaultRoute registers a default route through gw on the named link.
func (m *MockNetlinkClient) AddDefaultRoute(name, gw string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Routes[name] = append(m.Routes[name], netlink.Route{
		Dst: &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)},
		Gw:  net.ParseIP(gw),
	})
}

func (m *MockNetlinkClient) LinkList() ([]netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkListCalls++

	if m.LinkListError != nil {
		return nil, m.LinkListError
	}

	links := make([]netlink.Link, len(m.Links))
	copy(links, m.Links)
	return links, nil
}

func (m *MockNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddrListCalls++

	if m.AddrListError != nil {
		return nil, m.AddrListError
	}

	return m.Addresses[link.Attrs().Name], nil
}

func (m *MockNetlinkClient) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RouteListCalls++

	if m.RouteListError != nil {
		return nil, m.RouteListError
	}

	return m.Routes[link.Attrs().Name], nil
}
