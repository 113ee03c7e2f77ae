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
	"time"

	"github.com/miekg/dns"
)

// DefaultProbeTimeout bounds a single probe query.
const DefaultProbeTimeout = 2 * time.Second

// DNSProber checks that a resolver answers an A query for a fixed domain.
type DNSProber struct {
	domain string
	port   string
	client *dns.Client
}

// NewDNSProber creates a prober querying domain on port 53.
func NewDNSProber(domain string, timeout time.Duration) *DNSProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &DNSProber{
		domain: dns.Fqdn(domain),
		port:   "53",
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// Probe sends one A query to server and fails unless it answers NOERROR.
func (p *DNSProber) Probe(ctx context.Context, server string) error {
	msg := new(dns.Msg)
	msg.SetQuestion(p.domain, dns.TypeA)
	msg.RecursionDesired = true

	addr := net.JoinHostPort(server, p.port)
	resp, _, err := p.client.ExchangeContext(ctx, msg, addr)
	if err != nil {
		return fmt.Errorf("query %s at %s: %w", p.domain, addr, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("query %s at %s: %s", p.domain, addr, dns.RcodeToString[resp.Rcode])
	}
	return nil
}
