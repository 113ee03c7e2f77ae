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
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer serves every question with rcode on a local UDP port
func startDNSServer(t *testing.T, rcode int) (host, port string) {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, rcode)
		if rcode == dns.RcodeSuccess {
			rr, err := dns.NewRR(r.Question[0].Name + " 60 IN A 198.18.0.7")
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	host, port, err = net.SplitHostPort(pc.LocalAddr().String())
	require.NoError(t, err)
	return host, port
}

func TestDNSProberAnswer(t *testing.T) {
	host, port := startDNSServer(t, dns.RcodeSuccess)

	p := NewDNSProber("example.com", time.Second)
	p.port = port

	assert.NoError(t, p.Probe(context.Background(), host))
}

func TestDNSProberRcode(t *testing.T) {
	host, port := startDNSServer(t, dns.RcodeServerFailure)

	p := NewDNSProber("example.com", time.Second)
	p.port = port

	err := p.Probe(context.Background(), host)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVFAIL")
}

func TestDNSProberNoAnswer(t *testing.T) {
	// Bound but never read from
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	host, port, err := net.SplitHostPort(pc.LocalAddr().String())
	require.NoError(t, err)

	p := NewDNSProber("example.com", 200*time.Millisecond)
	p.port = port

	start := time.Now()
	err = p.Probe(context.Background(), host)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewDNSProberDefaults(t *testing.T) {
	p := NewDNSProber("example.com", 0)
	assert.Equal(t, "example.com.", p.domain)
	assert.Equal(t, DefaultProbeTimeout, p.client.Timeout)
	assert.Equal(t, "53", p.port)
}
