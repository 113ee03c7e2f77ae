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

package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/we-are-mono/utunguard/daemon/logger"
)

// DNSSetter changes the DNS servers of the active network service.
// value is a server address or the restore sentinel.
type DNSSetter interface {
	Set(ctx context.Context, value string) error
}

// DNSGuard owns the DNS override for one run. Activations are started
// through Go; Release waits for them and then restores DNS exactly once.
type DNSGuard struct {
	dns      DNSSetter
	value    string
	timeout  time.Duration
	log      logger.Logger
	mu       sync.Mutex
	released bool
	inflight sync.WaitGroup
	once     sync.Once
}

// NewDNSGuard creates a guard restoring DNS to restoreValue
func NewDNSGuard(dns DNSSetter, restoreValue string, timeout time.Duration, log logger.Logger) *DNSGuard {
	return &DNSGuard{
		dns:     dns,
		value:   restoreValue,
		timeout: timeout,
		log:     log,
	}
}

// Go runs task on its own goroutine and tracks it until it returns.
// It reports false, without running task, once Release has started.
func (g *DNSGuard) Go(task func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return false
	}

	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		task()
	}()
	return true
}

// Release waits for in-flight activations, then restores DNS.
// Only the first call does anything.
func (g *DNSGuard) Release() {
	g.once.Do(func() {
		g.mu.Lock()
		g.released = true
		g.mu.Unlock()

		g.inflight.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := g.dns.Set(ctx, g.value); err != nil {
			g.log.Error("Failed to restore DNS", logger.Field{Key: "value", Value: g.value}, logger.Err(err))
			return
		}
		g.log.Info("DNS restored", logger.Field{Key: "value", Value: g.value})
	})
}
