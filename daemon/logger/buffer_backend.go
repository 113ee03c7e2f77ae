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

package logger

import (
	"bytes"
	"fmt"
	"sync"
)

// BufferBackend keeps log entries in memory (for testing)
type BufferBackend struct {
	buffer  *bytes.Buffer
	format  string // "json" or "text"
	entries []*Entry
	mu      sync.Mutex
}

// NewBufferBackend creates a new buffer backend
func NewBufferBackend(buffer *bytes.Buffer, format string) *BufferBackend {
	if buffer == nil {
		buffer = new(bytes.Buffer)
	}
	return &BufferBackend{
		buffer: buffer,
		format: format,
	}
}

// Write renders a log entry into the buffer and records it
func (b *BufferBackend) Write(entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	output, err := entry.Render(b.format)
	if err != nil {
		return err
	}

	if _, err := b.buffer.WriteString(output + "\n"); err != nil {
		return fmt.Errorf("failed to write to buffer: %w", err)
	}
	b.entries = append(b.entries, entry)

	return nil
}

// Entries returns a copy of every entry written so far
func (b *BufferBackend) Entries() []*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Find returns the entries whose message equals msg
func (b *BufferBackend) Find(msg string) []*Entry {
	var out []*Entry
	for _, e := range b.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// String returns everything rendered so far
func (b *BufferBackend) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

// Close is a no-op for buffer backend
func (b *BufferBackend) Close() error {
	return nil
}
