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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := NewBufferBackend(nil, "text")
	l := New(Config{Level: "warn"}, []Backend{buf}, nil)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")
	l.Log(LevelInfo, "li")
	l.Log(LevelError, "le")

	var msgs []string
	for _, e := range buf.Entries() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"w", "e", "le"}, msgs)
}

func TestWithComponentAndFields(t *testing.T) {
	buf := NewBufferBackend(nil, "json")
	root := New(Config{Level: "debug", Component: "main"}, []Backend{buf}, nil)

	child := root.With(Field{Key: "component", Value: "engine"}, Field{Key: "stream", Value: "stdout"})
	child.Info("hello", Field{Key: "time", Value: "t"})
	root.Info("plain")

	entries := buf.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "engine", entries[0].Component)
	assert.Equal(t, "stdout", entries[0].Fields["stream"])
	assert.Equal(t, "t", entries[0].Fields["time"])
	assert.NotContains(t, entries[0].Fields, "component")

	assert.Equal(t, "main", entries[1].Component)
	assert.Empty(t, entries[1].Fields)

	var decoded Entry
	line := strings.SplitN(buf.String(), "\n", 2)[0]
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "hello", decoded.Message)
}

func TestEntryToTextSortsFields(t *testing.T) {
	e := NewEntry("info", "dns", "set", map[string]interface{}{
		"value":     "empty",
		"interface": "Wi-Fi",
		"attempt":   2,
	})

	text := e.ToText()
	assert.Contains(t, text, "[info] [dns] set attempt=2 interface=Wi-Fi value=empty")
}

type recordingSubscriber struct {
	mu      sync.Mutex
	entries []*Entry
}

func (r *recordingSubscriber) OnLogEvent(entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func TestEmitterDeliversInOrder(t *testing.T) {
	emitter := NewEmitter()
	sub := &recordingSubscriber{}
	emitter.Subscribe(sub)

	l := New(Config{Level: "debug"}, nil, emitter)
	for _, m := range []string{"a", "b", "c"} {
		l.Info(m)
	}

	emitter.Unsubscribe(sub)
	l.Info("d")

	require.Len(t, sub.entries, 3)
	assert.Equal(t, "a", sub.entries[0].Message)
	assert.Equal(t, "c", sub.entries[2].Message)
}

func TestConsoleBackend(t *testing.T) {
	var out bytes.Buffer
	console := NewConsoleBackend(&out, "text", false)
	l := New(Config{Level: "debug"}, []Backend{console}, nil)

	l.With(Field{Key: "component", Value: "engine"}).Warn("tunnel up", Field{Key: "time", Value: "2025-01-01T00:00:00.000+08:00"})

	got := out.String()
	assert.Contains(t, got, "[WARN]")
	assert.Contains(t, got, "engine: tunnel up")
	assert.Contains(t, got, "time=2025-01-01T00:00:00.000+08:00")
	assert.NotContains(t, got, "\x1b[", "color must be off")
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "utunguard.log")

	fb, err := NewFileBackend(path, "text")
	require.NoError(t, err)

	l := New(Config{Level: "info"}, []Backend{fb}, nil)
	l.Info("first")
	l.Error("second", Err(assert.AnError))
	require.NoError(t, fb.Close())
	require.NoError(t, fb.Close(), "double close is harmless")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "second error="+assert.AnError.Error())

	assert.Error(t, fb.Write(NewEntry("info", "", "late", nil)))
}

func TestGlobalLoggerLifecycle(t *testing.T) {
	buf := NewBufferBackend(nil, "text")
	Init(Config{Level: "debug"}, []Backend{buf}, NewEmitter())
	assert.NotNil(t, GetEmitter())

	Info("global")
	With(Field{Key: "component", Value: "x"}).Debug("child")

	require.NoError(t, Close())
	Info("after close is dropped")

	assert.Len(t, buf.Entries(), 2)
	assert.Nil(t, GetEmitter())
}
