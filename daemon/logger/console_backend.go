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
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// ConsoleBackend renders entries on a terminal through hclog.
// Warnings and errors are colored when the output is a TTY.
type ConsoleBackend struct {
	root  hclog.Logger
	named map[string]hclog.Logger
	mu    sync.Mutex
}

// NewConsoleBackend creates a console backend writing to out.
// format "json" switches hclog to JSON lines; color is only applied to text.
func NewConsoleBackend(out io.Writer, format string, color bool) *ConsoleBackend {
	colorOpt := hclog.ColorOff
	if color && format != "json" {
		colorOpt = hclog.AutoColor
	}

	root := hclog.New(&hclog.LoggerOptions{
		Name:            "utunguard",
		Level:           hclog.Trace, // filtering happens in the Logger
		Output:          out,
		JSONFormat:      format == "json",
		DisableTime:     true,
		Color:           colorOpt,
		ColorHeaderOnly: true,
	})

	return &ConsoleBackend{
		root:  root,
		named: make(map[string]hclog.Logger),
	}
}

// Write renders a log entry through the hclog logger of its component
func (b *ConsoleBackend) Write(entry *Entry) error {
	l := b.forComponent(entry.Component)

	args := make([]interface{}, 0, len(entry.Fields)*2)
	for _, k := range entry.FieldKeys() {
		args = append(args, k, entry.Fields[k])
	}

	l.Log(hclogLevel(entry.Level), entry.Message, args...)
	return nil
}

// Close is a no-op; the writer is owned by the caller
func (b *ConsoleBackend) Close() error {
	return nil
}

func (b *ConsoleBackend) forComponent(component string) hclog.Logger {
	if component == "" {
		return b.root
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.named[component]; ok {
		return l
	}
	l := b.root.ResetNamed(component)
	b.named[component] = l
	return l
}

func hclogLevel(level string) hclog.Level {
	switch level {
	case "debug":
		return hclog.Debug
	case "warn":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}
