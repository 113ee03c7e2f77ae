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

// Package logger provides structured logging for utunguard and for the
// engine records it re-emits.
package logger

import (
	"fmt"
	"os"
	"sync"
)

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)
	With(fields ...Field) Logger // Create child logger with preset fields
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Err is shorthand for an "error" field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Backend is the interface for log output backends
type Backend interface {
	Write(entry *Entry) error
	Close() error
}

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // text, json
	Component string // Default component name
}

// standardLogger is the default implementation of Logger
type standardLogger struct {
	level     LogLevel
	backends  []Backend
	emitter   *Emitter
	component string
	fields    map[string]interface{}
	mu        sync.RWMutex
}

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a string to a LogLevel
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// New creates a new logger with the given configuration and backends
func New(config Config, backends []Backend, emitter *Emitter) Logger {
	return &standardLogger{
		level:     ParseLevel(config.Level),
		backends:  backends,
		emitter:   emitter,
		component: config.Component,
		fields:    make(map[string]interface{}),
	}
}

// Debug logs a debug message
func (l *standardLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message
func (l *standardLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message
func (l *standardLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message
func (l *standardLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

// Log logs a message at a level decided by the caller
func (l *standardLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.log(level, msg, fields...)
}

// With creates a child logger with preset fields.
// A "component" field replaces the component instead of becoming a field.
func (l *standardLogger) With(fields ...Field) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	child := &standardLogger{
		level:     l.level,
		backends:  l.backends,
		emitter:   l.emitter,
		component: l.component,
		fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}

	for _, f := range fields {
		if f.Key == "component" {
			if s, ok := f.Value.(string); ok {
				child.component = s
				continue
			}
		}
		child.fields[f.Key] = f.Value
	}

	return child
}

// log is the internal method that performs the actual logging
func (l *standardLogger) log(level LogLevel, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	// Merge preset fields with new fields
	mergedFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		mergedFields[k] = v
	}
	for _, f := range fields {
		mergedFields[f.Key] = f.Value
	}

	entry := NewEntry(level.String(), l.component, msg, mergedFields)

	for _, backend := range l.backends {
		if err := backend.Write(entry); err != nil {
			// Log backend errors to stderr (fallback)
			fmt.Fprintf(os.Stderr, "Logger backend error: %v\n", err)
		}
	}

	if l.emitter != nil {
		l.emitter.Emit(entry)
	}
}

// Global logger instance
var (
	stdMu         sync.RWMutex
	std           Logger
	stdBackends   []Backend
	globalEmitter *Emitter
)

// Init initializes the global logger
func Init(config Config, backends []Backend, emitter *Emitter) {
	stdMu.Lock()
	defer stdMu.Unlock()
	globalEmitter = emitter
	stdBackends = backends
	std = New(config, backends, emitter)
}

// Close closes every backend handed to Init and resets the global logger.
func Close() error {
	stdMu.Lock()
	defer stdMu.Unlock()

	var firstErr error
	for _, b := range stdBackends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	std = nil
	stdBackends = nil
	globalEmitter = nil
	return firstErr
}

// GetEmitter returns the global emitter for subscription
func GetEmitter() *Emitter {
	stdMu.RLock()
	defer stdMu.RUnlock()
	return globalEmitter
}

// L returns the global logger, or a logger without backends before Init.
func L() Logger {
	stdMu.RLock()
	defer stdMu.RUnlock()
	if std == nil {
		return New(Config{}, nil, nil)
	}
	return std
}

// With returns a child of the global logger
func With(fields ...Field) Logger {
	return L().With(fields...)
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	L().Debug(msg, fields...)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	L().Info(msg, fields...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	L().Warn(msg, fields...)
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	L().Error(msg, fields...)
}
