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
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Entry represents a single log entry with structured fields
type Entry struct {
	Timestamp string                 `json:"timestamp"` // RFC3339 format
	Level     string                 `json:"level"`     // debug, info, warn, error
	Component string                 `json:"component"` // supervisor, engine, dns, etc.
	Message   string                 `json:"message"`   // Log message
	Fields    map[string]interface{} `json:"fields"`    // Additional structured fields
}

// NewEntry creates a new log entry with the current timestamp
func NewEntry(level, component, message string, fields map[string]interface{}) *Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: component,
		Message:   message,
		Fields:    fields,
	}
}

// ToJSON returns the JSON representation of the log entry
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ToText returns a human-readable text representation of the log entry
func (e *Entry) ToText() string {
	levelStr := "[" + e.Level + "]"
	componentStr := ""
	if e.Component != "" {
		componentStr = " [" + e.Component + "]"
	}

	fieldsStr := ""
	for _, k := range e.FieldKeys() {
		fieldsStr += " " + k + "=" + jsonString(e.Fields[k])
	}

	return e.Timestamp + " " + levelStr + componentStr + " " + e.Message + fieldsStr
}

// FieldKeys returns the field names in sorted order
func (e *Entry) FieldKeys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// jsonString converts a value to a JSON string representation
func jsonString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Render formats the entry as a single line in the given format ("json" or "text")
func (e *Entry) Render(format string) (string, error) {
	if format == "json" {
		jsonBytes, err := e.ToJSON()
		if err != nil {
			return "", fmt.Errorf("failed to marshal log entry: %w", err)
		}
		return string(jsonBytes), nil
	}
	return e.ToText(), nil
}
