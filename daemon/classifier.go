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
	"regexp"

	"github.com/we-are-mono/utunguard/daemon/logger"
)

// engineLinePattern matches the engine's logrus-style text output:
//
//	time="2025-01-02T15:04:05.123456789+08:00" level=info msg="..."
//
// Capture groups: date-time, first three fractional digits, UTC offset,
// level token, message.
var engineLinePattern = regexp.MustCompile(
	`time="(.*?)\.(\d{3})\d*([+-]\d{2}:\d{2})"\s+level=(\w+)\s+msg="(.*?)"`)

// engineLevels maps engine level tokens to log levels. Case-sensitive.
var engineLevels = map[string]logger.LogLevel{
	"debug":   logger.LevelDebug,
	"info":    logger.LevelInfo,
	"warning": logger.LevelWarn,
	"error":   logger.LevelError,
}

// Event is the structured view of one engine output line
type Event struct {
	Time    string
	Level   logger.LogLevel
	Message string
}

// Classify parses a raw engine line. It reports false when the line does not
// carry the structured time/level/msg triple.
func Classify(line string) (Event, bool) {
	m := engineLinePattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	return Event{
		Time:    m[1] + "." + m[2] + m[3],
		Level:   EngineLevel(m[4]),
		Message: m[5],
	}, true
}

// EngineLevel maps an engine level token, defaulting to info
func EngineLevel(token string) logger.LogLevel {
	if lvl, ok := engineLevels[token]; ok {
		return lvl
	}
	return logger.LevelInfo
}
