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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/we-are-mono/utunguard/daemon/logger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   Event
	}{
		{
			name:   "nanosecond fraction truncated to millis",
			line:   `time="2025-03-04T10:11:12.123456789+08:00" level=info msg="Start initial configuration in progress"`,
			wantOK: true,
			want: Event{
				Time:    "2025-03-04T10:11:12.123+08:00",
				Level:   logger.LevelInfo,
				Message: "Start initial configuration in progress",
			},
		},
		{
			name:   "exactly three digits, negative offset",
			line:   `time="2025-03-04T10:11:12.500-05:30" level=warning msg="port in use"`,
			wantOK: true,
			want:   Event{Time: "2025-03-04T10:11:12.500-05:30", Level: logger.LevelWarn, Message: "port in use"},
		},
		{
			name:   "debug level",
			line:   `time="2025-03-04T10:11:12.0001+00:00" level=debug msg="dial tcp"`,
			wantOK: true,
			want:   Event{Time: "2025-03-04T10:11:12.000+00:00", Level: logger.LevelDebug, Message: "dial tcp"},
		},
		{
			name:   "error level",
			line:   `time="2025-03-04T10:11:12.999+01:00" level=error msg="bind failed"`,
			wantOK: true,
			want:   Event{Time: "2025-03-04T10:11:12.999+01:00", Level: logger.LevelError, Message: "bind failed"},
		},
		{
			name:   "unknown level defaults to info",
			line:   `time="2025-03-04T10:11:12.999+01:00" level=fatal msg="boom"`,
			wantOK: true,
			want:   Event{Time: "2025-03-04T10:11:12.999+01:00", Level: logger.LevelInfo, Message: "boom"},
		},
		{
			name:   "surrounding text is allowed",
			line:   `prefix time="2025-03-04T10:11:12.123+08:00"   level=info msg="[TUN] Tun adapter listening at: utun4" trailing`,
			wantOK: true,
			want:   Event{Time: "2025-03-04T10:11:12.123+08:00", Level: logger.LevelInfo, Message: "[TUN] Tun adapter listening at: utun4"},
		},
		{
			name:   "no calendar validation",
			line:   `time="9999-99-99T99:99:99.123+99:99" level=info msg="x"`,
			wantOK: true,
			want:   Event{Time: "9999-99-99T99:99:99.123+99:99", Level: logger.LevelInfo, Message: "x"},
		},
		{
			name:   "empty message",
			line:   `time="2025-03-04T10:11:12.123+08:00" level=info msg=""`,
			wantOK: true,
			want:   Event{Time: "2025-03-04T10:11:12.123+08:00", Level: logger.LevelInfo, Message: ""},
		},
		{name: "plain text", line: "mihomo Meta v1.19.0 darwin arm64", wantOK: false},
		{name: "empty line", line: "", wantOK: false},
		{name: "fraction shorter than three digits", line: `time="2025-03-04T10:11:12.12+08:00" level=info msg="x"`, wantOK: false},
		{name: "missing offset", line: `time="2025-03-04T10:11:12.123Z" level=info msg="x"`, wantOK: false},
		{name: "fields out of order", line: `level=info time="2025-03-04T10:11:12.123+08:00" msg="x"`, wantOK: false},
		{name: "unquoted message", line: `time="2025-03-04T10:11:12.123+08:00" level=info msg=x`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Equal(t, Event{}, got)
			}
		})
	}
}

func TestEngineLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.LevelDebug,
		"info":    logger.LevelInfo,
		"warning": logger.LevelWarn,
		"error":   logger.LevelError,
		"warn":    logger.LevelInfo,
		"Debug":   logger.LevelInfo,
		"ERROR":   logger.LevelInfo,
		"silent":  logger.LevelInfo,
		"":        logger.LevelInfo,
	}

	for token, want := range tests {
		assert.Equal(t, want, EngineLevel(token), "token %q", token)
	}
}
