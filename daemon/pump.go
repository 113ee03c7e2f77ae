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
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/we-are-mono/utunguard/daemon/logger"
)

// Stream names used for the engine's output
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

const (
	maxLineSize    = 1 << 20
	readBufferSize = 64 * 1024
	pumpBuffer     = 256
)

// Stream is a named reader drained by the pump
type Stream struct {
	Name string
	R    io.Reader
}

// Line is one line of child output
type Line struct {
	Stream string
	Text   string
}

// StartPump drains every stream on its own goroutine into one channel.
// Order is preserved within a stream only. The channel is closed once every
// stream has hit EOF or a read error, or ctx is cancelled.
func StartPump(ctx context.Context, log logger.Logger, streams ...Stream) <-chan Line {
	out := make(chan Line, pumpBuffer)

	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s Stream) {
			defer wg.Done()
			drainStream(ctx, log, s, out)
		}(s)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// drainStream forwards s line by line. Lines longer than maxLineSize are
// cut at maxLineSize and the rest of the line is skipped, so reading goes on
// with the next line. Only EOF, a read error or ctx ends the stream.
func drainStream(ctx context.Context, log logger.Logger, s Stream, out chan<- Line) {
	r := bufio.NewReaderSize(s.R, readBufferSize)
	line := make([]byte, 0, readBufferSize)
	truncated := false

	for {
		chunk, err := r.ReadSlice('\n')
		if room := maxLineSize - len(line); len(chunk) > room {
			line = append(line, chunk[:room]...)
			truncated = true
		} else {
			line = append(line, chunk...)
		}

		if err == bufio.ErrBufferFull {
			continue
		}

		if len(line) > 0 {
			if truncated {
				log.Debug("Engine output line truncated",
					logger.Field{Key: "stream", Value: s.Name},
					logger.Field{Key: "limit", Value: maxLineSize})
			}

			select {
			case out <- Line{Stream: s.Name, Text: trimEOL(line)}:
			case <-ctx.Done():
				log.Debug("Stopped forwarding engine output", logger.Field{Key: "stream", Value: s.Name})
				go discard(s.R)
				return
			}
			line = line[:0]
			truncated = false
		}

		switch {
		case err == nil:
		case err == io.EOF:
			return
		default:
			log.Debug("Engine output read failed, treating as end of stream",
				logger.Field{Key: "stream", Value: s.Name}, logger.Err(err))
			// The child must never block on a full pipe nobody reads
			go discard(s.R)
			return
		}
	}
}

func trimEOL(line []byte) string {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line)
}

func discard(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}
