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

// Package journal stores emitted log entries in SQLite so earlier runs can
// be inspected with `utunguard history`.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite3 driver

	"github.com/we-are-mono/utunguard/daemon/logger"
)

const queueSize = 1024

// Record is a stored log entry
type Record struct {
	ID        int64
	Session   string
	Timestamp string
	Level     string
	Component string
	Message   string
	Fields    string // JSON object
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Level     string
	Component string
	Session   string
	Limit     int
}

// Session summarizes one utunguard run
type Session struct {
	ID      string
	Started string
	Ended   string
	Entries int
}

// Journal writes log entries to SQLite from a single writer goroutine.
// It implements logger.Subscriber; entries are queued and dropped when the
// queue is full so logging never waits on disk.
type Journal struct {
	path    string
	db      *sql.DB
	session string

	mu     sync.RWMutex
	closed bool
	queue  chan *logger.Entry
	done   chan struct{}

	dropped  atomic.Int64
	writeErr error
}

// Open opens or creates the journal at path with a fresh session id.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection: the writer and readers share it, SQLite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{
		path:    path,
		db:      db,
		session: uuid.NewString(),
		queue:   make(chan *logger.Entry, queueSize),
		done:    make(chan struct{}),
	}

	if err := j.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}

	go j.writer()
	return j, nil
}

func (j *Journal) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session    TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			level      TEXT NOT NULL,
			component  TEXT NOT NULL,
			message    TEXT NOT NULL,
			fields     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_logs_session ON logs(session);
		CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
		CREATE INDEX IF NOT EXISTS idx_logs_component ON logs(component);
	`

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create logs table: %w", err)
	}
	return nil
}

// Path returns the database file path
func (j *Journal) Path() string {
	return j.path
}

// SessionID identifies the entries written through this journal
func (j *Journal) SessionID() string {
	return j.session
}

// Dropped returns how many entries were discarded on a full queue
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// OnLogEvent queues entry for writing. It never blocks.
func (j *Journal) OnLogEvent(entry *logger.Entry) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil
	}

	select {
	case j.queue <- entry:
	default:
		j.dropped.Add(1)
	}
	return nil
}

func (j *Journal) writer() {
	defer close(j.done)

	for entry := range j.queue {
		if err := j.insert(entry); err != nil && j.writeErr == nil {
			j.writeErr = err
		}
	}
}

func (j *Journal) insert(entry *logger.Entry) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	insertSQL := `INSERT INTO logs (session, timestamp, level, component, message, fields) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := j.db.Exec(insertSQL, j.session, entry.Timestamp, entry.Level, entry.Component, entry.Message, string(fields)); err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

// Close stops accepting entries, writes everything queued and closes the
// database. The first write failure, if any, is returned. Entries dropped
// on a full queue are reported by Dropped.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return j.writeErr
}

// Query returns matching records, newest first.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Record, error) {
	query := "SELECT id, session, timestamp, level, component, message, fields FROM logs WHERE 1=1"
	args := []interface{}{}

	if f.Level != "" {
		query += " AND level = ?"
		args = append(args, f.Level)
	}
	if f.Component != "" {
		query += " AND component = ?"
		args = append(args, f.Component)
	}
	if f.Session != "" {
		query += " AND session = ?"
		args = append(args, f.Session)
	}

	query += " ORDER BY id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var fields sql.NullString
		if err := rows.Scan(&r.ID, &r.Session, &r.Timestamp, &r.Level, &r.Component, &r.Message, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		r.Fields = fields.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return records, nil
}

// Sessions lists recorded runs, most recent first.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT session, MIN(timestamp), MAX(timestamp), COUNT(*), MAX(id) AS last
		FROM logs GROUP BY session ORDER BY last DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var last int64
		if err := rows.Scan(&s.ID, &s.Started, &s.Ended, &s.Entries, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Prune keeps the newest keep records and deletes the rest.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	res, err := j.db.ExecContext(ctx,
		`DELETE FROM logs WHERE id <= (SELECT id FROM logs ORDER BY id DESC LIMIT 1 OFFSET ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune logs: %w", err)
	}
	return res.RowsAffected()
}
