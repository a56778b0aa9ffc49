// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package recorder stores received debug pages in a SQLite database
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Thermoquad/debugcast/pkg/debugchan"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT    NOT NULL,
	ts_ms   INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	raw     BLOB    NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	page_id INTEGER NOT NULL REFERENCES pages(id),
	ts_ms   INTEGER NOT NULL,
	key     INTEGER NOT NULL,
	value   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_key_ts ON samples(key, ts_ms);
`

// Page kinds stored in the pages table
const (
	KindData        = "data"
	KindErrorReport = "error"
	KindCommand     = "command"
	KindCustom      = "custom"
	KindInvalid     = "invalid"
)

// Kinds lists every page kind in display order
var Kinds = []string{KindData, KindErrorReport, KindCommand, KindCustom, KindInvalid}

// Sample is one recorded field value
type Sample struct {
	Time  time.Time
	Key   uint8
	Value uint16
}

// Recorder appends debug pages to a SQLite database.
// Every Recorder tags its pages with a fresh session id, so several
// monitor runs can share one database.
type Recorder struct {
	db      *sql.DB
	session string
}

// Open opens (or creates) the database at path
func Open(ctx context.Context, path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}
	// One writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create recorder schema: %w", err)
	}
	return &Recorder{db: db, session: uuid.NewString()}, nil
}

// Session returns the id pages recorded by r are tagged with
func (r *Recorder) Session() string {
	return r.session
}

// Close closes the database
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Classify names the kind of a debug channel message. Devices broadcast
// pages and error reports; commands travel as acknowledged messages.
func Classify(data []byte, acknowledged bool) string {
	if acknowledged {
		_, err := debugchan.ParseCommand(data)
		switch {
		case errors.Is(err, debugchan.ErrNotDebugPage):
			return KindCustom
		case err != nil || len(debugchan.ValidateMessage(data, true)) > 0:
			return KindInvalid
		}
		return KindCommand
	}
	if debugchan.IsErrorReport(data) {
		return KindErrorReport
	}
	if len(debugchan.ValidatePage(data)) > 0 {
		return KindInvalid
	}
	return KindData
}

// Record stores one received message. Field values of data pages are
// also stored as samples.
func (r *Recorder) Record(ctx context.Context, data []byte, acknowledged bool, ts time.Time) error {
	kind := Classify(data, acknowledged)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO pages (session, ts_ms, kind, raw) VALUES (?, ?, ?, ?)`,
		r.session, ts.UnixMilli(), kind, data)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}

	if kind == KindData {
		pageID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get page id: %w", err)
		}
		page, err := debugchan.ParsePage(data)
		if err != nil {
			return err
		}
		for _, pair := range page.Pairs[:page.Count] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO samples (page_id, ts_ms, key, value) VALUES (?, ?, ?, ?)`,
				pageID, ts.UnixMilli(), pair.Key, pair.Value); err != nil {
				return fmt.Errorf("failed to insert sample: %w", err)
			}
		}
	}

	return tx.Commit()
}

// History returns the most recent samples of key, oldest first
func (r *Recorder) History(ctx context.Context, key uint8, limit int) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts_ms, value FROM (
			SELECT rowid, ts_ms, value FROM samples WHERE key = ? ORDER BY ts_ms DESC, rowid DESC LIMIT ?
		) ORDER BY ts_ms ASC, rowid ASC`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			tsMs  int64
			value int64
		)
		if err := rows.Scan(&tsMs, &value); err != nil {
			return nil, err
		}
		samples = append(samples, Sample{
			Time:  time.UnixMilli(tsMs),
			Key:   key,
			Value: uint16(value),
		})
	}
	return samples, rows.Err()
}

// Count returns how many messages of kind this session recorded
func (r *Recorder) Count(ctx context.Context, kind string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE session = ? AND kind = ?`, r.session, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
