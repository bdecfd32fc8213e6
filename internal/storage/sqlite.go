// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/aleopantest/aleopantest/internal/tools"
)

// DefaultDBPath is the history database location.
var DefaultDBPath = filepath.Join("output", "history.db")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tool_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	envelope   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_tool ON runs(tool_id, id);
`

// SQLiteHistory stores envelopes as JSON rows.
type SQLiteHistory struct {
	db *sql.DB
}

// OpenSQLite opens (and creates) the history database at path. The special
// path ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteHistory, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteHistory{db: db}, nil
}

func (h *SQLiteHistory) Save(ctx context.Context, toolID string, env *tools.Envelope) error {
	if env == nil {
		return errors.New("nil envelope")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO runs (tool_id, status, created_at, envelope) VALUES (?, ?, ?, ?)`,
		toolID, string(env.Execution.Status), time.Now().UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (h *SQLiteHistory) Latest(ctx context.Context, toolID string) (*tools.Envelope, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT envelope FROM runs WHERE tool_id = ? ORDER BY id DESC LIMIT 1`, toolID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load run: %w", err)
	}
	return decodeEnvelope(raw)
}

func (h *SQLiteHistory) List(ctx context.Context, toolID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, tool_id, status, created_at, envelope FROM runs`
	args := []any{}
	if toolID != "" {
		query += ` WHERE tool_id = ?`
		args = append(args, toolID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			status  string
			created int64
			raw     string
		)
		if err := rows.Scan(&e.ID, &e.ToolID, &status, &created, &raw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Status = tools.Status(status)
		e.CreatedAt = time.Unix(0, created)
		if e.Envelope, err = decodeEnvelope(raw); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func decodeEnvelope(raw string) (*tools.Envelope, error) {
	var env tools.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}
