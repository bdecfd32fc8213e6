// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// ErrNotFound is returned when no envelope exists for a tool.
var ErrNotFound = errors.New("no stored result")

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Entry is one stored invocation.
type Entry struct {
	ID        int64           `json:"id"`
	ToolID    string          `json:"tool_id"`
	Status    tools.Status    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	Envelope  *tools.Envelope `json:"envelope"`
}

// History stores envelopes. Implementations are safe for concurrent use.
type History interface {
	Save(ctx context.Context, toolID string, env *tools.Envelope) error
	// Latest returns the newest envelope for toolID.
	Latest(ctx context.Context, toolID string) (*tools.Envelope, error)
	// List returns entries newest first; an empty toolID lists every tool.
	List(ctx context.Context, toolID string, limit int) ([]Entry, error)
	Close() error
}

// =============================================================================
// MEMORY HISTORY
// =============================================================================

// MemoryHistory keeps the most recent entries in process memory.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	nextID  int64
}

// NewMemoryHistory keeps at most max entries (1000 when max <= 0).
func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = 1000
	}
	return &MemoryHistory{max: max}
}

func (m *MemoryHistory) Save(_ context.Context, toolID string, env *tools.Envelope) error {
	if env == nil {
		return errors.New("nil envelope")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if len(m.entries) >= m.max {
		m.entries = m.entries[len(m.entries)-m.max+1:]
	}
	m.entries = append(m.entries, Entry{
		ID:        m.nextID,
		ToolID:    toolID,
		Status:    env.Execution.Status,
		CreatedAt: time.Now(),
		Envelope:  env,
	})
	return nil
}

func (m *MemoryHistory) Latest(_ context.Context, toolID string) (*tools.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ToolID == toolID {
			return m.entries[i].Envelope, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryHistory) List(_ context.Context, toolID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if toolID == "" || m.entries[i].ToolID == toolID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *MemoryHistory) Close() error { return nil }
