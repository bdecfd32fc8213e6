// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// reportRing keeps the newest envelopes posted by CLI runs. Oldest entries
// fall off once the ring is full.
type reportRing struct {
	mu    sync.Mutex
	items []*tools.Envelope
	max   int
}

func newReportRing(max int) *reportRing {
	return &reportRing{max: max}
}

// Push appends env and returns the number held.
func (r *reportRing) Push(env *tools.Envelope) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, env)
	if over := len(r.items) - r.max; over > 0 {
		r.items = append(r.items[:0:0], r.items[over:]...)
	}
	return len(r.items)
}

// List returns the held reports oldest first.
func (r *reportRing) List() []*tools.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*tools.Envelope, len(r.items))
	copy(out, r.items)
	return out
}

// Clear drops everything and returns how many were dropped.
func (r *reportRing) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.items)
	r.items = nil
	return n
}
