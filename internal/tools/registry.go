// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Factory builds a fresh tool instance. Each invocation gets its own.
type Factory func() Tool

// Probe checks an optional capability (privileges, OS support) at
// registration time.
type Probe func() error

// =============================================================================
// TOOL REGISTRY
// =============================================================================

type entry struct {
	id      string
	factory Factory
	meta    Metadata
	loadErr error
	order   int
}

// Registry maps tool ids to factories. A tool that fails to load is kept out
// of listings but never takes the rest of the registry down.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	next    int
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry logging to logger.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds a tool under id. The factory is invoked once to read
// metadata; a panic, a nil tool or a failing probe marks the id unavailable.
// Re-registering an id replaces the previous entry.
func (r *Registry) Register(id string, factory Factory, probes ...Probe) {
	e := &entry{id: id, factory: factory}
	e.meta, e.loadErr = loadMetadata(factory)
	if e.loadErr == nil {
		for _, probe := range probes {
			if err := probe(); err != nil {
				e.loadErr = err
				break
			}
		}
	}
	e.meta.ID = id

	if e.loadErr != nil {
		r.logger.Warn().Str("tool", id).Err(e.loadErr).Msg("tool unavailable")
	} else {
		r.logger.Debug().Str("tool", id).Str("category", string(e.meta.Category)).Msg("tool registered")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[id]; ok {
		e.order = old.order
	} else {
		e.order = r.next
		r.next++
	}
	r.entries[id] = e
}

func loadMetadata(factory Factory) (meta Metadata, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during load: %v", rec)
		}
	}()
	if factory == nil {
		return Metadata{}, errors.New("nil factory")
	}
	t := factory()
	if t == nil || t.Instance() == nil {
		return Metadata{}, errors.New("factory returned nil")
	}
	return t.Metadata(), nil
}

// Lookup returns the metadata for id. Unavailable tools are reported with
// ErrToolUnavailable.
func (r *Registry) Lookup(id string) (Metadata, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	if e.loadErr != nil {
		return e.meta.Clone(), Framework(ErrToolUnavailable.Error()+": "+id, errors.Join(ErrToolUnavailable, e.loadErr))
	}
	return e.meta.Clone(), nil
}

// New returns a fresh instance of tool id.
func (r *Registry) New(id string) (Tool, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	if e.loadErr != nil {
		return nil, Framework(ErrToolUnavailable.Error()+": "+id, errors.Join(ErrToolUnavailable, e.loadErr))
	}

	t, err := instantiate(e.factory)
	if err != nil {
		return nil, Framework(ErrToolUnavailable.Error()+": "+id, errors.Join(ErrToolUnavailable, err))
	}
	t.Instance().setID(id)
	return t, nil
}

func instantiate(factory Factory) (t Tool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			t, err = nil, fmt.Errorf("panic during load: %v", rec)
		}
	}()
	t = factory()
	if t == nil || t.Instance() == nil {
		return nil, errors.New("factory returned nil")
	}
	return t, nil
}

// =============================================================================
// LISTINGS
// =============================================================================

// Group is one category section of a listing.
type Group struct {
	Category Category
	Tools    []Metadata
}

// available returns loadable entries in registration order.
func (r *Registry) available() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.loadErr == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// List returns available tools grouped by category, categories in display
// order, tools in registration order. Empty categories are omitted.
func (r *Registry) List() []Group {
	byCat := r.ByCategory()
	groups := make([]Group, 0, len(byCat))
	for _, c := range AllCategories() {
		if metas := byCat[c]; len(metas) > 0 {
			groups = append(groups, Group{Category: c, Tools: metas})
		}
	}
	return groups
}

// ByCategory returns available tools keyed by category.
func (r *Registry) ByCategory() map[Category][]Metadata {
	out := make(map[Category][]Metadata)
	for _, e := range r.available() {
		out[e.meta.Category] = append(out[e.meta.Category], e.meta.Clone())
	}
	return out
}

// Counts returns the number of available tools per category.
func (r *Registry) Counts() map[Category]int {
	out := make(map[Category]int)
	for _, e := range r.available() {
		out[e.meta.Category]++
	}
	return out
}

// IDs returns available tool ids in registration order.
func (r *Registry) IDs() []string {
	entries := r.available()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// Len returns the number of available tools.
func (r *Registry) Len() int {
	return len(r.available())
}

// Unavailable returns the load error of each tool that failed to load.
func (r *Registry) Unavailable() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error)
	for id, e := range r.entries {
		if e.loadErr != nil {
			out[id] = e.loadErr
		}
	}
	return out
}
