// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package redirect

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aleopantest/aleopantest/internal/util"
)

// DefaultStorePath is where the shortener keeps its table.
var DefaultStorePath = filepath.Join("output", "url_shortener", "urls.json")

// Store persists a route table.
type Store interface {
	Load() (map[string]Route, error)
	Save(routes map[string]Route) error
}

// JSONStore keeps the table as one JSON object keyed by path.
type JSONStore struct {
	path string
}

// NewJSONStore returns a store backed by path.
func NewJSONStore(path string) *JSONStore {
	if path == "" {
		path = DefaultStorePath
	}
	return &JSONStore{path: path}
}

// Path returns the backing file.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the table. A missing file is an empty table.
func (s *JSONStore) Load() (map[string]Route, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Route{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	routes := map[string]Route{}
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	for path, r := range routes {
		r.Path = path
		if r.Clicks == nil {
			r.Clicks = []Click{}
		}
		routes[path] = r
	}
	return routes, nil
}

// Save writes the whole table atomically.
func (s *JSONStore) Save(routes map[string]Route) error {
	return util.WriteJSONFile(s.path, routes, 0644)
}
