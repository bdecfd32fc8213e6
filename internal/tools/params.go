// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params is the untyped parameter mapping used at frontend boundaries. Tools
// turn it into their own struct with Decode once the pipeline has run.
type Params map[string]any

// Clone returns a shallow copy. Nil stays usable.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Has reports whether name is present with a non-nil, non-blank value.
func (p Params) Has(name string) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String gets a string parameter. Numbers and booleans are formatted.
func (p Params) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Int gets an integer parameter with a default value.
func (p Params) Int(name string, defaultVal int) int {
	if v, ok := p[name]; ok {
		if n, ok := toInt(v); ok {
			return n
		}
	}
	return defaultVal
}

// Float gets a float parameter with a default value.
func (p Params) Float(name string, defaultVal float64) float64 {
	if v, ok := p[name]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return defaultVal
}

// Bool gets a boolean parameter with a default value.
func (p Params) Bool(name string, defaultVal bool) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return defaultVal
	}
	return truthy(v)
}

// List gets a list parameter; comma separated strings are split.
func (p Params) List(name string) []string {
	v, ok := p[name]
	if !ok || v == nil {
		return nil
	}
	return toList(v)
}

// Decode fills a per-tool parameter struct through its json tags.
func (p Params) Decode(out any) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ValidationError{Param: "params", Message: err.Error()}
	}
	return nil
}

// =============================================================================
// SCALAR CONVERSION
// =============================================================================

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "on", "yes", "1":
			return true
		}
		return false
	case nil:
		return false
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	if l := toList(v); l != nil {
		return len(l) > 0
	}
	return true
}

func toList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		raw = make([]string, len(t))
		for i, e := range t {
			raw[i] = stringify(e)
		}
	default:
		raw = []string{stringify(t)}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
