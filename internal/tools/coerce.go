// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Coerce converts every declared form field present in params to its
// declared type and fills missing fields that carry a default. It returns a
// new mapping plus one warning per value that could not be converted.
//
// Failed conversions keep the raw value, except number and float fields,
// which fall back to the declared default (or zero) so downstream code can
// rely on their type.
func Coerce(schema []Field, params Params) (Params, []string) {
	out := params.Clone()
	var warnings []string

	for _, f := range schema {
		v, present := out[f.Name]
		if !present || v == nil {
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		coerced, err := coerceValue(f.Type.kind(), v)
		if err == nil {
			out[f.Name] = coerced
			continue
		}

		switch f.Type.kind() {
		case FieldNumber:
			fallback := 0
			if n, ok := toInt(f.Default); ok {
				fallback = n
			}
			out[f.Name] = fallback
			warnings = append(warnings, fmt.Sprintf("%s: %v; using %d", f.Name, err, fallback))
		case FieldFloat:
			fallback := 0.0
			if n, ok := toFloat(f.Default); ok {
				fallback = n
			}
			out[f.Name] = fallback
			warnings = append(warnings, fmt.Sprintf("%s: %v; using %g", f.Name, err, fallback))
		default:
			warnings = append(warnings, fmt.Sprintf("%s: %v; keeping raw value", f.Name, err))
		}
	}
	return out, warnings
}

func coerceValue(kind FieldType, v any) (any, error) {
	switch kind {
	case FieldNumber:
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return 0, nil
		}
		if n, ok := toInt(v); ok {
			return n, nil
		}
		return nil, fmt.Errorf("cannot convert %q to integer", stringify(v))

	case FieldFloat:
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return 0.0, nil
		}
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("cannot convert %q to float", stringify(v))

	case FieldBoolean:
		return truthy(v), nil

	case FieldJSON:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		if strings.TrimSpace(s) == "" {
			return map[string]any{}, nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return parsed, nil

	case FieldDate:
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02"), nil
		}
		return strings.TrimSpace(stringify(v)), nil

	case FieldList:
		return toList(v), nil

	default:
		return stringify(v), nil
	}
}
