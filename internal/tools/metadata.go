// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import "strings"

// =============================================================================
// FORM SCHEMA
// =============================================================================

// FieldType is the declared type of a form field. It drives both UI
// rendering and parameter coercion.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
	FieldNumber   FieldType = "number"
	FieldFloat    FieldType = "float"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldJSON     FieldType = "json"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldList     FieldType = "list"
)

// kind folds the coercion synonyms (int, integer, checkbox, array) onto the
// canonical types.
func (t FieldType) kind() FieldType {
	switch FieldType(strings.ToLower(string(t))) {
	case "number", "int", "integer":
		return FieldNumber
	case "float":
		return FieldFloat
	case "boolean", "checkbox":
		return FieldBoolean
	case "json":
		return FieldJSON
	case "date":
		return FieldDate
	case "list", "array":
		return FieldList
	case "password":
		return FieldPassword
	case "textarea":
		return FieldTextarea
	case "select":
		return FieldSelect
	default:
		return FieldText
	}
}

// Field describes one input of a tool.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label" yaml:"label"`
	Type        FieldType `json:"type" yaml:"type"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Min         *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Group       string    `json:"group,omitempty" yaml:"group,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Bound is a helper for Field.Min / Field.Max literals.
func Bound(v float64) *float64 {
	return &v
}

// =============================================================================
// METADATA
// =============================================================================

// Metadata is the immutable descriptor of a tool. Registry fills ID.
type Metadata struct {
	ID              string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string            `json:"name" yaml:"name"`
	Version         string            `json:"version" yaml:"version"`
	Author          string            `json:"author" yaml:"author"`
	Description     string            `json:"description" yaml:"description"`
	Usage           string            `json:"usage" yaml:"usage"`
	Example         string            `json:"example" yaml:"example"`
	Category        Category          `json:"category" yaml:"category"`
	Requirements    []string          `json:"requirements" yaml:"requirements"`
	Tags            []string          `json:"tags" yaml:"tags"`
	RiskLevel       RiskLevel         `json:"risk_level" yaml:"risk_level"`
	LegalDisclaimer string            `json:"legal_disclaimer" yaml:"legal_disclaimer"`
	Parameters      map[string]string `json:"parameters" yaml:"parameters"`
	FormSchema      []Field           `json:"form_schema" yaml:"form_schema"`
}

// Field returns the form field with the given name.
func (m Metadata) Field(name string) (Field, bool) {
	for _, f := range m.FormSchema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Clone returns a deep copy so callers cannot mutate a tool's descriptor.
func (m Metadata) Clone() Metadata {
	out := m
	out.Requirements = append([]string{}, m.Requirements...)
	out.Tags = append([]string{}, m.Tags...)
	if m.Parameters != nil {
		out.Parameters = make(map[string]string, len(m.Parameters))
		for k, v := range m.Parameters {
			out.Parameters[k] = v
		}
	}
	out.FormSchema = make([]Field, len(m.FormSchema))
	for i, f := range m.FormSchema {
		f.Options = append([]string(nil), f.Options...)
		out.FormSchema[i] = f
	}
	return out
}

// HasTag reports whether the tool carries the label.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
