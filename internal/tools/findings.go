// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

// Finding is one entry of a tool's results. Each tool defines its own
// variants; the envelope serializes them as plain JSON objects.
type Finding interface {
	Kind() string
}

// NoFindings is the synthetic entry emitted when a run produced nothing.
type NoFindings struct {
	Info   string `json:"info" yaml:"info"`
	Status string `json:"status" yaml:"status"`
}

func (NoFindings) Kind() string { return "no_findings" }

// Record is a free-form finding for tools whose output has no fixed shape.
type Record map[string]any

func (Record) Kind() string { return "record" }

// Notice is a single human-readable result line.
type Notice struct {
	Message string `json:"message" yaml:"message"`
}

func (Notice) Kind() string { return "notice" }

func secureFinding(toolName string) NoFindings {
	return NoFindings{
		Info:   "No findings reported by " + toolName,
		Status: "SECURE",
	}
}

func incompleteFinding() NoFindings {
	return NoFindings{
		Info:   "No results produced",
		Status: "INCOMPLETE",
	}
}
