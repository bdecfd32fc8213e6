// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the envelope exactly as the HTTP API serves it.
type JSONExporter struct{}

func (JSONExporter) Export(env *tools.Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	data, err := env.JSON()
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (JSONExporter) FileExtension() string { return ".json" }
func (JSONExporter) MimeType() string      { return "application/json" }

// =============================================================================
// YAML EXPORTER
// =============================================================================

// YAMLExporter writes the envelope structure as YAML. Results go through a
// JSON round trip so tool-specific variants serialize with their wire names.
type YAMLExporter struct{}

func (YAMLExporter) Export(env *tools.Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func (YAMLExporter) FileExtension() string { return ".yaml" }
func (YAMLExporter) MimeType() string      { return "application/yaml" }
