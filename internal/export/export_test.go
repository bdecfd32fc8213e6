// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/tools"
)

func sampleEnvelope() *tools.Envelope {
	return &tools.Envelope{
		ToolID: "dns",
		ToolInfo: tools.Metadata{
			ID:              "dns",
			Name:            "DNS <Lookup>",
			Version:         "1.0",
			Description:     "Resolve *records*",
			Category:        tools.CategoryNetwork,
			RiskLevel:       tools.RiskLow,
			LegalDisclaimer: "Authorized use only.",
		},
		Execution: tools.Execution{
			Status:    tools.StatusCompleted,
			Duration:  1.25,
			Timestamp: "2025-01-02T15:04:05Z",
			Admin:     security.Identity{Username: "alice", Hostname: "box", Env: security.EnvDevelopment},
			SessionID: "sess-1",
		},
		Results: []any{
			tools.Record{"domain": "example.com", "a_records": []string{"93.184.216.34"}},
		},
		Errors:   []string{tools.NoneDetected},
		Warnings: []string{"slow | resolver"},
		Summary:  tools.Summary{TotalResults: 1, TotalWarnings: 1, AccuracyLevel: "high"},
		Output:   "resolving example.com\n",
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		name string
		ext  string
	}{
		{"json", ".json"},
		{"JSON", ".json"},
		{"txt", ".txt"},
		{"text", ".txt"},
		{"yml", ".yaml"},
		{"markdown", ".md"},
		{".html", ".html"},
		{"pdf", ".pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := ForFormat(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, exp.FileExtension())
			assert.NotEmpty(t, exp.MimeType())
		})
	}

	_, err := ForFormat("docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestForPath_DefaultsToJSON(t *testing.T) {
	exp, err := ForPath("out/report")
	require.NoError(t, err)
	assert.IsType(t, JSONExporter{}, exp)

	exp, err = ForPath("out/report.PDF")
	require.NoError(t, err)
	assert.IsType(t, PDFExporter{}, exp)
}

func TestExporters_RejectNil(t *testing.T) {
	for _, name := range Formats {
		exp, err := ForFormat(name)
		require.NoError(t, err)
		_, err = exp.Export(nil)
		assert.Error(t, err, name)
	}
}

func TestJSONExporter_MatchesWireShape(t *testing.T) {
	data, err := JSONExporter{}.Export(sampleEnvelope())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"tool_info", "execution", "results", "errors", "warnings", "summary", "output"} {
		assert.Contains(t, decoded, key)
	}
	exec := decoded["execution"].(map[string]any)
	assert.Equal(t, "completed", exec["status"])
}

func TestYAMLExporter(t *testing.T) {
	data, err := YAMLExporter{}.Export(sampleEnvelope())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "dns", decoded["tool_id"])
	results := decoded["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "example.com", results[0].(map[string]any)["domain"])
}

func TestTextExporter(t *testing.T) {
	data, err := TextExporter{}.Export(sampleEnvelope())
	require.NoError(t, err)
	assert.Contains(t, string(data), "example.com")
}

func TestMarkdownExporter_Escapes(t *testing.T) {
	data, err := MarkdownExporter{}.Export(sampleEnvelope())
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, "# DNS &lt;Lookup&gt;"))
	assert.Contains(t, md, `Resolve \*records\*`)
	assert.Contains(t, md, "| Operator | alice@box |")
	assert.Contains(t, md, "- slow | resolver")
	assert.Contains(t, md, "## Transcript")
	assert.Contains(t, md, "> Authorized use only.")
}

func TestHTMLExporter_Escapes(t *testing.T) {
	data, err := HTMLExporter{}.Export(sampleEnvelope())
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "DNS &lt;Lookup&gt;")
	assert.NotContains(t, page, "DNS <Lookup>")
	assert.Contains(t, page, `class="status completed"`)
	assert.Contains(t, page, "resolving example.com")
}

func TestPDFExporter(t *testing.T) {
	env := sampleEnvelope()
	env.Output = strings.Repeat("x", pdfMaxOutput+100)

	data, err := PDFExporter{}.Export(env)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestWrite_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	env := sampleEnvelope()

	for _, name := range []string{"r.json", "r.txt", "r.yaml", "r.md", "r.html", "r.pdf"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, Write(path, env), name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), name)
	}

	err := Write(filepath.Join(dir, "r.exe"), env)
	require.Error(t, err)
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "port-scan_20250102_150405.pdf", Filename("port-scan", PDFExporter{}, at))
}
