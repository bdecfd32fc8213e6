// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter writes the plain report.
type TextExporter struct{}

func (TextExporter) Export(env *tools.Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	return []byte(env.Text()), nil
}

func (TextExporter) FileExtension() string { return ".txt" }
func (TextExporter) MimeType() string      { return "text/plain; charset=utf-8" }

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a report suitable for tickets and wikis.
type MarkdownExporter struct{}

func (MarkdownExporter) Export(env *tools.Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	var sb strings.Builder
	info, exec := env.ToolInfo, env.Execution

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title(env)))
	if info.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", escapeMarkdown(info.Description))
	}

	sb.WriteString("| Field | Value |\n|---|---|\n")
	rows := [][2]string{
		{"Tool", env.ToolID},
		{"Category", string(info.Category)},
		{"Risk", info.RiskLevel.String()},
		{"Status", string(exec.Status)},
		{"Duration", fmt.Sprintf("%.2fs", exec.Duration)},
		{"Timestamp", exec.Timestamp},
		{"Operator", exec.Admin.Username + "@" + exec.Admin.Hostname},
		{"Session", exec.SessionID},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(&sb, "| %s | %s |\n", r[0], escapeTableCell(r[1]))
	}

	fmt.Fprintf(&sb, "\n## Results (%d)\n\n", env.Summary.TotalResults)
	for _, r := range env.Results {
		fmt.Fprintf(&sb, "- %s\n", escapeMarkdown(tools.FormatResult(r)))
	}
	sb.WriteString("\n## Errors\n\n")
	for _, e := range env.Errors {
		fmt.Fprintf(&sb, "- %s\n", escapeMarkdown(e))
	}
	sb.WriteString("\n## Warnings\n\n")
	for _, w := range env.Warnings {
		fmt.Fprintf(&sb, "- %s\n", escapeMarkdown(w))
	}
	if strings.TrimSpace(env.Output) != "" {
		sb.WriteString("\n## Transcript\n\n```\n")
		sb.WriteString(strings.ReplaceAll(env.Output, "```", "'''"))
		sb.WriteString("\n```\n")
	}
	if info.LegalDisclaimer != "" {
		fmt.Fprintf(&sb, "\n> %s\n", escapeMarkdown(info.LegalDisclaimer))
	}
	return []byte(sb.String()), nil
}

func (MarkdownExporter) FileExtension() string { return ".md" }
func (MarkdownExporter) MimeType() string      { return "text/markdown; charset=utf-8" }

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func escapeTableCell(s string) string {
	return strings.ReplaceAll(escapeMarkdown(s), "|", `\|`)
}
