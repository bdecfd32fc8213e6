// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS.
type HTMLExporter struct{}

func (HTMLExporter) Export(env *tools.Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	var sb strings.Builder
	name := html.EscapeString(title(env))

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s report</title>\n", name)
	sb.WriteString("    <meta name=\"generator\" content=\"aleopantest\">\n")
	sb.WriteString(reportCSS)
	sb.WriteString("</head>\n<body>\n    <div class=\"container\">\n")

	sb.WriteString(renderHeader(env))
	sb.WriteString(renderList("Results", resultLines(env), "result"))
	sb.WriteString(renderList("Errors", env.Errors, "error"))
	sb.WriteString(renderList("Warnings", env.Warnings, "warning"))
	if strings.TrimSpace(env.Output) != "" {
		fmt.Fprintf(&sb, "        <section><h2>Transcript</h2><pre>%s</pre></section>\n", html.EscapeString(env.Output))
	}

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Generated by <strong>aleopantest</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	if d := env.ToolInfo.LegalDisclaimer; d != "" {
		fmt.Fprintf(&sb, "            <p class=\"disclaimer\">%s</p>\n", html.EscapeString(d))
	}
	sb.WriteString("        </footer>\n    </div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

func (HTMLExporter) FileExtension() string { return ".html" }
func (HTMLExporter) MimeType() string      { return "text/html; charset=utf-8" }

func renderHeader(env *tools.Envelope) string {
	var sb strings.Builder
	exec := env.Execution
	status := string(exec.Status)

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s <span class=\"status %s\">%s</span></h1>\n",
		html.EscapeString(title(env)), html.EscapeString(status), html.EscapeString(strings.ToUpper(status)))
	sb.WriteString("            <div class=\"metadata\">\n")
	items := [][2]string{
		{"Category", string(env.ToolInfo.Category)},
		{"Risk", env.ToolInfo.RiskLevel.String()},
		{"Duration", fmt.Sprintf("%.2fs", exec.Duration)},
		{"Timestamp", exec.Timestamp},
		{"Operator", exec.Admin.Username + "@" + exec.Admin.Hostname},
	}
	for _, it := range items {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>%s:</strong> %s</span>\n",
			it[0], html.EscapeString(it[1]))
	}
	sb.WriteString("            </div>\n        </header>\n")
	return sb.String()
}

func resultLines(env *tools.Envelope) []string {
	lines := make([]string, len(env.Results))
	for i, r := range env.Results {
		lines[i] = tools.FormatResult(r)
	}
	return lines
}

func renderList(heading string, items []string, class string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "        <section><h2>%s</h2><ul class=\"%s\">\n", heading, class)
	for _, it := range items {
		fmt.Fprintf(&sb, "            <li>%s</li>\n", html.EscapeString(it))
	}
	sb.WriteString("        </ul></section>\n")
	return sb.String()
}

const reportCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { background: #1a1b26; color: #c0caf5; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.5; }
        .container { max-width: 960px; margin: 0 auto; padding: 2rem; }
        .header { border-bottom: 1px solid #414868; padding-bottom: 1rem; margin-bottom: 1.5rem; }
        .metadata { display: flex; flex-wrap: wrap; gap: 1rem; color: #a9b1d6; font-size: 0.9rem; }
        .status { font-size: 0.8rem; padding: 0.1rem 0.5rem; border-radius: 4px; vertical-align: middle; }
        .status.completed { background: #9ece6a; color: #1a1b26; }
        .status.failed { background: #f7768e; color: #1a1b26; }
        section { margin-bottom: 1.5rem; }
        h2 { color: #7aa2f7; font-size: 1.1rem; margin-bottom: 0.5rem; }
        ul { list-style: none; }
        li { background: #24283b; margin-bottom: 0.25rem; padding: 0.4rem 0.6rem; border-radius: 4px; font-family: "SF Mono", monospace; font-size: 0.85rem; }
        ul.error li { border-left: 3px solid #f7768e; }
        ul.warning li { border-left: 3px solid #e0af68; }
        pre { background: #24283b; padding: 1rem; border-radius: 4px; overflow-x: auto; font-size: 0.8rem; }
        .footer { color: #565f89; font-size: 0.8rem; border-top: 1px solid #414868; padding-top: 1rem; }
        .disclaimer { margin-top: 0.5rem; font-style: italic; }
    </style>
`
