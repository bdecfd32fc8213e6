// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - terminal rendering of envelopes, listings and tool help.
package cli

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// JSON
// =============================================================================

// writeJSONOut writes data indented, syntax highlighted on a color terminal.
func writeJSONOut(w io.Writer, data []byte) error {
	if !ColorsEnabled() {
		_, err := w.Write(append(bytes.TrimRight(data, "\n"), '\n'))
		return err
	}
	if err := highlight(w, string(data), "json"); err != nil {
		_, err = w.Write(data)
		return err
	}
	fmt.Fprintln(w)
	return nil
}

// highlight applies chroma syntax highlighting for language.
func highlight(w io.Writer, code, language string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	return formatter.Format(w, style, iterator)
}

// =============================================================================
// ENVELOPE
// =============================================================================

// renderEnvelope prints the human summary of a run. Errors and warnings are
// shown exactly as the envelope carries them.
func renderEnvelope(w io.Writer, env *tools.Envelope) {
	info := env.ToolInfo
	fmt.Fprintln(w, RenderSeparator(60))
	fmt.Fprintf(w, "%s %s  %s\n", TitleStyle.Render(info.Name), DimStyle.Render("v"+info.Version), RenderStatus(env.Execution.Status))
	fmt.Fprintln(w, RenderSeparator(60))

	fmt.Fprintf(w, "%s%s\n", RenderLabel("Tool"), IDStyle.Render(util.FirstNonEmpty(env.ToolID, info.ID)))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Category"), info.Category.Title())
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Risk"), RenderRisk(info.RiskLevel))
	fmt.Fprintf(w, "%s%.2fs (attempts: %d)\n", RenderLabel("Duration"), env.Execution.Duration, env.Execution.Attempts)
	fmt.Fprintf(w, "%s%s@%s [%s]\n", RenderLabel("Operator"), env.Execution.Admin.Username, env.Execution.Admin.Hostname, env.Execution.Admin.Env)
	if env.Execution.SessionID != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Session"), env.Execution.SessionID)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("Results (%d)", env.Summary.TotalResults)))
	for i, r := range env.Results {
		fmt.Fprintf(w, "  %s %s\n", DimStyle.Render(fmt.Sprintf("%2d.", i+1)), ValueStyle.Render(tools.FormatResult(r)))
	}

	if len(env.RealErrors()) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SectionStyle.Render("Errors"))
		for _, msg := range env.Errors {
			fmt.Fprintf(w, "  %s %s\n", ErrorStyle.Render("x"), msg)
		}
	}
	if env.Summary.TotalWarnings > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SectionStyle.Render("Warnings"))
		for _, msg := range env.Warnings {
			fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("!"), msg)
		}
	}
	if info.LegalDisclaimer != "" && info.RiskLevel.IsHigh() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, DimStyle.Render(info.LegalDisclaimer))
	}
}

// =============================================================================
// LISTINGS
// =============================================================================

// renderToolTable prints one aligned row per tool.
func renderToolTable(w io.Writer, metas []tools.Metadata) {
	idWidth := len("ID")
	for _, m := range metas {
		idWidth = max(idWidth, runewidth.StringWidth(m.ID))
	}
	descWidth := max(GetTerminalWidth()-idWidth-14, 20)

	for _, m := range metas {
		id := IDStyle.Render(util.PadRight(m.ID, idWidth))
		risk := RenderRisk(m.RiskLevel) + strings.Repeat(" ", max(0, 8-len(m.RiskLevel.String())))
		fmt.Fprintf(w, "  %s  %s  %s\n", id, risk, util.Truncate(m.Description, descWidth))
	}
}

// renderGroups prints category headers followed by their tool tables.
func renderGroups(w io.Writer, groups []tools.Group) {
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", SectionStyle.Render(g.Category.Title()), DimStyle.Render(fmt.Sprintf("(%d)", len(g.Tools))))
		renderToolTable(w, g.Tools)
	}
}

// =============================================================================
// TOOL HELP
// =============================================================================

// toolMarkdown builds the help-tool document.
func toolMarkdown(m tools.Metadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s `%s`\n\n", m.Name, m.ID)
	fmt.Fprintf(&sb, "%s\n\n", m.Description)
	fmt.Fprintf(&sb, "| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Category | %s |\n", m.Category.Title())
	fmt.Fprintf(&sb, "| Risk | %s |\n", m.RiskLevel)
	fmt.Fprintf(&sb, "| Version | %s |\n", m.Version)
	fmt.Fprintf(&sb, "| Author | %s |\n", m.Author)
	if len(m.Tags) > 0 {
		fmt.Fprintf(&sb, "| Tags | %s |\n", strings.Join(m.Tags, ", "))
	}
	if len(m.Requirements) > 0 {
		fmt.Fprintf(&sb, "| Requires | %s |\n", strings.Join(m.Requirements, ", "))
	}

	if len(m.FormSchema) > 0 {
		sb.WriteString("\n## Parameters\n\n| Flag | Type | Required | Default | Description |\n|---|---|---|---|---|\n")
		for _, f := range m.FormSchema {
			desc := util.FirstNonEmpty(f.Description, m.Parameters[f.Name], f.Label)
			if len(f.Options) > 0 {
				desc += " (" + strings.Join(f.Options, ", ") + ")"
			}
			def := ""
			if f.Default != nil {
				def = fmt.Sprint(f.Default)
			}
			req := ""
			if f.Required {
				req = "yes"
			}
			fmt.Fprintf(&sb, "| `--%s` | %s | %s | %s | %s |\n", flagName(f.Name), f.Type, req, def, desc)
		}
	} else if len(m.Parameters) > 0 {
		sb.WriteString("\n## Parameters\n\n")
		names := make([]string, 0, len(m.Parameters))
		for k := range m.Parameters {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&sb, "- `--%s`: %s\n", flagName(k), m.Parameters[k])
		}
	}

	if m.Usage != "" {
		fmt.Fprintf(&sb, "\n## Usage\n\n```\naleopantest %s\n```\n", m.Usage)
	}
	if m.Example != "" {
		fmt.Fprintf(&sb, "\n## Example\n\n```\naleopantest %s\n```\n", m.Example)
	}
	if m.LegalDisclaimer != "" {
		fmt.Fprintf(&sb, "\n> %s\n", m.LegalDisclaimer)
	}
	return sb.String()
}

// renderMarkdown renders md for the terminal, plain when colors are off.
func renderMarkdown(md string) string {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(min(GetTerminalWidth(), 100))}
	if ColorsEnabled() {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle("notty"))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// flagName is the CLI spelling of a parameter name.
func flagName(param string) string {
	return strings.ReplaceAll(param, "_", "-")
}
