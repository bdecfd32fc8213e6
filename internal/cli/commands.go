// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - catalog, history, export and config commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/export"
	"github.com/aleopantest/aleopantest/internal/session"
	"github.com/aleopantest/aleopantest/internal/storage"
	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// CATALOG
// =============================================================================

// ListTools prints every available tool grouped by category.
func (a *App) ListTools() error {
	groups := a.Registry.List()
	if a.JSON {
		return NewJSONResponse("list-tools", groupsJSON(groups)).Write(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s\n\n", TitleStyle.Render("Available tools"), DimStyle.Render(fmt.Sprintf("(%d)", a.Registry.Len())))
	renderGroups(a.Out, groups)
	return nil
}

// groupJSON keeps display order, which a category-keyed map would lose.
type groupJSON struct {
	Category tools.Category   `json:"category"`
	Title    string           `json:"title"`
	Tools    []tools.Metadata `json:"tools"`
}

func groupsJSON(groups []tools.Group) []groupJSON {
	out := make([]groupJSON, len(groups))
	for i, g := range groups {
		out[i] = groupJSON{Category: g.Category, Title: g.Category.Title(), Tools: g.Tools}
	}
	return out
}

// InfoReport is the data of the info command.
type InfoReport struct {
	Total       int                    `json:"total"`
	Categories  map[tools.Category]int `json:"categories"`
	Unavailable map[string]string      `json:"unavailable,omitempty"`
	Platform    string                 `json:"platform"`
	MaxThreads  int                    `json:"max_threads"`
	Session     session.Status         `json:"session"`
}

// Info prints tool counts per category plus platform and session facts.
func (a *App) Info() error {
	report := InfoReport{
		Total:      a.Registry.Len(),
		Categories: a.Registry.Counts(),
		Platform:   a.Platform.String(),
		MaxThreads: a.Governor.MaxThreads(),
		Session:    a.Governor.GetStatus(),
	}
	if un := a.Registry.Unavailable(); len(un) > 0 {
		report.Unavailable = make(map[string]string, len(un))
		for id, err := range un {
			report.Unavailable[id] = err.Error()
		}
	}
	if a.JSON {
		return NewJSONResponse("info", report).Write(a.Out)
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("aleopantest "+Version))
	fmt.Fprintln(a.Out, RenderSeparator(40))
	for _, c := range tools.AllCategories() {
		if n := report.Categories[c]; n > 0 {
			fmt.Fprintf(a.Out, "%s%d\n", RenderLabel(c.Title()), n)
		}
	}
	fmt.Fprintln(a.Out, RenderSeparator(40))
	fmt.Fprintf(a.Out, "%s%d\n", RenderLabel("Total"), report.Total)
	for id, msg := range report.Unavailable {
		fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Unavailable"), WarningStyle.Render(id+": "+msg))
	}
	fmt.Fprintln(a.Out)
	fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Platform"), report.Platform)
	fmt.Fprintf(a.Out, "%s%d\n", RenderLabel("Max threads"), report.MaxThreads)
	fmt.Fprintf(a.Out, "%s%s (quota %s)\n", RenderLabel("Session"), report.Session.SessionID, session.FormatClock(a.Governor.Quota()))
	return nil
}

// HelpTool prints the metadata of one tool.
func (a *App) HelpTool(raw []string) error {
	p := NewArgParser(raw)
	toolID := p.Positional(0)
	if toolID == "" {
		return missingArg("tool id", "help-tool <tool_id>")
	}
	meta, err := a.Registry.Lookup(toolID)
	if err != nil && errors.Is(err, tools.ErrToolNotFound) {
		return a.lookupError(toolID, err)
	}
	if a.JSON {
		return NewJSONResponse("help-tool", meta).Write(a.Out)
	}
	fmt.Fprint(a.Out, renderMarkdown(toolMarkdown(meta)))
	if err != nil {
		fmt.Fprintf(a.Out, "%s %v\n", WarningStyle.Render("[UNAVAILABLE]"), err)
	}
	return nil
}

// ListByCategory prints one category, or all of them for "all" or nothing.
func (a *App) ListByCategory(raw []string) error {
	p := NewArgParser(raw)
	name := strings.ToLower(p.FlagOrDefault("category", p.Positional(0)))
	if name == "" || name == "all" {
		return a.ListTools()
	}

	cat, err := tools.ParseCategory(name)
	if err != nil {
		names := make([]string, 0, len(tools.AllCategories()))
		for _, c := range tools.AllCategories() {
			names = append(names, string(c))
		}
		return &NotFoundError{Resource: "category", ID: name, Hint: "one of: all, " + strings.Join(names, ", ")}
	}

	metas := a.Registry.ByCategory()[cat]
	if a.JSON {
		return NewJSONResponse("list-by-category", groupJSON{Category: cat, Title: cat.Title(), Tools: metas}).Write(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s\n", SectionStyle.Render(cat.Title()), DimStyle.Render(fmt.Sprintf("(%d)", len(metas))))
	if len(metas) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("  no tools in this category"))
		return nil
	}
	renderToolTable(a.Out, metas)
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

// ConfigShow prints the effective configuration, or one dotted key of it.
func (a *App) ConfigShow(raw []string) error {
	p := NewArgParser(raw)
	var v any = a.Config
	if key := p.Positional(0); key != "" {
		val, err := a.Config.Get(key)
		if err != nil {
			return &NotFoundError{Resource: "config key", ID: key, Hint: "keys look like web.port or session.quota_secs"}
		}
		v = map[string]any{key: val}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeJSONOut(a.Out, data)
}

// =============================================================================
// HISTORY AND EXPORT
// =============================================================================

// ShowHistory lists stored results, newest first.
func (a *App) ShowHistory(ctx context.Context, raw []string) error {
	p := NewArgParser(raw)
	limit, err := p.FlagInt("limit", 20)
	if err != nil {
		return err
	}
	toolID := p.Positional(0)

	entries, err := a.History.List(ctx, toolID, limit)
	if err != nil {
		return &CommandError{Command: "history", Action: "read", Err: err}
	}
	if a.JSON {
		return NewJSONResponse("history", entries).Write(a.Out)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("No stored results"))
		return nil
	}

	idWidth := 7
	for _, e := range entries {
		idWidth = max(idWidth, len(e.ToolID))
	}
	for _, e := range entries {
		summary := ""
		if e.Envelope != nil {
			summary = fmt.Sprintf("%d results, %d errors", e.Envelope.Summary.TotalResults, e.Envelope.Summary.TotalErrors)
		}
		fmt.Fprintf(a.Out, "%s  %s  %s  %s\n",
			DimStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			IDStyle.Render(util.PadRight(e.ToolID, idWidth)),
			RenderStatus(e.Status),
			summary)
	}
	return nil
}

// Export writes the latest stored result of a tool in the requested format.
func (a *App) Export(ctx context.Context, raw []string) error {
	p := NewArgParser(raw)
	toolID := p.Positional(0)
	if toolID == "" {
		return missingArg("tool id", "export <tool_id> --format json|txt|yaml|md|html|pdf [--output PATH]")
	}

	path := p.Flag("output")
	format := p.Flag("format")
	if format == "" && path == "" {
		format = "json"
	}

	env, err := a.History.Latest(ctx, toolID)
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: "result", ID: toolID, Hint: "run the tool first"}
	}
	if err != nil {
		return &CommandError{Command: "export", Action: "read history", Err: err}
	}

	if path == "" {
		exp, err := export.ForFormat(format)
		if err != nil {
			return &UsageError{Msg: err.Error()}
		}
		path = filepath.Join(a.Config.General.OutputDir, "reports", export.Filename(toolID, exp, time.Now()))
	} else if format != "" && !strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), format) {
		exp, err := export.ForFormat(format)
		if err != nil {
			return &UsageError{Msg: err.Error()}
		}
		path += exp.FileExtension()
	}

	if err := export.Write(path, env); err != nil {
		return &CommandError{Command: "export", Action: "write " + path, Err: err}
	}
	if a.JSON {
		return NewJSONResponse("export", map[string]string{"tool_id": toolID, "path": path}).Write(a.Out)
	}
	fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("Exported"), path)
	return nil
}
