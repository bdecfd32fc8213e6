// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// form is one text input per field of a tool's schema. Values stay strings;
// the parameter pipeline coerces them.
type form struct {
	fields []tools.Field
	inputs []textinput.Model
	focus  int
}

func newForm(meta tools.Metadata) *form {
	fields := meta.FormSchema
	if len(fields) == 0 && len(meta.Parameters) > 0 {
		names := make([]string, 0, len(meta.Parameters))
		for name := range meta.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fields = append(fields, tools.Field{Name: name, Type: tools.FieldText, Description: meta.Parameters[name]})
		}
	}

	f := &form{fields: fields, inputs: make([]textinput.Model, len(fields))}
	for i, field := range fields {
		in := textinput.New()
		in.Prompt = "> "
		in.CharLimit = 2048
		in.Placeholder = placeholder(field)
		if field.Type == tools.FieldPassword {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '*'
		}
		f.inputs[i] = in
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

func placeholder(f tools.Field) string {
	switch {
	case f.Default != nil:
		return fmt.Sprint(f.Default)
	case f.Placeholder != "":
		return f.Placeholder
	case len(f.Options) > 0:
		return strings.Join(f.Options, " | ")
	case f.Type == tools.FieldBoolean:
		return "yes | no"
	}
	return ""
}

func (f *form) empty() bool {
	return len(f.inputs) == 0
}

func (f *form) setFocus(i int) {
	if f.empty() {
		return
	}
	f.inputs[f.focus].Blur()
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *form) next() { f.setFocus(f.focus + 1) }
func (f *form) prev() { f.setFocus(f.focus - 1) }

// update forwards msg to the focused input.
func (f *form) update(msg tea.Msg) tea.Cmd {
	if f.empty() {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// params returns the non-blank values. Blank fields are left to the
// auto-filler and the schema defaults.
func (f *form) params() tools.Params {
	p := make(tools.Params)
	for i, field := range f.fields {
		if v := strings.TrimSpace(f.inputs[i].Value()); v != "" {
			p[field.Name] = v
		}
	}
	return p
}

// missing lists required fields with neither a value nor a default.
func (f *form) missing() []string {
	var names []string
	for i, field := range f.fields {
		if field.Required && field.Default == nil && strings.TrimSpace(f.inputs[i].Value()) == "" {
			names = append(names, field.Name)
		}
	}
	return names
}

func (f *form) view(width int) string {
	if f.empty() {
		return mutedStyle.Render("This tool takes no parameters. Press Enter to run.")
	}
	var sb strings.Builder
	for i, field := range f.fields {
		label := field.Label
		if label == "" {
			label = field.Name
		}
		if field.Required {
			label += "*"
		}
		style := blurredLabelStyle
		if i == f.focus {
			style = focusedLabelStyle
		}
		sb.WriteString(style.Render(label))
		if field.Description != "" {
			sb.WriteString("  " + mutedStyle.Render(util.Truncate(field.Description, width-len(label)-4)))
		}
		sb.WriteString("\n")
		f.inputs[i].Width = max(width-4, 10)
		sb.WriteString(f.inputs[i].View())
		sb.WriteString("\n\n")
	}
	return sb.String()
}
