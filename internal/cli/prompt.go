// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// prompt.go - line-editor prompts for run --interactive.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/peterh/liner"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// maxPromptAttempts is how often a rejected answer is asked again.
const maxPromptAttempts = 3

// Prompter reads one answer per call.
type Prompter interface {
	Prompt(label string) (string, error)
	PasswordPrompt(label string) (string, error)
	Close() error
}

type linePrompter struct {
	line *liner.State
}

func newLinePrompter() (Prompter, error) {
	if !IsTTY() {
		return nil, &UsageError{Msg: "stdin is not a terminal; cannot prompt for parameters (drop --interactive)"}
	}
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &linePrompter{line: line}, nil
}

func (p *linePrompter) Prompt(label string) (string, error) {
	answer, err := p.line.Prompt(label)
	if err == nil && strings.TrimSpace(answer) != "" {
		p.line.AppendHistory(answer)
	}
	return answer, err
}

func (p *linePrompter) PasswordPrompt(label string) (string, error) {
	return p.line.PasswordPrompt(label)
}

func (p *linePrompter) Close() error {
	return p.line.Close()
}

// promptMissing asks for every form field absent from params. Blank answers
// keep the field default. Ctrl-C cancels the run; Ctrl-D stops asking and
// leaves the remaining fields to validation.
func promptMissing(p Prompter, meta tools.Metadata, params tools.Params, out io.Writer) (tools.Params, error) {
	params = params.Clone()
	fmt.Fprintf(out, "%s %s\n", TitleStyle.Render(meta.Name), DimStyle.Render("(blank keeps the default, Ctrl-D skips the rest)"))

	for _, f := range meta.FormSchema {
		if params.Has(f.Name) {
			continue
		}
		value, err := askField(p, f, out)
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			return nil, fmt.Errorf("prompt aborted: %w", context.Canceled)
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			return params, nil
		case err != nil:
			return nil, err
		}
		if value != nil {
			params[f.Name] = value
		}
	}
	return params, nil
}

// askField returns nil when the field should keep its default.
func askField(p Prompter, f tools.Field, out io.Writer) (any, error) {
	label := fieldLabel(f)
	for attempt := 0; attempt < maxPromptAttempts; attempt++ {
		var answer string
		var err error
		if f.Type == tools.FieldPassword {
			answer, err = p.PasswordPrompt(label)
		} else {
			answer, err = p.Prompt(label)
		}
		if err != nil {
			return nil, err
		}
		answer = strings.TrimSpace(answer)

		if answer == "" {
			if f.Required && f.Default == nil {
				fmt.Fprintln(out, WarningStyle.Render("  "+f.Name+" is required"))
				continue
			}
			return nil, nil
		}
		switch f.Type {
		case tools.FieldBoolean:
			b, err := ParseBoolString(answer)
			if err != nil {
				fmt.Fprintln(out, WarningStyle.Render("  answer yes or no"))
				continue
			}
			return b, nil
		case tools.FieldSelect:
			if len(f.Options) > 0 && !slices.Contains(f.Options, answer) {
				fmt.Fprintln(out, WarningStyle.Render("  choose one of: "+strings.Join(f.Options, ", ")))
				continue
			}
		}
		return answer, nil
	}
	return nil, nil
}

func fieldLabel(f tools.Field) string {
	var sb strings.Builder
	sb.WriteString("  ")
	if f.Label != "" {
		sb.WriteString(f.Label)
	} else {
		sb.WriteString(f.Name)
	}
	if f.Required {
		sb.WriteString("*")
	}
	switch {
	case len(f.Options) > 0:
		fmt.Fprintf(&sb, " [%s]", strings.Join(f.Options, "/"))
	case f.Type == tools.FieldBoolean:
		sb.WriteString(" [y/n]")
	}
	if f.Default != nil {
		fmt.Fprintf(&sb, " (%v)", f.Default)
	} else if f.Placeholder != "" {
		fmt.Fprintf(&sb, " (e.g. %s)", f.Placeholder)
	}
	sb.WriteString(": ")
	return sb.String()
}
