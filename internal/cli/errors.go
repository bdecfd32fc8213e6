// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - error types, display and exit codes for CLI commands.
//
// Handlers always return errors; Execute displays them once and maps them
// to an exit code. A tool that ran and failed is not an error here: its
// failure lives in the envelope and the process still exits 0.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess also covers tool runs that ended with status=failed.
	ExitSuccess = 0
	// ExitFailure is a framework error: bad usage, unknown tool, I/O.
	ExitFailure = 1
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "export"
	Action  string // e.g. "write file"
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // "tool", "category", "result"
	ID       string
	Hint     string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		displayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintln(w, DimStyle.Render("Run 'aleopantest help' for usage."))
	}
}

func displayErrorJSON(w io.Writer, err error) {
	output := map[string]any{
		"success": false,
		"error":   err.Error(),
	}

	var (
		usage    *UsageError
		cmdErr   *CommandError
		notFound *NotFoundError
	)
	switch {
	case errors.As(err, &usage):
		output["error_type"] = "usage_error"
	case errors.As(err, &notFound):
		output["error_type"] = "not_found_error"
		output["resource"] = notFound.Resource
		output["id"] = notFound.ID
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	case errors.Is(err, context.Canceled):
		output["error_type"] = "interrupted"
	default:
		output["error_type"] = "framework_error"
		if kind := tools.KindOf(err); kind != tools.KindRuntime {
			output["kind"] = kind.String()
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output)
}

// ExitCode maps the outcome of a command to the process exit status. An
// interrupted context wins over whatever error the handler returned.
func ExitCode(ctx context.Context, err error) int {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitFailure
}

// missingArg builds the usage error for an absent positional argument.
func missingArg(name, usage string) error {
	return &UsageError{Msg: fmt.Sprintf("missing %s\nUsage: aleopantest %s", name, strings.TrimSpace(usage))}
}
