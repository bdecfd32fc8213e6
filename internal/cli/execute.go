// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// execute.go - process entry point and command dispatch.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aleopantest/aleopantest/internal/ui/tui"
)

// Main runs the command line in argv (without the program name) and returns
// the process exit status. SIGINT and SIGTERM cancel the running command.
func Main(argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Execute(ctx, argv, os.Stdout, os.Stderr)
}

// Execute parses argv, runs the command and maps the outcome to an exit code.
func Execute(ctx context.Context, argv []string, out, errOut io.Writer) int {
	cmd, args, err := Parse(argv)
	if err != nil {
		DisplayError(errOut, err, args.JSON)
		return ExitFailure
	}
	if args.NoColor {
		ForceColorsEnabled(false)
	}

	switch cmd {
	case CmdHelp:
		PrintUsage(out)
		return ExitSuccess
	case CmdVersion:
		if args.JSON {
			if err := NewJSONResponse("version", CurrentVersion()).Write(out); err != nil {
				return ExitFailure
			}
			return ExitSuccess
		}
		PrintVersion(out)
		return ExitSuccess
	case CmdUnknown:
		err := &UsageError{Msg: fmt.Sprintf("unknown command %q", args.Name)}
		if s := SuggestCommand(args.Name); s != "" {
			err.Msg += fmt.Sprintf(" (did you mean '%s'?)", s)
		}
		DisplayError(errOut, err, args.JSON)
		return ExitFailure
	}

	app, err := NewApp(args, out, errOut)
	if err != nil {
		DisplayError(errOut, err, args.JSON)
		return ExitFailure
	}
	defer app.Close()

	err = app.Dispatch(ctx, cmd, args.Raw)
	code := ExitCode(ctx, err)
	switch {
	case code == ExitInterrupted:
		if !args.JSON {
			fmt.Fprintln(errOut, DimStyle.Render("Interrupted"))
		} else if err != nil {
			DisplayError(errOut, err, true)
		}
	case err != nil:
		app.Logger.Debug().Err(err).Str("command", cmd.String()).Msg("command failed")
		DisplayError(errOut, err, args.JSON)
	}
	return code
}

// Dispatch runs one parsed command against the wired services.
func (a *App) Dispatch(ctx context.Context, cmd Command, raw []string) error {
	switch cmd {
	case CmdListTools:
		return a.ListTools()
	case CmdInfo:
		return a.Info()
	case CmdHelpTool:
		return a.HelpTool(raw)
	case CmdListByCategory:
		return a.ListByCategory(raw)
	case CmdRun:
		return a.Run(ctx, raw)
	case CmdTUI:
		return a.TUI(ctx)
	case CmdWeb:
		return a.Serve(ctx, raw, true)
	case CmdServer:
		return a.Serve(ctx, raw, false)
	case CmdConfigShow:
		return a.ConfigShow(raw)
	case CmdHistory:
		return a.ShowHistory(ctx, raw)
	case CmdExport:
		return a.Export(ctx, raw)
	default:
		return &UsageError{Msg: "unsupported command " + cmd.String()}
	}
}

// TUI starts the terminal UI on the shared orchestrator.
func (a *App) TUI(ctx context.Context) error {
	if !IsTTY() || !IsStdoutTTY() {
		return &UsageError{Msg: "the terminal UI needs an interactive terminal; use 'run' instead"}
	}
	err := tui.Run(ctx, tui.Options{
		Registry:     a.Registry,
		Orchestrator: a.Orchestrator,
		Governor:     a.Governor,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return &CommandError{Command: "tui", Action: "run", Err: err}
	}
	return err
}
