// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// run.go - the run command: flags to parameters, execution, export, report
// bridge and the --serve redirect listener.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/export"
	"github.com/aleopantest/aleopantest/internal/redirect"
	"github.com/aleopantest/aleopantest/internal/server"
	"github.com/aleopantest/aleopantest/internal/session"
	"github.com/aleopantest/aleopantest/internal/tools"
)

const runUsage = "run <tool_id> [--param value ...] [--output PATH] [--report URL] [--interactive] [--serve]"

// runSwitches never take a value.
var runSwitches = []string{"interactive", "serve", "generate-qr", "authorized", "test-payloads", "reverse"}

// cliOnlyFlags steer the command and are not passed to the tool.
var cliOnlyFlags = map[string]bool{
	"output":      true,
	"report":      true,
	"interactive": true,
	"serve":       true,
	"bind":        true,
}

// keepDashes are names the alias tables expect in their dashed spelling.
var keepDashes = map[string]bool{"search-engine": true}

// shutdownGrace bounds listener shutdown.
const shutdownGrace = 5 * time.Second

// ParamName maps a flag name to its parameter name: dashes become
// underscores except for the names the alias tables match verbatim.
func ParamName(flag string) string {
	if keepDashes[flag] {
		return flag
	}
	return strings.ReplaceAll(flag, "-", "_")
}

// ToolParams collects every non-CLI flag as a tool parameter. Values stay
// strings (or booleans for bare switches); the pipeline coerces them against
// the form schema.
func ToolParams(p *ArgParser) tools.Params {
	params := make(tools.Params)
	for _, name := range p.Names() {
		if cliOnlyFlags[name] {
			continue
		}
		v, _ := p.Value(name)
		params[ParamName(name)] = v
	}
	return params
}

// Run executes one tool. A tool that fails is reported through its envelope
// and is not an error here.
func (a *App) Run(ctx context.Context, raw []string) error {
	p := NewArgParser(raw, runSwitches...)
	toolID := p.Positional(0)
	if toolID == "" {
		return missingArg("tool id", runUsage)
	}
	if extra := p.PositionalFrom(1); len(extra) > 0 {
		return &UsageError{Msg: fmt.Sprintf("unexpected argument %q (parameters are passed as --name value)", extra[0])}
	}

	meta, err := a.Registry.Lookup(toolID)
	if err != nil {
		return a.lookupError(toolID, err)
	}

	params := ToolParams(p)
	interactive := p.BoolFlag("interactive")
	if interactive {
		if params, err = a.promptParams(meta, params); err != nil {
			return err
		}
	}

	var svc *redirect.Service
	if p.BoolFlag("serve") {
		if svc, err = a.startRedirect(toolID, params, p.FlagOrDefault("bind", "127.0.0.1")); err != nil {
			return err
		}
		defer a.stopRedirect(svc)
	}

	env, err := a.Orchestrator.Execute(ctx, tools.Request{
		ToolID:      toolID,
		Target:      p.Flag("target"),
		Params:      params,
		Interactive: interactive,
	})
	if err != nil {
		return err
	}

	if err := a.printEnvelope(env); err != nil {
		return err
	}

	if path := p.Flag("output"); path != "" {
		if err := export.Write(path, env); err != nil {
			return &CommandError{Command: "run", Action: "export " + path, Err: err}
		}
		fmt.Fprintf(a.ErrOut, "%s saved to %s\n", SuccessStyle.Render("Result"), path)
	}

	if target := p.Flag("report"); target != "" {
		if err := a.postReport(ctx, target, env); err != nil {
			fmt.Fprintf(a.ErrOut, "%s report not delivered: %v\n", WarningStyle.Render("[WARN]"), err)
		} else {
			fmt.Fprintf(a.ErrOut, "%s report sent to %s\n", SuccessStyle.Render("[OK]"), target)
		}
	}

	if svc != nil && !env.Failed() {
		return a.serveUntilDone(ctx, svc)
	}
	return nil
}

func (a *App) printEnvelope(env *tools.Envelope) error {
	if a.JSON {
		data, err := env.JSON()
		if err != nil {
			return err
		}
		return writeJSONOut(a.Out, data)
	}
	renderEnvelope(a.Out, env)
	return nil
}

// lookupError turns a registry miss into a not-found with a suggestion.
func (a *App) lookupError(toolID string, err error) error {
	if !errors.Is(err, tools.ErrToolNotFound) {
		return err
	}
	nf := &NotFoundError{Resource: "tool", ID: toolID, Hint: "see 'aleopantest list-tools'"}
	if s := suggest(toolID, a.Registry.IDs()); s != "" {
		nf.Hint = "did you mean '" + s + "'?"
	}
	return nf
}

func (a *App) promptParams(meta tools.Metadata, params tools.Params) (tools.Params, error) {
	pr, err := a.NewPrompter()
	if err != nil {
		return nil, err
	}
	defer pr.Close()
	return promptMissing(pr, meta, params, a.ErrOut)
}

// =============================================================================
// REDIRECT LISTENER
// =============================================================================

// startRedirect binds the listener that serves the links url-shorten and
// url-mask create. It starts before the tool runs so links work at once.
func (a *App) startRedirect(toolID string, params tools.Params, host string) (*redirect.Service, error) {
	var svc *redirect.Service
	switch toolID {
	case "url-shorten":
		svc = a.Shortener
	case "url-mask":
		svc = a.Masker
	default:
		return nil, &UsageError{Msg: "--serve is only supported by url-shorten and url-mask"}
	}

	port := a.Config.Redirect.Port
	if raw, ok := params["port"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(raw)))
		if err != nil {
			return nil, &UsageError{Msg: fmt.Sprintf("--port must be an integer (got %v)", raw)}
		}
		port = n
	}
	if err := svc.Start(net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
		return nil, &CommandError{Command: "run", Action: "start redirect listener", Err: err}
	}
	return svc, nil
}

func (a *App) stopRedirect(svc *redirect.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("redirect shutdown")
	}
}

// serveUntilDone blocks until the user interrupts or the session quota runs
// out. Quota expiry is a normal end; an interrupt exits 130.
func (a *App) serveUntilDone(ctx context.Context, svc *redirect.Service) error {
	fmt.Fprintf(a.ErrOut, "%s redirects on http://%s (session %s left, Ctrl-C to stop)\n",
		SuccessStyle.Render("Serving"), svc.Addr(), session.FormatClock(a.Governor.Remaining()))

	select {
	case <-ctx.Done():
		fmt.Fprintln(a.ErrOut, DimStyle.Render("Interrupted, stopping redirect listener"))
		return ctx.Err()
	case <-a.Governor.Expired():
		fmt.Fprintln(a.ErrOut, WarningStyle.Render("Session quota exhausted, stopping redirect listener"))
		return nil
	}
}

// =============================================================================
// REPORT BRIDGE
// =============================================================================

// reportURL accepts a bare base ("http://127.0.0.1:8002") or the full
// report endpoint.
func reportURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &UsageError{Msg: fmt.Sprintf("--report needs an http(s) URL (got %q)", raw)}
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = server.APIPrefix + "/report"
	}
	return u.String(), nil
}

// postReport sends env to a running web frontend's report bridge.
func (a *App) postReport(ctx context.Context, target string, env *tools.Envelope) error {
	endpoint, err := reportURL(target)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
