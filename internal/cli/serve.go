// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - the web and server commands.
package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/aleopantest/aleopantest/internal/config"
	"github.com/aleopantest/aleopantest/internal/server"
)

// Serve runs the HTTP frontend until ctx is cancelled. With static set the
// embedded browser UI is served next to the API (the web command); without
// it only the API is exposed (the server command).
func (a *App) Serve(ctx context.Context, raw []string, static bool) error {
	name := "server"
	host, port := a.Config.Server.Host, a.Config.Server.Port
	if static {
		name = "web"
		host, port = a.Config.Web.Host, a.Config.Web.Port
	}

	p := NewArgParser(raw)
	host = p.FlagOrDefault("host", host)
	port, err := p.FlagInt("port", port)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Orchestrator: a.Orchestrator,
		History:      a.History,
		Logger:       a.Logger,
		Web:          a.Config.Web,
		Static:       static,
	})
	if err != nil {
		return &CommandError{Command: name, Action: "create server", Err: err}
	}
	if err := srv.Start(net.JoinHostPort(host, strconv.Itoa(port))); err != nil {
		return &CommandError{Command: name, Action: "start", Err: err}
	}
	defer a.shutdownServer(srv)

	// Links created from the browser need a listener too. A busy port only
	// costs the redirects, not the frontend.
	redirectAddr := net.JoinHostPort(host, strconv.Itoa(a.Config.Redirect.Port))
	if err := a.Shortener.Start(redirectAddr); err != nil {
		fmt.Fprintf(a.ErrOut, "%s redirect listener not started: %v\n", WarningStyle.Render("[WARN]"), err)
	} else {
		defer a.stopRedirect(a.Shortener)
	}

	if a.ConfigPath != "" {
		w, err := config.Watch(a.ConfigPath, srv.ApplyConfig, func(err error) {
			a.Logger.Warn().Err(err).Str("path", a.ConfigPath).Msg("configuration reload failed")
		})
		if err != nil {
			a.Logger.Warn().Err(err).Msg("config hot reload disabled")
		} else {
			defer w.Close()
		}
	}

	if a.JSON {
		data := map[string]any{"addr": srv.Addr(), "api": server.APIPrefix, "static": static, "session": a.Governor.SessionID()}
		if err := NewJSONResponse(name, data).Write(a.Out); err != nil {
			return err
		}
	} else {
		url := "http://" + srv.Addr()
		if static {
			fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("Web UI"), url+"/")
		}
		fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("API"), url+server.APIPrefix)
		fmt.Fprintln(a.Out, DimStyle.Render("Ctrl-C to stop"))
	}

	<-ctx.Done()
	fmt.Fprintln(a.ErrOut, DimStyle.Render("Shutting down"))
	return ctx.Err()
}

func (a *App) shutdownServer(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("http server shutdown")
	}
}
