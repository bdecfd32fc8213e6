// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"time"
)

//go:embed static
var staticFiles embed.FS

// started stamps Last-Modified for embedded files, which carry no mtime.
var started = time.Now()

func (s *Server) registerStatic() {
	root, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	// ServeFileFS would redirect /index.html to /, so serve the bytes.
	serve := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			data, err := fs.ReadFile(root, name)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			http.ServeContent(w, r, name, started, bytes.NewReader(data))
		}
	}
	s.mux.HandleFunc("GET /{$}", serve("index.html"))
	s.mux.HandleFunc("GET /index.html", serve("index.html"))
	s.mux.HandleFunc("GET /favicon.ico", serve("favicon.ico"))
	s.mux.Handle("GET /assets/", http.FileServerFS(root))
}
