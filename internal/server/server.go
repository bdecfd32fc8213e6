// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/config"
	"github.com/aleopantest/aleopantest/internal/logging"
	"github.com/aleopantest/aleopantest/internal/storage"
	"github.com/aleopantest/aleopantest/internal/tools"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// APIPrefix roots every API route.
	APIPrefix = "/aleopantest/api"

	// DefaultWebPort serves the browser frontend.
	DefaultWebPort = 8002

	// DefaultServerPort serves the API-only variant.
	DefaultServerPort = 5000

	// MaxRequestBodySize bounds JSON bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxReports is how many bridged reports are kept.
	MaxReports = 50
)

// ============================================================================
// SERVER
// ============================================================================

// Options wires a Server.
type Options struct {
	Orchestrator *tools.Orchestrator
	// History backs downloads when the tool has not run in this process.
	History storage.History
	Logger  zerolog.Logger
	// Web carries rate limits, upload rules and trusted proxies.
	Web config.WebConfig
	// Static serves the embedded browser UI next to the API.
	Static bool
}

type uploadRules struct {
	dir      string
	maxBytes int64
	allowed  []string
}

// Server is the HTTP frontend over the orchestrator.
type Server struct {
	orch    *tools.Orchestrator
	history storage.History
	logger  zerolog.Logger
	level   atomic.Int32
	static  bool

	limiter *RateLimiter
	proxies *ProxyList
	reports *reportRing

	mu     sync.RWMutex
	upload uploadRules
	latest map[string]*tools.Envelope

	mux     *http.ServeMux
	handler http.Handler

	srvMu sync.Mutex
	srv   *http.Server
	addr  string
}

// New builds a server. The orchestrator is required.
func New(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	web := opts.Web
	def := config.Default().Web
	if web.RateLimit <= 0 {
		web.RateLimit, web.RateBurst = def.RateLimit, def.RateBurst
	}
	proxies, err := ParseProxies(web.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		orch:    opts.Orchestrator,
		history: opts.History,
		logger:  opts.Logger,
		static:  opts.Static,
		limiter: NewRateLimiter(web.RateLimit, web.RateBurst),
		proxies: proxies,
		reports: newReportRing(MaxReports),
		latest:  make(map[string]*tools.Envelope),
		mux:     http.NewServeMux(),
	}
	s.level.Store(int32(opts.Logger.GetLevel()))
	s.upload = rulesFrom(web)

	s.setupRoutes()
	s.handler = Chain(
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.requestLogger, s.proxies),
		RateLimitMiddleware(s.limiter, s.proxies),
	)(s.mux)
	return s, nil
}

func rulesFrom(web config.WebConfig) uploadRules {
	def := config.Default().Web
	r := uploadRules{
		dir:      web.UploadDir,
		maxBytes: int64(web.MaxUploadMB) << 20,
		allowed:  normalizeTypes(web.AllowedTypes),
	}
	if r.dir == "" {
		r.dir = def.UploadDir
	}
	if r.maxBytes <= 0 {
		r.maxBytes = int64(def.MaxUploadMB) << 20
	}
	if len(r.allowed) == 0 {
		r.allowed = normalizeTypes(def.AllowedTypes)
	}
	return r
}

func (s *Server) requestLogger() zerolog.Logger {
	return s.logger.Level(zerolog.Level(s.level.Load()))
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ApplyConfig hot-swaps the rate limit, upload rules and log level.
// Trusted proxies and the listen address need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.limiter.SetLimit(cfg.Web.RateLimit, cfg.Web.RateBurst)
	s.level.Store(int32(logging.ParseLevel(cfg.General.LogLevel)))

	s.mu.Lock()
	s.upload = rulesFrom(cfg.Web)
	s.mu.Unlock()

	s.logger.Info().
		Float64("rate_limit", cfg.Web.RateLimit).
		Int("rate_burst", cfg.Web.RateBurst).
		Str("log_level", cfg.General.LogLevel).
		Msg("configuration reloaded")
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET "+APIPrefix+"/admin", s.handleAdmin)
	s.mux.HandleFunc("GET "+APIPrefix+"/session", s.handleSession)
	s.mux.HandleFunc("GET "+APIPrefix+"/tools", s.handleTools)
	s.mux.HandleFunc("POST "+APIPrefix+"/run", s.handleRun)
	s.mux.HandleFunc("POST "+APIPrefix+"/report", s.handleReport)
	s.mux.HandleFunc("GET "+APIPrefix+"/reports", s.handleReports)
	s.mux.HandleFunc("DELETE "+APIPrefix+"/reports", s.handleClearReports)
	s.mux.HandleFunc("POST "+APIPrefix+"/upload", s.handleUpload)
	s.mux.HandleFunc("GET "+APIPrefix+"/download/{tool_id}/{format}", s.handleDownload)
	s.mux.HandleFunc(APIPrefix+"/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown endpoint "+r.URL.Path)
	})

	if s.static {
		s.registerStatic()
	}
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens on addr and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start(addr string) error {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("server already listening on %s", s.addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	s.logger.Info().Str("addr", s.addr).Bool("static", s.static).Msg("http server listening")
	return nil
}

// Addr returns the bound address, empty when not started.
func (s *Server) Addr() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srv = nil
	s.addr = ""
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info().Msg("http server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: "error", Message: message})
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
