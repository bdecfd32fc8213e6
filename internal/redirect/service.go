// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package redirect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPort is the redirect listener port.
const DefaultPort = 8080

// Gate reports whether the session still allows redirects.
type Gate interface {
	CheckQuota() bool
}

// Options configures a Service.
type Options struct {
	// Store persists the table after every change; nil keeps it in memory.
	Store Store
	// Gate answers 403 once it reports false; nil never expires.
	Gate Gate
	// Fallback serves paths missing from this table, so one listener can
	// answer for several tables.
	Fallback http.Handler
	Logger   zerolog.Logger
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the route table plus its HTTP handler.
type Service struct {
	mu        sync.RWMutex
	routes    map[string]*Route
	callbacks map[string]Callback

	store    Store
	gate     Gate
	fallback http.Handler
	logger   zerolog.Logger
	now      func() time.Time

	srvMu sync.Mutex
	srv   *http.Server
	addr  string
}

// NewService creates a service. With a store, the persisted table is loaded
// immediately.
func NewService(opts Options) (*Service, error) {
	s := &Service{
		routes:    make(map[string]*Route),
		callbacks: make(map[string]Callback),
		store:     opts.Store,
		gate:      opts.Gate,
		fallback:  opts.Fallback,
		logger:    opts.Logger.With().Str("component", "redirect").Logger(),
		now:       time.Now,
	}
	if s.store != nil {
		routes, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		for path, r := range routes {
			r := r
			s.routes[path] = &r
		}
		s.logger.Debug().Int("routes", len(routes)).Msg("route table loaded")
	}
	return s, nil
}

// RouteOption adjusts a route on AddRoute.
type RouteOption func(*Route, *Callback)

// WithCallback registers a visit observer for the route.
func WithCallback(cb Callback) RouteOption {
	return func(_ *Route, c *Callback) { *c = cb }
}

// WithTracking enables or disables click recording (enabled by default).
func WithTracking(enabled bool) RouteOption {
	return func(r *Route, _ *Callback) { r.TrackingEnabled = enabled }
}

func normalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// AddRoute inserts or updates a route. Updating keeps the creation time and
// accumulated clicks.
func (s *Service) AddRoute(path, targetURL string, opts ...RouteOption) (Route, error) {
	path = normalizePath(path)
	if path == "" {
		return Route{}, errors.New("route path cannot be empty")
	}
	if strings.TrimSpace(targetURL) == "" {
		return Route{}, errors.New("route target cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[path]
	if !ok {
		r = &Route{
			Path:            path,
			CreatedAt:       s.now().Format(time.RFC3339),
			Clicks:          []Click{},
			TrackingEnabled: true,
		}
	}
	r.TargetURL = targetURL

	var cb Callback
	for _, opt := range opts {
		opt(r, &cb)
	}
	s.routes[path] = r
	if cb != nil {
		s.callbacks[path] = cb
	}

	if err := s.persistLocked(); err != nil {
		return r.clone(), err
	}
	s.logger.Info().Str("path", path).Str("target", targetURL).Msg("route registered")
	return r.clone(), nil
}

// RemoveRoute deletes a route. Removing an unknown path is a no-op.
func (s *Service) RemoveRoute(path string) error {
	path = normalizePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[path]; !ok {
		return nil
	}
	delete(s.routes, path)
	delete(s.callbacks, path)
	return s.persistLocked()
}

// Route returns a snapshot of one route.
func (s *Service) Route(path string) (Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[normalizePath(path)]
	if !ok {
		return Route{}, false
	}
	return r.clone(), true
}

// Routes returns snapshots of all routes sorted by path.
func (s *Service) Routes() []Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Has reports whether path is taken.
func (s *Service) Has(path string) bool {
	_, ok := s.Route(path)
	return ok
}

// NewCode returns an unused random short code.
func (s *Service) NewCode() (string, error) {
	return GenerateCode(s.Has)
}

func (s *Service) persistLocked() error {
	if s.store == nil {
		return nil
	}
	snapshot := make(map[string]Route, len(s.routes))
	for path, r := range s.routes {
		snapshot[path] = r.clone()
	}
	if err := s.store.Save(snapshot); err != nil {
		s.logger.Error().Err(err).Msg("route table save failed")
		return err
	}
	return nil
}

// =============================================================================
// HTTP
// =============================================================================

// ServeHTTP answers GET /<path>.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := normalizePath(r.URL.Path)
	visit := Visit{
		Path:      path,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		Timestamp: s.now(),
	}

	s.mu.Lock()
	route, ok := s.routes[path]
	if !ok {
		s.mu.Unlock()
		if s.fallback != nil {
			s.fallback.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Link expired or invalid", http.StatusNotFound)
		return
	}
	if s.gate != nil && !s.gate.CheckQuota() {
		s.mu.Unlock()
		s.logger.Info().Str("path", path).Msg("redirect refused, session expired")
		http.Error(w, "Session expired", http.StatusForbidden)
		return
	}
	target := route.TargetURL
	if route.TrackingEnabled {
		route.Clicks = append(route.Clicks, Click{
			Timestamp: visit.Timestamp.Format(time.RFC3339),
			Referrer:  visit.Referrer,
			IP:        visit.IP,
		})
		route.ClickCount++
		if err := s.persistLocked(); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("click not persisted")
		}
	}
	cb := s.callbacks[path]
	s.mu.Unlock()

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)

	s.logger.Info().Str("path", path).Str("ip", visit.IP).Msg("redirect served")
	if cb != nil {
		cb(visit)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start listens on addr and serves in the background. It returns once the
// listener is bound, so port conflicts surface here.
func (s *Service) Start(addr string) error {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("redirect service already listening on %s", s.addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("redirect listen %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("redirect server stopped")
		}
	}()
	s.logger.Info().Str("addr", s.addr).Msg("redirect server listening")
	return nil
}

// Addr returns the bound address, empty when not started.
func (s *Service) Addr() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Shutdown stops the listener gracefully.
func (s *Service) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srv = nil
	s.addr = ""
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
