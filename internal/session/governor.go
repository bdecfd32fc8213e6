// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/aleopantest/aleopantest/internal/detect"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// DefaultQuota is the wall-clock budget of one session.
	DefaultQuota = 600 * time.Second

	// DefaultInteractiveDurationCap bounds high-impact durations in the
	// CLI and TUI. The 3600 s hard cap lives in the tool safety check.
	DefaultInteractiveDurationCap = 60
)

// HighImpactTools are clamped regardless of their declared risk tier.
var HighImpactTools = map[string]bool{
	"ddos-sim":     true,
	"deauth":       true,
	"beacon-flood": true,
}

// Config holds configuration for the governor.
type Config struct {
	// Quota is the session wall-clock budget (default: 600s)
	Quota time.Duration

	// InteractiveDurationCap is the max duration in seconds for high-impact
	// tools in interactive frontends (default: 60)
	InteractiveDurationCap int

	// MaxThreads caps the threads parameter (default: platform suggestion)
	MaxThreads int
}

// DefaultConfig returns the default governor configuration.
func DefaultConfig() Config {
	return Config{
		Quota:                  DefaultQuota,
		InteractiveDurationCap: DefaultInteractiveDurationCap,
		MaxThreads:             detect.Detect().MaxThreads,
	}
}

// =============================================================================
// GOVERNOR
// =============================================================================

// Governor tracks the session quota. All accessors are safe for concurrent use.
type Governor struct {
	mu sync.Mutex

	sessionID string
	startTime time.Time
	quota     time.Duration

	durationCap int
	maxThreads  int

	now     func() time.Time
	expired chan struct{}
	closed  bool
	timer   *time.Timer
}

// NewGovernor starts a session now.
func NewGovernor(cfg Config) *Governor {
	if cfg.Quota <= 0 {
		cfg.Quota = DefaultQuota
	}
	if cfg.InteractiveDurationCap <= 0 {
		cfg.InteractiveDurationCap = DefaultInteractiveDurationCap
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = detect.Detect().MaxThreads
	}

	g := &Governor{
		sessionID:   generateSessionID(),
		startTime:   time.Now(),
		quota:       cfg.Quota,
		durationCap: cfg.InteractiveDurationCap,
		maxThreads:  cfg.MaxThreads,
		now:         time.Now,
		expired:     make(chan struct{}),
	}
	g.armLocked()
	return g
}

// SessionID returns the short random session token.
func (g *Governor) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID
}

// StartTime returns when the session started.
func (g *Governor) StartTime() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startTime
}

// Quota returns the configured budget.
func (g *Governor) Quota() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.quota
}

// MaxThreads returns the thread ceiling applied by EnforceLimits.
func (g *Governor) MaxThreads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxThreads
}

// SetQuota changes the budget. Shrinking below the elapsed time expires the
// session immediately; an expired session cannot be revived.
func (g *Governor) SetQuota(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quota = d
	g.armLocked()
}

// Elapsed returns time since the session started.
func (g *Governor) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Sub(g.startTime)
}

// Remaining returns the unused part of the quota, never negative.
func (g *Governor) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked()
}

func (g *Governor) remainingLocked() time.Duration {
	r := g.quota - g.now().Sub(g.startTime)
	if r < 0 {
		return 0
	}
	return r
}

// CheckQuota reports whether the session may still run tools.
func (g *Governor) CheckQuota() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	if g.now().Sub(g.startTime) < g.quota {
		return true
	}
	g.expireLocked()
	return false
}

// IsActive is CheckQuota under the name the status views use.
func (g *Governor) IsActive() bool {
	return g.CheckQuota()
}

// Expired returns a channel closed once the quota has been used up.
func (g *Governor) Expired() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired
}

// armLocked (re)schedules the expiry notification for the current quota.
func (g *Governor) armLocked() {
	if g.closed {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	remaining := g.remainingLocked()
	if remaining <= 0 {
		g.expireLocked()
		return
	}
	g.timer = time.AfterFunc(remaining, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.remainingLocked() <= 0 {
			g.expireLocked()
		}
	})
}

func (g *Governor) expireLocked() {
	if g.closed {
		return
	}
	g.closed = true
	if g.timer != nil {
		g.timer.Stop()
	}
	close(g.expired)
}

// Close stops the expiry timer. It does not expire the session.
func (g *Governor) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
	}
}

// =============================================================================
// LIMIT ENFORCEMENT
// =============================================================================

// EnforceLimits returns a copy of params with the session limits applied:
// duration is clamped for high-impact tools (known ids or highRisk) when the
// frontend is interactive, and threads never exceed MaxThreads. Each clamp is
// described in the returned notes.
func (g *Governor) EnforceLimits(toolID string, highRisk bool, params map[string]any, interactive bool) (map[string]any, []string) {
	g.mu.Lock()
	durationCap, maxThreads := g.durationCap, g.maxThreads
	g.mu.Unlock()

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	var notes []string
	if interactive && (highRisk || HighImpactTools[toolID]) {
		if d, ok := numeric(out["duration"]); ok && d > float64(durationCap) {
			out["duration"] = durationCap
			notes = append(notes, fmt.Sprintf("duration clamped from %gs to %ds for interactive session", d, durationCap))
		}
	}
	if n, ok := numeric(out["threads"]); ok && n > float64(maxThreads) {
		out["threads"] = maxThreads
		notes = append(notes, fmt.Sprintf("threads clamped from %g to platform maximum %d", n, maxThreads))
	}
	return out, notes
}

// numeric reads ints, floats and numeric strings. Anything else is left for
// the tool's own validation to reject.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// =============================================================================
// STATUS
// =============================================================================

// Status is a point-in-time view of the session.
type Status struct {
	SessionID string `json:"session_id"`
	Elapsed   string `json:"elapsed"`
	Remaining string `json:"remaining"`
	Quota     string `json:"quota"`
	Active    bool   `json:"active"`
}

// GetStatus returns the current session status.
func (g *Governor) GetStatus() Status {
	active := g.CheckQuota()

	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		SessionID: g.sessionID,
		Elapsed:   FormatClock(g.now().Sub(g.startTime)),
		Remaining: FormatClock(g.remainingLocked()),
		Quota:     FormatClock(g.quota),
		Active:    active,
	}
}

// FormatClock renders d as H:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func generateSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent once a second so views can refresh the session clock.
type TickMsg struct {
	Time time.Time
}

// ExpiredMsg is emitted by HandleTick once the quota is gone.
type ExpiredMsg struct{}

// TickCmd returns a command that ticks every second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick keeps ticking and reports expiry.
func (g *Governor) HandleTick() tea.Cmd {
	if !g.CheckQuota() {
		return func() tea.Msg { return ExpiredMsg{} }
	}
	return TickCmd()
}
