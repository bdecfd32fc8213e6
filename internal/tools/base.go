// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/util"
)

// DefaultToolTimeout bounds a single blocking operation inside a tool.
const DefaultToolTimeout = 30 * time.Second

// MaxSafeDuration is the hard cap, in seconds, for HIGH and CRITICAL tools.
const MaxSafeDuration = 3600

// =============================================================================
// TOOL CONTRACT
// =============================================================================

// Tool is implemented by every catalog entry. Embedding *Base provides
// Metadata and Instance; a tool supplies Run and, optionally, Validate.
type Tool interface {
	Metadata() Metadata
	Validate(p Params) error
	Run(ctx context.Context, p Params) error
	Instance() *Base
}

// Status is the lifecycle state of one invocation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return 0
	}
}

// Credentials is a user/password pair for tools that authenticate.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ScanOptions are the shared knobs of network tools.
type ScanOptions struct {
	MaxRetries int           `json:"max_retries"`
	Delay      time.Duration `json:"delay"`
	Threads    int           `json:"threads"`
	VerifySSL  bool          `json:"verify_ssl"`
}

// =============================================================================
// BASE
// =============================================================================

// Base carries the mutable state of a live tool instance. Results, errors
// and warnings keep insertion order; worker goroutines may append
// concurrently.
type Base struct {
	meta Metadata

	mu        sync.Mutex
	results   []Finding
	errors    []string
	warnings  []string
	status    Status
	startTime time.Time
	endTime   time.Time
	running   atomic.Bool

	// Runtime knobs, populated from parameters by ApplyKnobs.
	Timeout     time.Duration
	Headers     map[string]string
	Auth        *Credentials
	Proxy       string
	ScanOptions ScanOptions

	audit    *security.AuditLogger
	identity security.Identity
}

// NewBase creates the state for a tool described by meta.
func NewBase(meta Metadata) *Base {
	return &Base{
		meta:    meta.Clone(),
		status:  StatusIdle,
		Timeout: DefaultToolTimeout,
		Headers: map[string]string{"User-Agent": "aleopantest/1.0"},
		ScanOptions: ScanOptions{
			MaxRetries: 3,
			Delay:      0,
			Threads:    10,
			VerifySSL:  true,
		},
	}
}

// Metadata returns a copy of the tool descriptor.
func (b *Base) Metadata() Metadata {
	return b.meta.Clone()
}

// Instance exposes the embedded state to the orchestrator.
func (b *Base) Instance() *Base {
	return b
}

// Validate is the default: accept everything. Tools override it.
func (b *Base) Validate(Params) error {
	return nil
}

// BindAudit attaches the audit sink and operator identity used by AuditLog.
func (b *Base) BindAudit(logger *security.AuditLogger, id security.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audit = logger
	b.identity = id
}

func (b *Base) setID(id string) {
	b.meta.ID = id
}

// =============================================================================
// RESULT MUTATORS
// =============================================================================

// AddResult appends a finding.
func (b *Base) AddResult(f Finding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, f)
}

// AddError appends an error message.
func (b *Base) AddError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, msg)
}

// AddWarning appends a warning message.
func (b *Base) AddWarning(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnings = append(b.warnings, msg)
}

// ClearResults empties results, errors and warnings before a new attempt.
func (b *Base) ClearResults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = nil
	b.errors = nil
	b.warnings = nil
}

// Results returns a copy of the findings in insertion order.
func (b *Base) Results() []Finding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Finding(nil), b.results...)
}

// Errors returns a copy of the error messages.
func (b *Base) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

// Warnings returns a copy of the warning messages.
func (b *Base) Warnings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.warnings...)
}

func (b *Base) prependWarnings(notes []string) {
	if len(notes) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnings = append(append([]string(nil), notes...), b.warnings...)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Status returns the current lifecycle state.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// StartTime returns when the current attempt began.
func (b *Base) StartTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startTime
}

// begin starts a new attempt: status running, start time set, running flag up.
func (b *Base) begin() {
	b.mu.Lock()
	b.status = StatusRunning
	b.startTime = time.Now()
	b.endTime = time.Time{}
	b.mu.Unlock()
	b.running.Store(true)
}

// finish moves a running attempt to its terminal state. A terminal state
// never moves back.
func (b *Base) finish(to Status) {
	b.running.Store(false)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.rank() >= to.rank() {
		return
	}
	b.status = to
	b.endTime = time.Now()
}

// fail marks the instance failed without a run, e.g. on validation errors.
func (b *Base) fail() {
	b.running.Store(false)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = StatusFailed
	b.endTime = time.Now()
}

// IsRunning is the cooperative cancellation flag. Long loops check it at
// every iteration and return once it drops.
func (b *Base) IsRunning() bool {
	return b.running.Load()
}

// Stop asks the tool to stop at the next loop boundary.
func (b *Base) Stop() {
	b.running.Store(false)
}

// OpContext bounds one blocking operation by the tool timeout.
func (b *Base) OpContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// =============================================================================
// PARAMETERS AND KNOBS
// =============================================================================

// ProcessParameters applies form-schema coercion. Conversion problems are
// recorded as warnings on the instance.
func (b *Base) ProcessParameters(p Params) Params {
	out, warnings := Coerce(b.meta.FormSchema, p)
	for _, w := range warnings {
		b.AddWarning(w)
	}
	return out
}

// ApplyKnobs reads the shared runtime knobs out of the parameters.
func (b *Base) ApplyKnobs(p Params) {
	if p.Has("timeout") {
		if secs := p.Float("timeout", 0); secs > 0 {
			b.Timeout = time.Duration(secs * float64(time.Second))
		}
	}
	if p.Has("proxy") {
		b.Proxy = p.String("proxy")
	}
	if p.Has("threads") {
		if n := p.Int("threads", 0); n > 0 {
			b.ScanOptions.Threads = n
		}
	}
	if p.Has("max_retries") {
		b.ScanOptions.MaxRetries = p.Int("max_retries", b.ScanOptions.MaxRetries)
	}
	if p.Has("delay") {
		b.ScanOptions.Delay = time.Duration(p.Float("delay", 0) * float64(time.Second))
	}
	if p.Has("verify_ssl") {
		b.ScanOptions.VerifySSL = p.Bool("verify_ssl", true)
	}
	if hdrs, ok := p["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			b.Headers[k] = stringify(v)
		}
	}
	if p.Has("auth") {
		if user, pass, ok := strings.Cut(p.String("auth"), ":"); ok {
			b.Auth = &Credentials{Username: user, Password: pass}
		}
	}
}

// =============================================================================
// SAFETY AND AUDIT
// =============================================================================

// CheckSafety validates a requested duration in seconds. Negative and
// non-numeric values are rejected for every tool; HIGH and CRITICAL tools
// are also rejected above MaxSafeDuration. Passing writes an audit record.
// The reason for a rejection is added to errors.
func (b *Base) CheckSafety(duration any) bool {
	secs, ok := toFloat(duration)
	if !ok {
		b.AddError(fmt.Sprintf("Safety Limit: duration %q is not a number", stringify(duration)))
		return false
	}
	if secs < 0 {
		b.AddError(fmt.Sprintf("Safety Limit: duration %gs cannot be negative", secs))
		return false
	}
	if b.meta.RiskLevel.IsHigh() && secs > MaxSafeDuration {
		b.AddError(fmt.Sprintf("Safety Limit: duration %gs exceeds the %ds maximum for %s risk tools",
			secs, MaxSafeDuration, b.meta.RiskLevel))
		return false
	}
	b.AuditLog(fmt.Sprintf("Safety check passed (duration=%gs, risk=%s)", secs, b.meta.RiskLevel))
	return true
}

// AuditLog writes an audit record for this tool unconditionally.
func (b *Base) AuditLog(action string) {
	b.mu.Lock()
	logger, id := b.audit, b.identity
	b.mu.Unlock()

	if err := logger.Log(id, b.meta.Name, action); err != nil {
		b.AddWarning("audit log write failed: " + err.Error())
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// Envelope builds the standard envelope from the current state.
func (b *Base) Envelope(output string) *Envelope {
	b.mu.Lock()
	id := b.identity
	b.mu.Unlock()
	return BuildEnvelope(b, id, output)
}

// ExportJSON writes the envelope as indented JSON.
func (b *Base) ExportJSON(path string) error {
	return util.WriteJSONFile(path, b.Envelope(""), 0644)
}

// ExportTXT writes the envelope as a plain-text report.
func (b *Base) ExportTXT(path string) error {
	return util.AtomicWriteFile(path, []byte(b.Envelope("").Text()), 0644)
}

// duration returns how long the last attempt ran.
func (b *Base) duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startTime.IsZero() {
		return 0
	}
	end := b.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(b.startTime)
}
