// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/logging"
	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/session"
)

const (
	// DefaultMaxRetries is the attempt budget for runtime failures.
	DefaultMaxRetries = 3

	// DefaultRetryDelay separates attempts.
	DefaultRetryDelay = 2 * time.Second

	maxHistorySize = 1000
)

// Request is one invocation as submitted by a frontend.
type Request struct {
	ToolID string
	// Target is an optional free-form target for the auto-filler.
	Target string
	Params Params
	// Interactive enables the tighter duration cap of the CLI and TUI.
	Interactive bool
}

// HistoryRecorder persists finished envelopes.
type HistoryRecorder interface {
	Save(ctx context.Context, toolID string, env *Envelope) error
}

// =============================================================================
// EXECUTION RECORD
// =============================================================================

// ExecutionRecord tracks one invocation for the in-process history.
type ExecutionRecord struct {
	ToolID    string
	Params    map[string]any
	Status    Status
	Attempts  int
	Timestamp time.Time
	Duration  time.Duration
	Errors    []string
}

// Stats summarizes the in-process history.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator is the single call site used by every frontend. It drives
// the parameter pipeline, session limits, retries and log capture, and
// always answers with an envelope once the tool id resolves.
type Orchestrator struct {
	Registry *Registry
	Governor *session.Governor
	Audit    *security.AuditLogger
	Identity security.Identity

	// Logger is the framework logger; LogOutput is where it writes so the
	// per-invocation capture can tee into it.
	Logger    zerolog.Logger
	LogOutput io.Writer

	History  HistoryRecorder
	Resolver Resolver

	MaxRetries int
	RetryDelay time.Duration

	mu      sync.Mutex
	records []ExecutionRecord
}

// NewOrchestrator wires an orchestrator with the default retry policy.
func NewOrchestrator(reg *Registry, gov *session.Governor, audit *security.AuditLogger, id security.Identity, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Registry:   reg,
		Governor:   gov,
		Audit:      audit,
		Identity:   id,
		Logger:     logger,
		Resolver:   DefaultResolver,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// Execute runs one invocation. The error is non-nil only when the tool id
// is unknown or its factory failed to load; every other failure is reported
// inside the returned envelope.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Envelope, error) {
	tool, err := o.Registry.New(req.ToolID)
	if err != nil {
		o.Logger.Error().Str("tool", req.ToolID).Err(err).Msg("tool lookup failed")
		return nil, err
	}
	b := tool.Instance()
	meta := b.Metadata()
	b.BindAudit(o.Audit, o.Identity)

	capture := logging.NewCapture()
	ctx, logger := capture.Attach(ctx, o.Logger.With().Str("tool", req.ToolID).Logger(), o.LogOutput)

	start := time.Now()
	attempts := 0
	params := o.prepare(ctx, b, req)

	defer func() {
		if meta.RiskLevel.IsHigh() {
			b.AuditLog(fmt.Sprintf("Invocation %s (attempts=%d, params=%s)", b.Status(), attempts, describeParams(params)))
		}
	}()

	if o.Governor != nil && !o.Governor.CheckQuota() {
		b.AddError(fmt.Sprintf("Session quota exhausted: the %s session budget is used up, start a new session to run more tools",
			session.FormatClock(o.Governor.Quota())))
		b.fail()
		logger.Warn().Msg("session quota exhausted")
		return o.finish(ctx, tool, params, attempts, start, capture), nil
	}

	var notes []string
	if o.Governor != nil {
		var limited map[string]any
		limited, notes = o.Governor.EnforceLimits(req.ToolID, meta.RiskLevel.IsHigh(), params, req.Interactive)
		params = Params(limited)
		for _, n := range notes {
			logger.Info().Msg(n)
		}
	}
	b.ApplyKnobs(params)

	if err := Collect(ValidateSchema(meta.FormSchema, params), tool.Validate(params)); err != nil {
		addErrors(b, err)
		b.fail()
		b.prependWarnings(notes)
		logger.Warn().Err(err).Msg("parameter validation failed")
		return o.finish(ctx, tool, params, attempts, start, capture), nil
	}

	if params.Has("duration") && !b.CheckSafety(params["duration"]) {
		b.fail()
		b.prependWarnings(notes)
		logger.Warn().Msg("safety limit tripped")
		return o.finish(ctx, tool, params, attempts, start, capture), nil
	}

	// Coercion warnings were recorded by prepare; attempts start from a
	// clean slate, so they are carried across and restored afterwards.
	pre := b.Warnings()
	maxAttempts := o.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempts < maxAttempts {
		attempts++
		b.ClearResults()
		logger.Info().Int("attempt", attempts).Msgf("running %s", meta.Name)

		runErr := o.runOnce(ctx, tool, params)
		if runErr == nil {
			break
		}
		logger.Error().Err(runErr).Int("attempt", attempts).Msg("attempt failed")
		if !Retryable(runErr) || ctx.Err() != nil || attempts >= maxAttempts {
			break
		}
		if o.Governor != nil && !o.Governor.CheckQuota() {
			break
		}
		if !sleepCtx(ctx, o.RetryDelay) {
			break
		}
	}
	b.prependWarnings(append(notes, pre...))

	if b.Status() == StatusCompleted {
		logger.Info().Int("results", len(b.Results())).Msg("completed")
	}
	return o.finish(ctx, tool, params, attempts, start, capture), nil
}

// prepare runs alias normalization, schema coercion and target auto-fill.
func (o *Orchestrator) prepare(ctx context.Context, b *Base, req Request) Params {
	params := NormalizeAliases(req.ToolID, req.Params)
	params = b.ProcessParameters(params)
	if strings.TrimSpace(req.Target) != "" {
		info := Analyze(ctx, req.Target, o.Resolver)
		zerolog.Ctx(ctx).Debug().Str("target", info.Raw).Str("kind", string(info.Kind)).Msg("target classified")
		params = Autofill(req.ToolID, info, params)
	}
	return params
}

// runOnce performs a single attempt. A panic is converted into a runtime
// error; governor expiry and context cancellation drop the running flag.
func (o *Orchestrator) runOnce(ctx context.Context, tool Tool, params Params) (err error) {
	b := tool.Instance()
	b.begin()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var expired <-chan struct{}
	if o.Governor != nil {
		expired = o.Governor.Expired()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-expired:
			b.Stop()
			cancel()
		case <-runCtx.Done():
			b.Stop()
		case <-done:
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = Runtime(fmt.Sprintf("tool crashed: %v", rec), nil)
		}
		if err == nil && runCtx.Err() != nil {
			err = NewSafety("run interrupted: %v", context.Cause(runCtx))
		}
		if err != nil {
			b.AddError(err.Error())
			b.finish(StatusFailed)
			return
		}
		if len(b.Results()) == 0 {
			b.AddResult(secureFinding(b.meta.Name))
		}
		b.finish(StatusCompleted)
	}()

	return tool.Run(runCtx, params)
}

// finish builds the envelope, records history and persists it.
func (o *Orchestrator) finish(ctx context.Context, tool Tool, params Params, attempts int, start time.Time, capture *logging.Capture) *Envelope {
	b := tool.Instance()
	b.mu.Lock()
	id := b.identity
	b.mu.Unlock()

	env := BuildEnvelope(b, id, capture.String())
	env.Execution.Attempts = attempts
	if o.Governor != nil {
		env.Execution.SessionID = o.Governor.SessionID()
	}

	o.addToHistory(ExecutionRecord{
		ToolID:    b.meta.ID,
		Params:    logging.Redact(params),
		Status:    env.Execution.Status,
		Attempts:  attempts,
		Timestamp: start,
		Duration:  time.Since(start),
		Errors:    env.RealErrors(),
	})

	if o.History != nil {
		if err := o.History.Save(ctx, b.meta.ID, env); err != nil {
			o.Logger.Warn().Err(err).Str("tool", b.meta.ID).Msg("history save failed")
		}
	}
	return env
}

func addErrors(b *Base, err error) {
	var ves ValidationErrors
	if errors.As(err, &ves) {
		for _, ve := range ves {
			b.AddError(ve.Error())
		}
		return
	}
	b.AddError(err.Error())
}

// describeParams renders redacted params as sorted key=value pairs.
func describeParams(p Params) string {
	red := logging.Redact(p)
	keys := make([]string, 0, len(red))
	for k := range red {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + stringify(red[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func (o *Orchestrator) addToHistory(rec ExecutionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.records) >= maxHistorySize {
		o.records = o.records[len(o.records)-maxHistorySize+1:]
	}
	o.records = append(o.records, rec)
}

// Records returns a copy of the in-process execution history.
func (o *Orchestrator) Records() []ExecutionRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ExecutionRecord, len(o.records))
	copy(out, o.records)
	return out
}

// Stats summarizes the in-process history.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	var s Stats
	for _, r := range o.records {
		s.Total++
		if r.Status == StatusCompleted {
			s.Completed++
		} else {
			s.Failed++
		}
		if r.Attempts > 1 {
			s.Retried++
		}
	}
	return s
}
