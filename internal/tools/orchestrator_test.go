// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/session"
)

// =============================================================================
// FAKE TOOLS
// =============================================================================

type fakeTool struct {
	*Base
	run func(ctx context.Context, b *Base, p Params) error
}

func (f *fakeTool) Run(ctx context.Context, p Params) error {
	return f.run(ctx, f.Base, p)
}

func fakeFactory(meta Metadata, run func(ctx context.Context, b *Base, p Params) error) Factory {
	return func() Tool {
		return &fakeTool{Base: NewBase(meta), run: run}
	}
}

func echoMeta() Metadata {
	return Metadata{
		Name:     "Echo",
		Version:  "1.0",
		Category: CategoryUtilities,
		FormSchema: []Field{
			{Name: "count", Type: FieldNumber, Default: 1, Min: Bound(1), Max: Bound(10)},
			{Name: "host", Type: FieldText},
		},
	}
}

func floodMeta() Metadata {
	return Metadata{
		Name:      "Flood Planner",
		Version:   "1.0",
		Category:  CategoryNetwork,
		RiskLevel: RiskCritical,
		FormSchema: []Field{
			{Name: "target", Type: FieldText, Required: true},
			{Name: "duration", Type: FieldNumber, Default: 10},
		},
	}
}

type testEnv struct {
	orch  *Orchestrator
	reg   *Registry
	gov   *session.Governor
	audit *security.AuditLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	audit, err := security.NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	gov := session.NewGovernor(session.Config{Quota: time.Hour, MaxThreads: 8})
	t.Cleanup(gov.Close)

	reg := NewRegistry(zerolog.Nop())
	id := security.Identity{Username: "tester", Hostname: "lab", Env: security.EnvDevelopment}
	orch := NewOrchestrator(reg, gov, audit, id, zerolog.New(io.Discard))
	orch.RetryDelay = time.Millisecond
	orch.Resolver = nil
	return &testEnv{orch: orch, reg: reg, gov: gov, audit: audit}
}

func requireWireInvariants(t *testing.T, env *Envelope) {
	t.Helper()
	data, err := env.JSON()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	for _, key := range []string{"tool_info", "execution", "results", "errors", "warnings", "summary"} {
		assert.Contains(t, wire, key)
	}
	for _, key := range []string{"results", "errors", "warnings"} {
		arr, ok := wire[key].([]any)
		require.True(t, ok, key)
		assert.NotEmpty(t, arr, key)
	}
	exec := wire["execution"].(map[string]any)
	for _, key := range []string{"status", "duration", "timestamp", "admin"} {
		assert.Contains(t, exec, key)
	}
}

// =============================================================================
// ORCHESTRATOR TESTS
// =============================================================================

func TestExecute_CompletedKeepsInsertionOrder(t *testing.T) {
	te := newTestEnv(t)
	te.reg.Register("echo", fakeFactory(echoMeta(), func(ctx context.Context, b *Base, p Params) error {
		zerolog.Ctx(ctx).Info().Msg("echo running")
		for i := 0; i < p.Int("count", 0); i++ {
			b.AddResult(Record{"n": i})
		}
		return nil
	}))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo", Params: Params{"count": "3"}})
	require.NoError(t, err)
	requireWireInvariants(t, env)

	assert.Equal(t, StatusCompleted, env.Execution.Status)
	assert.Equal(t, 1, env.Execution.Attempts)
	assert.Equal(t, te.gov.SessionID(), env.Execution.SessionID)
	require.Len(t, env.Results, 3)
	for i, r := range env.Results {
		assert.Equal(t, i, r.(Record)["n"])
	}
	assert.Equal(t, []string{NoneDetected}, env.Errors)
	assert.Equal(t, 0, env.Summary.TotalErrors)
	assert.Contains(t, env.Output, "echo running")
	assert.Equal(t, "echo", env.ToolID)
}

func TestExecute_CoercionWarningSurvivesRun(t *testing.T) {
	te := newTestEnv(t)
	te.reg.Register("echo", fakeFactory(echoMeta(), func(_ context.Context, b *Base, p Params) error {
		b.AddResult(Record{"count": p.Int("count", 0)})
		b.AddWarning("echo warning")
		return nil
	}))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo", Params: Params{"count": "abc"}})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, env.Execution.Status)
	require.Len(t, env.Results, 1)
	assert.Equal(t, 1, env.Results[0].(Record)["count"])
	require.Len(t, env.Warnings, 2)
	assert.Contains(t, env.Warnings[0], "count")
	assert.Equal(t, "echo warning", env.Warnings[1])
}

func TestExecute_EmptyRunIsSecure(t *testing.T) {
	te := newTestEnv(t)
	te.reg.Register("echo", fakeFactory(echoMeta(), func(context.Context, *Base, Params) error { return nil }))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo"})
	require.NoError(t, err)

	require.Len(t, env.Results, 1)
	nf, ok := env.Results[0].(NoFindings)
	require.True(t, ok)
	assert.Equal(t, "SECURE", nf.Status)
	assert.Equal(t, 1, env.Summary.TotalResults)
}

func TestExecute_UnknownTool(t *testing.T) {
	te := newTestEnv(t)
	env, err := te.orch.Execute(context.Background(), Request{ToolID: "ghost"})
	assert.Nil(t, env)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecute_ValidationFailureIsNotRetried(t *testing.T) {
	te := newTestEnv(t)
	var runs atomic.Int32
	te.reg.Register("echo", fakeFactory(echoMeta(), func(context.Context, *Base, Params) error {
		runs.Add(1)
		return nil
	}))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo", Params: Params{"count": 99}})
	require.NoError(t, err)
	requireWireInvariants(t, env)

	assert.Equal(t, StatusFailed, env.Execution.Status)
	assert.Zero(t, runs.Load())
	assert.Contains(t, env.Errors[0], "count")
}

func TestExecute_RuntimeFailureRetriesThenSucceeds(t *testing.T) {
	te := newTestEnv(t)
	var runs atomic.Int32
	te.reg.Register("echo", fakeFactory(echoMeta(), func(_ context.Context, b *Base, _ Params) error {
		if runs.Add(1) < 3 {
			b.AddResult(Notice{Message: "partial"})
			return Runtime("connection reset", nil)
		}
		b.AddResult(Notice{Message: "ok"})
		return nil
	}))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, env.Execution.Status)
	assert.Equal(t, 3, env.Execution.Attempts)
	require.Len(t, env.Results, 1, "results cleared between attempts")
	assert.Equal(t, Notice{Message: "ok"}, env.Results[0])
	assert.Equal(t, 1, te.orch.Stats().Retried)
}

func TestExecute_RuntimeFailureGivesUpAfterMaxRetries(t *testing.T) {
	te := newTestEnv(t)
	var runs atomic.Int32
	te.reg.Register("echo", fakeFactory(echoMeta(), func(context.Context, *Base, Params) error {
		runs.Add(1)
		return errors.New("network unreachable")
	}))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo"})
	require.NoError(t, err)
	requireWireInvariants(t, env)

	assert.Equal(t, StatusFailed, env.Execution.Status)
	assert.EqualValues(t, DefaultMaxRetries, runs.Load())
	assert.Contains(t, env.Errors, "network unreachable")
	nf := env.Results[0].(NoFindings)
	assert.Equal(t, "INCOMPLETE", nf.Status)
}

func TestExecute_PanicBecomesRuntimeError(t *testing.T) {
	te := newTestEnv(t)
	te.orch.MaxRetries = 1
	te.reg.Register("echo", fakeFactory(echoMeta(), func(context.Context, *Base, Params) error {
		panic("nil map")
	}))

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, env.Execution.Status)
	assert.Contains(t, env.Errors[0], "nil map")
}

func TestExecute_SafetyLimitAuditsOnce(t *testing.T) {
	te := newTestEnv(t)
	var runs atomic.Int32
	te.reg.Register("flood", fakeFactory(floodMeta(), func(context.Context, *Base, Params) error {
		runs.Add(1)
		return nil
	}))

	env, err := te.orch.Execute(context.Background(), Request{
		ToolID: "flood",
		Params: Params{"target": "x", "duration": 3601},
	})
	require.NoError(t, err)
	requireWireInvariants(t, env)

	assert.Equal(t, StatusFailed, env.Execution.Status)
	assert.Contains(t, env.Errors[0], "Safety Limit")
	assert.Zero(t, runs.Load())
	assert.Equal(t, 1, te.audit.Written())
}

func TestExecute_InteractiveClampsHighRiskDuration(t *testing.T) {
	te := newTestEnv(t)
	var seen atomic.Int64
	te.reg.Register("flood", fakeFactory(floodMeta(), func(_ context.Context, _ *Base, p Params) error {
		seen.Store(int64(p.Int("duration", -1)))
		return nil
	}))

	env, err := te.orch.Execute(context.Background(), Request{
		ToolID:      "flood",
		Params:      Params{"target": "x", "duration": 300},
		Interactive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, env.Execution.Status)
	assert.EqualValues(t, 60, seen.Load())
	assert.Contains(t, env.Warnings[0], "duration clamped")
	// safety pass plus the invocation record
	assert.Equal(t, 2, te.audit.Written())
}

func TestExecute_QuotaExhausted(t *testing.T) {
	te := newTestEnv(t)
	var runs atomic.Int32
	te.reg.Register("echo", fakeFactory(echoMeta(), func(context.Context, *Base, Params) error {
		runs.Add(1)
		return nil
	}))
	te.gov.SetQuota(time.Nanosecond)

	env, err := te.orch.Execute(context.Background(), Request{ToolID: "echo"})
	require.NoError(t, err)
	requireWireInvariants(t, env)

	assert.Equal(t, StatusFailed, env.Execution.Status)
	assert.Contains(t, env.Errors[0], "quota")
	assert.Zero(t, runs.Load())
}

func TestExecute_CancellationStopsRunningTool(t *testing.T) {
	te := newTestEnv(t)
	te.reg.Register("echo", fakeFactory(echoMeta(), func(ctx context.Context, b *Base, _ Params) error {
		for b.IsRunning() {
			time.Sleep(time.Millisecond)
		}
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	env, err := te.orch.Execute(ctx, Request{ToolID: "echo"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, env.Execution.Status)
	assert.Equal(t, 1, env.Execution.Attempts)
	assert.Contains(t, env.Errors[0], "interrupted")
}

func TestExecute_TargetAutofill(t *testing.T) {
	te := newTestEnv(t)
	var host atomic.Value
	te.reg.Register("port-scan", fakeFactory(echoMeta(), func(_ context.Context, _ *Base, p Params) error {
		host.Store(p.String("host"))
		return nil
	}))

	_, err := te.orch.Execute(context.Background(), Request{ToolID: "port-scan", Target: "https://example.com/x"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", host.Load())
}

type memHistory struct {
	saved []string
}

func (m *memHistory) Save(_ context.Context, toolID string, _ *Envelope) error {
	m.saved = append(m.saved, toolID)
	return nil
}

func TestExecute_RecordsHistory(t *testing.T) {
	te := newTestEnv(t)
	hist := &memHistory{}
	te.orch.History = hist
	te.reg.Register("echo", fakeFactory(echoMeta(), func(context.Context, *Base, Params) error { return nil }))

	for i := 0; i < 2; i++ {
		_, err := te.orch.Execute(context.Background(), Request{ToolID: "echo", Params: Params{"password": "hunter2"}})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"echo", "echo"}, hist.saved)

	records := te.orch.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "***", records[0].Params["password"])
	assert.Equal(t, Stats{Total: 2, Completed: 2}, te.orch.Stats())
}
