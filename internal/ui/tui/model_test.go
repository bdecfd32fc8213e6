// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/session"
	"github.com/aleopantest/aleopantest/internal/tools"
)

type echoTool struct {
	*tools.Base
}

func (t *echoTool) Run(ctx context.Context, p tools.Params) error {
	t.AddResult(tools.Notice{Message: "echo " + p.String("host")})
	return nil
}

func newTestModel(t *testing.T) Model {
	t.Helper()

	audit, err := security.NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	gov := session.NewGovernor(session.Config{Quota: time.Hour, MaxThreads: 4})
	t.Cleanup(gov.Close)

	reg := tools.NewRegistry(zerolog.Nop())
	reg.Register("echo", func() tools.Tool {
		return &echoTool{Base: tools.NewBase(tools.Metadata{
			Name:     "Echo",
			Version:  "1.0",
			Category: tools.CategoryUtilities,
			FormSchema: []tools.Field{
				{Name: "host", Type: tools.FieldText, Required: true},
				{Name: "note", Type: tools.FieldText},
			},
		})}
	})

	id := security.Identity{Username: "tester", Hostname: "lab", Env: security.EnvDevelopment}
	orch := tools.NewOrchestrator(reg, gov, audit, id, zerolog.New(io.Discard))
	orch.Resolver = nil

	m := New(context.Background(), Options{Registry: reg, Orchestrator: orch, Governor: gov})
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// runToCompletion presses enter on the form and feeds the orchestrator
// result back into the model.
func runToCompletion(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = next.(Model)
	require.Equal(t, ScreenRunning, m.Screen())
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if done, ok := c().(runDoneMsg); ok {
			return update(t, m, done)
		}
	}
	t.Fatal("no run result in batch")
	return m
}

func TestNew_ListsEveryTool(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, ScreenList, m.Screen())
	assert.Len(t, m.list.Items(), 1)
	assert.Contains(t, m.View(), "aleopantest")
}

func TestSelect_OpensForm(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyMsg(tea.KeyEnter))

	assert.Equal(t, ScreenForm, m.Screen())
	assert.Equal(t, "echo", m.selected.ID)
	assert.Contains(t, m.View(), "host*")

	m = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, ScreenList, m.Screen())
}

func TestForm_RequiredFieldBlocksRun(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyMsg(tea.KeyEnter))
	m = update(t, m, keyMsg(tea.KeyEnter))

	assert.Equal(t, ScreenForm, m.Screen())
	assert.Contains(t, m.notice, "host")
}

func TestForm_TabMovesFocus(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyMsg(tea.KeyEnter))
	m = update(t, m, keyMsg(tea.KeyTab))
	m = typeText(t, m, "memo")

	assert.Equal(t, 1, m.form.focus)
	assert.Equal(t, tools.Params{"note": "memo"}, m.form.params())

	m = update(t, m, keyMsg(tea.KeyShiftTab))
	assert.Equal(t, 0, m.form.focus)
}

func TestRun_ShowsEnvelope(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, keyMsg(tea.KeyEnter))
	m = typeText(t, m, "example.org")
	m = runToCompletion(t, m)

	require.Equal(t, ScreenResult, m.Screen())
	env := m.Envelope()
	require.NotNil(t, env)
	assert.Equal(t, tools.StatusCompleted, env.Execution.Status)
	assert.Contains(t, m.resultContent(), "echo example.org")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	assert.True(t, m.showJSON)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(m.resultContent()), "{"))

	m = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, ScreenForm, m.Screen())
}

func TestExpiredSession_RefusesRuns(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, session.ExpiredMsg{})
	m = update(t, m, keyMsg(tea.KeyEnter))
	m = typeText(t, m, "example.org")

	next, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, ScreenForm, m.Screen())
	assert.Contains(t, m.notice, "quota")

	// Ticks stop once expired.
	_, cmd = m.Update(session.TickMsg{Time: time.Now()})
	assert.Nil(t, cmd)
}

func TestForceQuit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRenderEnvelope_Errors(t *testing.T) {
	env := &tools.Envelope{
		ToolInfo:  tools.Metadata{Name: "Probe", RiskLevel: tools.RiskHigh, LegalDisclaimer: "authorized use only"},
		Execution: tools.Execution{Status: tools.StatusFailed},
		Errors:    []string{"connection refused"},
		Warnings:  []string{"threads capped"},
	}
	out := renderEnvelope(env, 80)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "threads capped")
	assert.Contains(t, out, "authorized use only")
}
