// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleopantest/aleopantest/internal/server"
	"github.com/aleopantest/aleopantest/internal/tools"
)

// sha256("abc")
const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

// writeTestConfig keeps every file the app touches inside t.TempDir.
func writeTestConfig(t *testing.T) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "aleopantest.toml")
	cfg := fmt.Sprintf(`
[general]
log_dir = %q
output_dir = %q
environment = "staging"

[session]
quota_secs = 120

[orchestrator]
max_retries = 0

[storage]
history_path = %q

[redirect]
store_path = %q
`, filepath.Join(dir, "logs"), filepath.Join(dir, "output"),
		filepath.Join(dir, "history.db"), filepath.Join(dir, "routes.json"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, dir
}

func execute(t *testing.T, argv ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), argv, &out, &errOut)
	return code, out.String(), errOut.String()
}

// =============================================================================
// END TO END
// =============================================================================

func TestExecute_HelpAndVersion(t *testing.T) {
	code, out, _ := execute(t)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Usage:")

	code, out, _ = execute(t, "version", "--json")
	assert.Equal(t, ExitSuccess, code)
	var resp struct {
		Success bool        `json:"success"`
		Data    VersionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.Version)
}

func TestExecute_UnknownCommandSuggests(t *testing.T) {
	code, _, errOut := execute(t, "list-tool")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "did you mean 'list-tools'")
}

func TestExecute_MissingConfigFile(t *testing.T) {
	code, _, errOut := execute(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "info")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "config file")
}

func TestExecute_RunHashGenJSON(t *testing.T) {
	cfg, _ := writeTestConfig(t)

	code, out, errOut := execute(t, "--config", cfg, "--json", "run", "hash-gen", "--text", "abc", "--algorithm", "sha256")
	require.Equal(t, ExitSuccess, code, errOut)

	var env tools.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, tools.StatusCompleted, env.Execution.Status)
	assert.Equal(t, "hash-gen", env.ToolID)
	assert.Equal(t, "staging", env.Execution.Admin.Env)
	require.Len(t, env.Results, 1)
	assert.Contains(t, tools.FormatResult(env.Results[0]), abcSHA256)
}

func TestExecute_ToolFailureStillExitsZero(t *testing.T) {
	cfg, _ := writeTestConfig(t)

	code, out, _ := execute(t, "--config", cfg, "run", "hash-gen")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "[FAILED]")
}

func TestExecute_UnknownToolIsFatal(t *testing.T) {
	cfg, _ := writeTestConfig(t)

	code, _, errOut := execute(t, "--config", cfg, "run", "hash-gne")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "tool not found: hash-gne")
	assert.Contains(t, errOut, "did you mean 'hash-gen'")
}

func TestExecute_RunOutputThenHistoryAndExport(t *testing.T) {
	cfg, dir := writeTestConfig(t)
	saved := filepath.Join(dir, "run.json")

	code, _, errOut := execute(t, "--config", cfg, "run", "hash-gen", "--text", "abc", "--algorithm", "sha256", "--output", saved)
	require.Equal(t, ExitSuccess, code, errOut)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), abcSHA256)

	code, out, _ := execute(t, "--config", cfg, "--json", "history", "hash-gen")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `"tool_id": "hash-gen"`)

	exported := filepath.Join(dir, "latest")
	code, _, errOut = execute(t, "--config", cfg, "export", "hash-gen", "--format", "txt", "--output", exported)
	require.Equal(t, ExitSuccess, code, errOut)
	data, err = os.ReadFile(exported + ".txt")
	require.NoError(t, err)
	assert.Contains(t, string(data), abcSHA256)

	code, _, errOut = execute(t, "--config", cfg, "export", "dns")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "result not found: dns")
}

func TestExecute_CatalogCommands(t *testing.T) {
	cfg, _ := writeTestConfig(t)

	code, out, _ := execute(t, "--config", cfg, "list-tools")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "hash-gen")
	assert.Contains(t, out, "url-shorten")

	code, out, _ = execute(t, "--config", cfg, "--json", "info")
	require.Equal(t, ExitSuccess, code)
	var info struct {
		Data InfoReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Positive(t, info.Data.Total)
	assert.Equal(t, "0:02:00", info.Data.Session.Quota)

	code, out, _ = execute(t, "--config", cfg, "list-by-category", "crypto")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "hash-gen")
	assert.NotContains(t, out, "port-scan")

	code, _, errOut := execute(t, "--config", cfg, "list-by-category", "nonsense")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "one of: all")

	code, out, _ = execute(t, "--config", cfg, "--json", "help-tool", "hash-gen")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `"Hash Generator"`)
}

func TestExecute_ConfigShowKey(t *testing.T) {
	cfg, _ := writeTestConfig(t)

	code, out, _ := execute(t, "--config", cfg, "--quota", "45", "config-show", "session.quota_secs")
	require.Equal(t, ExitSuccess, code)
	assert.JSONEq(t, `{"session.quota_secs": 45}`, out)

	code, _, errOut := execute(t, "--config", cfg, "config-show", "session.nope")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "config key not found")
}

func TestExecute_InterruptedExits130(t *testing.T) {
	cfg, _ := writeTestConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errOut bytes.Buffer
	code := Execute(ctx, []string{"--config", cfg, "run", "hash-gen", "--text", "abc"}, &out, &errOut)
	assert.Equal(t, ExitInterrupted, code)
}

func TestExecute_ServeRejectsOtherTools(t *testing.T) {
	cfg, _ := writeTestConfig(t)

	code, _, errOut := execute(t, "--config", cfg, "run", "hash-gen", "--text", "abc", "--serve")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "--serve is only supported")
}

func TestExecute_CorruptLinkStoreKeepsToolboxUp(t *testing.T) {
	cfg, dir := writeTestConfig(t)
	store := filepath.Join(dir, "routes.json")
	require.NoError(t, os.WriteFile(store, []byte("{not json"), 0o600))

	code, out, errOut := execute(t, "--config", cfg, "list-tools")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "url-shorten")

	code, out, errOut = execute(t, "--config", cfg, "--json", "run", "url-shorten", "--url", "https://example.org", "--alias", "promo")
	require.Equal(t, ExitSuccess, code, errOut)
	var env tools.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, tools.StatusCompleted, env.Execution.Status)

	data, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data), "unreadable table must not be overwritten")
}

func TestRedirectListenerServesMaskedLinks(t *testing.T) {
	cfg, _ := writeTestConfig(t)
	var out, errOut bytes.Buffer
	a, err := NewApp(Args{ConfigPath: cfg}, &out, &errOut)
	require.NoError(t, err)
	defer a.Close()

	env, err := a.Orchestrator.Execute(context.Background(), tools.Request{
		ToolID: "url-mask",
		Params: tools.Params{"url": "https://example.org/login", "fake_domain": "accounts.example.net", "method": "redirect"},
	})
	require.NoError(t, err)
	require.Equal(t, tools.StatusCompleted, env.Execution.Status, env.Errors)
	require.Len(t, env.Results, 1)

	link := decodeResult[map[string]any](t, env.Results[0])
	local, err := url.Parse(link["local_url"].(string))
	require.NoError(t, err)

	// web and server bind the shortener on redirect.port.
	rec := httptest.NewRecorder()
	a.Shortener.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, local.Path, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.org/login", rec.Header().Get("Location"))
}

func decodeResult[T any](t *testing.T, v any) T {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// =============================================================================
// REPORT BRIDGE
// =============================================================================

func TestPostReport(t *testing.T) {
	var gotPath string
	var got tools.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a := &App{HTTPClient: srv.Client()}
	env := &tools.Envelope{ToolID: "dns", Execution: tools.Execution{Status: tools.StatusCompleted}}
	require.NoError(t, a.postReport(context.Background(), srv.URL, env))

	assert.Equal(t, server.APIPrefix+"/report", gotPath)
	assert.Equal(t, "dns", got.ToolID)
}

func TestPostReport_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many reports", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := &App{HTTPClient: srv.Client()}
	err := a.postReport(context.Background(), srv.URL, &tools.Envelope{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "too many reports")
}

// =============================================================================
// PROMPTS
// =============================================================================

// scriptedPrompter replays answers; an error entry is returned instead of
// an answer.
type scriptedPrompter struct {
	answers []any
	asked   []string
}

func (p *scriptedPrompter) next(label string) (string, error) {
	p.asked = append(p.asked, label)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	if err, ok := a.(error); ok {
		return "", err
	}
	return a.(string), nil
}

func (p *scriptedPrompter) Prompt(label string) (string, error)         { return p.next(label) }
func (p *scriptedPrompter) PasswordPrompt(label string) (string, error) { return p.next(label) }
func (p *scriptedPrompter) Close() error                                { return nil }

func promptMeta() tools.Metadata {
	return tools.Metadata{
		Name: "Mailer",
		FormSchema: []tools.Field{
			{Name: "host", Type: tools.FieldText, Required: true},
			{Name: "method", Type: tools.FieldSelect, Options: []string{"GET", "POST"}},
			{Name: "tls", Type: tools.FieldBoolean, Default: false},
			{Name: "secret", Type: tools.FieldPassword},
		},
	}
}

func TestPromptMissing_FillsAndRetries(t *testing.T) {
	p := &scriptedPrompter{answers: []any{"", "smtp.local", "PUT", "POST", "maybe", "yes", ""}}
	params, err := promptMissing(p, promptMeta(), tools.Params{}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, tools.Params{"host": "smtp.local", "method": "POST", "tls": true}, params)
	assert.Len(t, p.asked, 7)
}

func TestPromptMissing_SkipsGivenParams(t *testing.T) {
	p := &scriptedPrompter{answers: []any{"", "", ""}}
	given := tools.Params{"host": "h"}
	params, err := promptMissing(p, promptMeta(), given, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, tools.Params{"host": "h"}, params)
	for _, label := range p.asked {
		assert.NotContains(t, label, "host")
	}
	assert.Equal(t, tools.Params{"host": "h"}, given, "input must not be mutated")
}

func TestPromptMissing_EOFStopsAsking(t *testing.T) {
	p := &scriptedPrompter{answers: []any{"h"}}
	params, err := promptMissing(p, promptMeta(), tools.Params{}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, tools.Params{"host": "h"}, params)
}

func TestPromptMissing_AbortCancels(t *testing.T) {
	p := &scriptedPrompter{answers: []any{liner.ErrPromptAborted}}
	_, err := promptMissing(p, promptMeta(), tools.Params{}, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExitInterrupted, ExitCode(context.Background(), err))
}

func TestFieldLabel(t *testing.T) {
	label := fieldLabel(tools.Field{Name: "method", Label: "Method", Required: true, Options: []string{"GET", "POST"}, Default: "GET"})
	assert.Equal(t, "  Method* [GET/POST] (GET): ", label)
	assert.True(t, strings.HasSuffix(fieldLabel(tools.Field{Name: "tls", Type: tools.FieldBoolean}), "[y/n]: "))
}
