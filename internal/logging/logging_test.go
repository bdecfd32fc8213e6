// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesAppLog(t *testing.T) {
	dir := t.TempDir()
	logs, err := Setup(Options{Dir: dir, App: "aleopantest", Level: "debug"})
	require.NoError(t, err)

	logs.Logger.Info().Str("tool", "dns").Msg("started")
	require.NoError(t, logs.Close())

	data, err := os.ReadFile(filepath.Join(dir, "aleopantest.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tool":"dns"`)
	assert.Contains(t, string(data), `"message":"started"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestRedact(t *testing.T) {
	in := map[string]any{"url": "https://x", "password": "hunter2", "jwt_token": "abc"}
	out := Redact(in)

	assert.Equal(t, "https://x", out["url"])
	assert.Equal(t, "***", out["password"])
	assert.Equal(t, "***", out["jwt_token"])
	assert.Equal(t, "hunter2", in["password"], "input must not be modified")
}

func TestCapture_TeesIntoParentAndTranscript(t *testing.T) {
	var parent bytes.Buffer
	capture := NewCapture()

	ctx, _ := capture.Attach(context.Background(), zerolog.New(nil), &parent)
	zerolog.Ctx(ctx).Info().Str("port", "443").Msg("open port")

	assert.Contains(t, capture.String(), "open port")
	assert.Contains(t, capture.String(), "port=443")
	assert.Contains(t, parent.String(), `"message":"open port"`)
}

func TestCapture_IsolatedPerInvocation(t *testing.T) {
	first := NewCapture()
	second := NewCapture()

	ctx1, _ := first.Attach(context.Background(), zerolog.Nop(), nil)
	ctx2, _ := second.Attach(context.Background(), zerolog.New(nil), nil)
	zerolog.Ctx(ctx2).Warn().Msg("only second")
	zerolog.Ctx(ctx1).Warn().Msg("suppressed")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "only second")
}
