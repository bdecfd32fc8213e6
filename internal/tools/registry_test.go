// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleopantest/aleopantest/internal/security"
)

func noop(context.Context, *Base, Params) error { return nil }

func metaIn(name string, cat Category) Metadata {
	return Metadata{Name: name, Version: "1.0", Category: cat}
}

func TestRegistry_BrokenFactoryIsIsolated(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Register("dns", fakeFactory(metaIn("DNS", CategoryNetwork), noop))
	reg.Register("broken", func() Tool { panic("import failed") })
	reg.Register("nil", func() Tool { return nil })
	reg.Register("whois", fakeFactory(metaIn("Whois", CategoryOSINT), noop))

	assert.Equal(t, []string{"dns", "whois"}, reg.IDs())
	assert.Equal(t, 2, reg.Len())
	assert.Len(t, reg.Unavailable(), 2)

	_, err := reg.New("broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.Contains(t, err.Error(), "tool failed to load")
	assert.Equal(t, KindFramework, KindOf(err))

	_, err = reg.Lookup("broken")
	assert.ErrorIs(t, err, ErrToolUnavailable)

	tool, err := reg.New("dns")
	require.NoError(t, err)
	assert.Equal(t, "dns", tool.Metadata().ID)
}

func TestRegistry_ProbeFailureMarksUnavailable(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	needsRoot := func() error { return NewDependency("raw sockets unavailable", "run as root") }
	reg.Register("sniffer", fakeFactory(metaIn("Sniffer", CategoryNetwork), noop), needsRoot)

	assert.Empty(t, reg.IDs())
	err := reg.Unavailable()["sniffer"]
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run as root")
}

func TestRegistry_NewReturnsFreshInstances(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Register("dns", fakeFactory(metaIn("DNS", CategoryNetwork), noop))

	a, err := reg.New("dns")
	require.NoError(t, err)
	b, err := reg.New("dns")
	require.NoError(t, err)

	a.Instance().AddResult(Notice{Message: "x"})
	assert.Empty(t, b.Instance().Results())
}

func TestRegistry_ListGroupsInCategoryOrder(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Register("whois", fakeFactory(metaIn("Whois", CategoryOSINT), noop))
	reg.Register("dns", fakeFactory(metaIn("DNS", CategoryNetwork), noop))
	reg.Register("port-scan", fakeFactory(metaIn("Port Scanner", CategoryNetwork), noop))

	groups := reg.List()
	require.Len(t, groups, 2)
	assert.Equal(t, CategoryNetwork, groups[0].Category)
	assert.Equal(t, "dns", groups[0].Tools[0].ID)
	assert.Equal(t, "port-scan", groups[0].Tools[1].ID)
	assert.Equal(t, CategoryOSINT, groups[1].Category)
	assert.Equal(t, map[Category]int{CategoryNetwork: 2, CategoryOSINT: 1}, reg.Counts())
}

func TestRegistry_UnknownID(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	_, err := reg.New("ghost")
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.False(t, errors.Is(err, ErrToolUnavailable))
}

// =============================================================================
// BASE AND ENVELOPE TESTS
// =============================================================================

func TestCheckSafety(t *testing.T) {
	audit, err := security.NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	defer audit.Close()

	high := NewBase(Metadata{Name: "Flood", RiskLevel: RiskHigh})
	high.BindAudit(audit, security.Identity{Username: "u", Hostname: "h"})

	assert.True(t, high.CheckSafety(3600))
	assert.Equal(t, 1, audit.Written())
	assert.False(t, high.CheckSafety(3601))
	assert.False(t, high.CheckSafety(-1))
	assert.False(t, high.CheckSafety("soon"))
	assert.Equal(t, 1, audit.Written(), "rejections are not audited by the check itself")
	for _, e := range high.Errors() {
		assert.Contains(t, e, "Safety Limit")
	}

	low := NewBase(Metadata{Name: "Lookup", RiskLevel: RiskLow})
	assert.True(t, low.CheckSafety(7200))
	assert.False(t, low.CheckSafety(-5))
}

func TestBase_FinishIsForwardOnly(t *testing.T) {
	b := NewBase(metaIn("x", CategoryUtilities))
	assert.Equal(t, StatusIdle, b.Status())
	b.begin()
	assert.True(t, b.IsRunning())
	b.finish(StatusCompleted)
	b.finish(StatusRunning)
	assert.Equal(t, StatusCompleted, b.Status())
	assert.False(t, b.IsRunning())
}

func TestBase_ApplyKnobs(t *testing.T) {
	b := NewBase(metaIn("x", CategoryWeb))
	b.ApplyKnobs(Params{
		"timeout":    "5",
		"threads":    4,
		"verify_ssl": "no",
		"auth":       "admin:s3cret",
		"headers":    map[string]any{"X-Test": 1},
	})
	assert.Equal(t, "5s", b.Timeout.String())
	assert.Equal(t, 4, b.ScanOptions.Threads)
	assert.False(t, b.ScanOptions.VerifySSL)
	require.NotNil(t, b.Auth)
	assert.Equal(t, "admin", b.Auth.Username)
	assert.Equal(t, "1", b.Headers["X-Test"])
}

func TestEnvelope_TextAndExports(t *testing.T) {
	b := NewBase(metaIn("Echo", CategoryUtilities))
	b.begin()
	b.AddResult(Record{"port": 22, "state": "open"})
	b.AddWarning("slow host")
	b.finish(StatusCompleted)

	env := b.Envelope("transcript line\n")
	assert.Equal(t, []string{NoneDetected}, env.Errors)
	assert.Equal(t, []string{"slow host"}, env.Warnings)
	assert.Equal(t, 1, env.Summary.TotalWarnings)
	assert.Equal(t, "100%", env.Summary.AccuracyLevel)
	assert.True(t, env.Summary.V3Certified)

	text := env.Text()
	assert.Contains(t, text, "port: 22, state: open")
	assert.Contains(t, text, "transcript line")

	dir := t.TempDir()
	require.NoError(t, b.ExportJSON(filepath.Join(dir, "r.json")))
	require.NoError(t, b.ExportTXT(filepath.Join(dir, "r.txt")))
}

func TestEnvelope_UnfinishedCountsAsFailed(t *testing.T) {
	b := NewBase(metaIn("Echo", CategoryUtilities))
	env := b.Envelope("")
	assert.True(t, env.Failed())
	assert.True(t, strings.HasPrefix(env.Results[0].(NoFindings).Status, "INCOMPLETE"))
}
