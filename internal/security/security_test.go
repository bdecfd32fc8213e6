// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() Identity {
	return Identity{Username: "alice", Hostname: "kali", OS: "linux", Env: EnvDevelopment}
}

// =============================================================================
// AUDIT LOGGER TESTS
// =============================================================================

func TestAuditLogger_LineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	logger, err := NewAuditLogger(path)
	require.NoError(t, err)
	logger.now = func() time.Time { return time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC) }

	require.NoError(t, logger.Log(testIdentity(), "DDoS Simulator", "Safety check passed"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"[2025-01-02T15:04:05Z] AUDIT | alice@kali | Tool: DDoS Simulator | Action: Safety check passed\n",
		string(data))
}

func TestAuditLogger_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	first, err := NewAuditLogger(path)
	require.NoError(t, err)
	require.NoError(t, first.Log(testIdentity(), "dns", "one"))
	require.NoError(t, first.Close())

	second, err := NewAuditLogger(path)
	require.NoError(t, err)
	require.NoError(t, second.Log(testIdentity(), "dns", "two"))

	records, err := second.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "one", records[0].Action)
	assert.Equal(t, "two", records[1].Action)
	assert.Equal(t, 1, second.Written())
}

func TestAuditLogger_ConcurrentWritersDoNotInterleave(t *testing.T) {
	logger, err := NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, logger.Log(testIdentity(), "port-scan", fmt.Sprintf("worker %d", n)))
		}(i)
	}
	wg.Wait()

	records, err := logger.Records()
	require.NoError(t, err)
	assert.Len(t, records, 20)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.Before(records[i-1].Timestamp))
	}
}

func TestAuditLogger_RedactsAndFlattens(t *testing.T) {
	logger, err := NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.Log(testIdentity(), "http", "sent Bearer abc.def\nwith password=hunter2"))

	records, err := logger.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Action, "hunter2")
	assert.NotContains(t, records[0].Action, "abc.def")
	assert.False(t, strings.Contains(records[0].Action, "\n"))
}

func TestAuditLogger_ClosedAndNil(t *testing.T) {
	logger, err := NewAuditLogger(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	assert.Error(t, logger.Log(testIdentity(), "dns", "late"))

	var nilLogger *AuditLogger
	assert.NoError(t, nilLogger.Log(testIdentity(), "dns", "ignored"))
}

func TestParseAuditRecord_Rejects(t *testing.T) {
	_, err := ParseAuditRecord("garbage")
	assert.Error(t, err)
}

// =============================================================================
// IDENTITY TESTS
// =============================================================================

func envMap(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestCurrentIdentity_Precedence(t *testing.T) {
	id := CurrentIdentity(envMap(map[string]string{
		"ALEO_ADMIN_USER": "operator",
		"USER":            "root",
		"HOSTNAME":        "box",
	}), "6.1.0")

	assert.Equal(t, "operator", id.Username)
	assert.Equal(t, "box", id.Hostname)
	assert.Equal(t, "6.1.0", id.OSRelease)
	assert.Equal(t, EnvDevelopment, id.Env)
	assert.NotEmpty(t, id.Timestamp)
}

func TestCurrentIdentity_WindowsFallbacks(t *testing.T) {
	id := CurrentIdentity(envMap(map[string]string{
		"USERNAME":     "jdoe",
		"COMPUTERNAME": "WS01",
	}), "")
	assert.Equal(t, "jdoe", id.Username)
	assert.Equal(t, "WS01", id.Hostname)
}

func TestCurrentIdentity_Env(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"explicit", map[string]string{"ALEO_ENV": "Staging"}, "staging"},
		{"kubernetes", map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"}, EnvProduction},
		{"explicit beats kubernetes", map[string]string{"ALEO_ENV": "lab", "KUBERNETES_SERVICE_HOST": "x"}, "lab"},
		{"default", map[string]string{}, EnvDevelopment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentIdentity(envMap(tt.env), "").Env)
		})
	}
}

// =============================================================================
// FILENAME TESTS
// =============================================================================

func TestCheckFilename(t *testing.T) {
	assert.NoError(t, CheckFilename("photo.jpg"))
	assert.ErrorIs(t, CheckFilename("../etc/passwd"), ErrUnsafeFilename)
	assert.ErrorIs(t, CheckFilename("a/b.png"), ErrUnsafeFilename)
	assert.ErrorIs(t, CheckFilename(`a\b.png`), ErrUnsafeFilename)
	assert.Error(t, CheckFilename(""))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "my_photo_1_.jpg", SafeFilename("my photo(1).jpg"))
	assert.Equal(t, "hidden", SafeFilename(".hidden"))
	assert.Equal(t, "file", SafeFilename("   "))
}
