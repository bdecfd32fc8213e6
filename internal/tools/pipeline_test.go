// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ALIAS TESTS
// =============================================================================

func TestNormalizeAliases(t *testing.T) {
	tests := []struct {
		name string
		tool string
		in   Params
		want Params
	}{
		{"geo host", "ip-geo", Params{"host": "8.8.8.8"}, Params{"ip": "8.8.8.8"}},
		{"port target", "port-scan", Params{"target": "a.com"}, Params{"host": "a.com"}},
		{"port ip", "port-scan", Params{"ip": "10.0.0.1"}, Params{"host": "10.0.0.1"}},
		{"dns url", "dns", Params{"url": "example.com"}, Params{"domain": "example.com"}},
		{"web target", "http-headers", Params{"target": "http://x.io"}, Params{"url": "http://x.io"}},
		{"ddos host", "ddos-sim", Params{"host": "x"}, Params{"target": "x"}},
		{"search engine", "dork-builder", Params{"keyword": "k", "search-engine": "bing"}, Params{"query": "k", "engine": "bing"}},
		{"canonical wins", "ip-geo", Params{"host": "1.1.1.1", "ip": "8.8.8.8"}, Params{"ip": "8.8.8.8"}},
		{"unknown tool untouched", "nope", Params{"host": "x"}, Params{"host": "x"}},
		{"unknown names kept", "dns", Params{"domain": "a.io", "extra": 1}, Params{"domain": "a.io", "extra": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAliases(tt.tool, tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeAliases(tt.tool, got), "normalization must be idempotent")
		})
	}
}

func TestNormalizeAliases_DoesNotMutateInput(t *testing.T) {
	in := Params{"host": "8.8.8.8"}
	NormalizeAliases("ip-geo", in)
	assert.Equal(t, Params{"host": "8.8.8.8"}, in)
}

// =============================================================================
// COERCION TESTS
// =============================================================================

func TestCoerce(t *testing.T) {
	schema := []Field{
		{Name: "port", Type: FieldNumber, Default: 80},
		{Name: "threads", Type: "int"},
		{Name: "ratio", Type: FieldFloat},
		{Name: "verbose", Type: "checkbox"},
		{Name: "extra", Type: FieldJSON},
		{Name: "tags", Type: "array"},
		{Name: "label", Type: FieldText},
		{Name: "since", Type: FieldDate},
	}
	in := Params{
		"threads": "12",
		"ratio":   "",
		"verbose": "On",
		"extra":   "",
		"tags":    "a, b,,c ",
		"label":   42,
		"since":   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	out, warnings := Coerce(schema, in)
	assert.Empty(t, warnings)
	assert.Equal(t, 80, out["port"], "missing field filled from default")
	assert.Equal(t, 12, out["threads"])
	assert.Equal(t, 0.0, out["ratio"])
	assert.Equal(t, true, out["verbose"])
	assert.Equal(t, map[string]any{}, out["extra"])
	assert.Equal(t, []string{"a", "b", "c"}, out["tags"])
	assert.Equal(t, "42", out["label"])
	assert.Equal(t, "2024-05-01", out["since"])
}

func TestCoerce_NumberFallsBackOnFailure(t *testing.T) {
	schema := []Field{
		{Name: "port", Type: FieldNumber, Default: 443},
		{Name: "count", Type: FieldNumber},
	}
	out, warnings := Coerce(schema, Params{"port": "abc", "count": "xyz"})

	assert.Len(t, warnings, 2)
	assert.Equal(t, 443, out["port"])
	assert.Equal(t, 0, out["count"])
}

func TestCoerce_BadJSONKeepsRawValue(t *testing.T) {
	schema := []Field{{Name: "body", Type: FieldJSON}}
	out, warnings := Coerce(schema, Params{"body": "{nope"})

	require.Len(t, warnings, 1)
	assert.Equal(t, "{nope", out["body"])
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestIsIPv4(t *testing.T) {
	assert.True(t, IsIPv4("8.8.8.8"))
	assert.True(t, IsIPv4("255.255.255.255"))
	assert.False(t, IsIPv4("256.1.1.1"))
	assert.False(t, IsIPv4("1.1.1"))
	assert.False(t, IsIPv4("a.b.c.d"))
	assert.False(t, IsIPv4("1.1.1.1.1"))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateURL("url", "https://example.com/x"))
	assert.Error(t, ValidateURL("url", "example.com"))
	assert.Error(t, ValidateURL("url", "ftp://example.com"))

	assert.NoError(t, ValidatePort("port", 65535))
	assert.Error(t, ValidatePort("port", 0))
	assert.Error(t, ValidatePort("port", 70000))

	assert.NoError(t, ValidateThreads("threads", 10, 50))
	assert.Error(t, ValidateThreads("threads", 51, 50))

	assert.NoError(t, ValidateDomain("domain", "sub.example.co.uk"))
	assert.Error(t, ValidateDomain("domain", "localhost"))

	assert.NoError(t, ValidateMAC("mac", "00:1A:2b:3c:4d:5e"))
	assert.NoError(t, ValidateMAC("mac", "001a.2b3c.4d5e"))
	assert.Error(t, ValidateMAC("mac", "00:1A:2b"))
}

func TestParsePortSpec(t *testing.T) {
	ports, err := ParsePortSpec("22, 80,443-445,80")
	require.NoError(t, err)
	assert.Equal(t, []int{22, 80, 443, 444, 445}, ports)

	_, err = ParsePortSpec("10-5")
	assert.Error(t, err)
	_, err = ParsePortSpec("0")
	assert.Error(t, err)
}

func TestValidateSchema(t *testing.T) {
	schema := []Field{
		{Name: "host", Type: FieldText, Required: true},
		{Name: "threads", Type: FieldNumber, Min: Bound(1), Max: Bound(50)},
		{Name: "mode", Type: FieldSelect, Options: []string{"fast", "slow"}},
	}

	assert.NoError(t, ValidateSchema(schema, Params{"host": "x", "threads": 5, "mode": "FAST"}))

	err := ValidateSchema(schema, Params{"host": " ", "threads": 99, "mode": "other"})
	var ves ValidationErrors
	require.ErrorAs(t, err, &ves)
	assert.Len(t, ves, 3)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.False(t, Retryable(err))
}

// =============================================================================
// ERROR KIND TESTS
// =============================================================================

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRuntime, KindOf(errors.New("boom")))
	assert.Equal(t, KindRuntime, KindOf(Runtime("dial", errors.New("refused"))))
	assert.Equal(t, KindSafety, KindOf(NewSafety("too long")))
	assert.Equal(t, KindDependency, KindOf(NewDependency("raw sockets unavailable", "run as root")))
	assert.Equal(t, KindFramework, KindOf(ErrToolNotFound))
	assert.Equal(t, KindValidation, KindOf(&ValidationError{Param: "p", Message: "bad"}))

	assert.True(t, Retryable(errors.New("timeout")))
	assert.False(t, Retryable(NewSafety("x")))
	assert.False(t, Retryable(nil))
}

func TestDependencyErrorCarriesHint(t *testing.T) {
	err := NewDependency("packet capture unavailable", "install libpcap")
	assert.Contains(t, err.Error(), "install libpcap")
}

// =============================================================================
// AUTO-FILL TESTS
// =============================================================================

type stubResolver map[string][]string

func (s stubResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := s[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

func TestClassify(t *testing.T) {
	tests := map[string]TargetKind{
		"https://example.com/a": TargetURL,
		"HTTP://x.io":           TargetURL,
		"bob@example.com":       TargetEmail,
		"10.1.2.3":              TargetIP,
		"example.com":           TargetDomain,
		"999.1.1.1":             TargetDomain,
		"example.":              TargetUnknown,
		"localhost":             TargetUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, Classify(in), in)
	}
}

func TestAnalyze(t *testing.T) {
	res := stubResolver{"example.com": {"::1", "93.184.216.34"}}

	info := Analyze(context.Background(), "https://example.com/login", res)
	assert.Equal(t, TargetURL, info.Kind)
	assert.Equal(t, "example.com", info.Domain)
	assert.Equal(t, "/login", info.Path)
	assert.Equal(t, "93.184.216.34", info.IP)

	info = Analyze(context.Background(), "ops@example.com", nil)
	assert.Equal(t, "example.com", info.Domain)
	assert.Empty(t, info.IP)

	info = Analyze(context.Background(), "missing.invalid", res)
	assert.Empty(t, info.IP)
}

func TestAutofill(t *testing.T) {
	info := Analyze(context.Background(), "example.com", nil)

	got := Autofill("port-scan", info, Params{})
	assert.Equal(t, Params{"host": "example.com", "port": "1-1000"}, got)

	got = Autofill("port-scan", info, Params{"port": "22"})
	assert.Equal(t, "22", got["port"], "explicit params win")

	got = Autofill("http-headers", info, Params{})
	assert.Equal(t, "http://example.com", got["url"])

	got = Autofill("ip-geo", info, Params{})
	assert.NotContains(t, got, "ip", "blank seeds are skipped")

	got = Autofill("unknown-tool", info, Params{"a": 1})
	assert.Equal(t, Params{"a": 1}, got)
}
