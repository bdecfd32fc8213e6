// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleopantest/aleopantest/internal/tools"
)

func TestMain(m *testing.M) {
	ForceColorsEnabled(false)
	os.Exit(m.Run())
}

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantTool string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:     "tool only",
			args:     []string{"dns"},
			wantTool: "dns",
		},
		{
			name:     "tool with flag",
			args:     []string{"dns", "--domain", "example.com"},
			wantTool: "dns",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("domain") != "example.com" {
					t.Errorf("Flag(domain) = %q, want %q", p.Flag("domain"), "example.com")
				}
			},
		},
		{
			name:     "flag with equals",
			args:     []string{"port-scan", "--ports=22,80"},
			wantTool: "port-scan",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("ports") != "22,80" {
					t.Errorf("Flag(ports) = %q, want %q", p.Flag("ports"), "22,80")
				}
			},
		},
		{
			name:     "trailing boolean flag",
			args:     []string{"ddos-sim", "--authorized"},
			wantTool: "ddos-sim",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("authorized") {
					t.Error("BoolFlag(authorized) should be true")
				}
			},
		},
		{
			name:     "explicit false",
			args:     []string{"url-mask", "--generate-qr=false"},
			wantTool: "url-mask",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("generate-qr") || !p.HasFlag("generate-qr") {
					t.Error("generate-qr should be present and false")
				}
			},
		},
		{
			name:     "switch does not swallow positional",
			args:     []string{"url-shorten", "--serve", "extra"},
			wantTool: "url-shorten",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "extra" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "extra")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args, runSwitches...)
			if parser.Positional(0) != tt.wantTool {
				t.Errorf("Positional(0) = %q, want %q", parser.Positional(0), tt.wantTool)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagInt(t *testing.T) {
	p := NewArgParser([]string{"history", "--limit", "5", "--bad", "x"})

	n, err := p.FlagInt("limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = p.FlagInt("missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = p.FlagInt("bad", 0)
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestArgParser_NamesKeepOrder(t *testing.T) {
	p := NewArgParser([]string{"x", "--b", "1", "--a", "--c=3", "--b", "2"})
	assert.Equal(t, []string{"b", "a", "c"}, p.Names())
	v, ok := p.Value("b")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	v, _ = p.Value("a")
	assert.Equal(t, true, v)
}

func TestParseBoolString(t *testing.T) {
	for _, in := range []string{"true", "YES", "y", "1", "on"} {
		got, err := ParseBoolString(in)
		require.NoError(t, err, in)
		assert.True(t, got, in)
	}
	for _, in := range []string{"false", "no", "N", "0", "off"} {
		got, err := ParseBoolString(in)
		require.NoError(t, err, in)
		assert.False(t, got, in)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdHelp},
		{[]string{"list-tools"}, CmdListTools},
		{[]string{"ls"}, CmdListTools},
		{[]string{"info"}, CmdInfo},
		{[]string{"help-tool", "dns"}, CmdHelpTool},
		{[]string{"category", "network"}, CmdListByCategory},
		{[]string{"run", "dns"}, CmdRun},
		{[]string{"tui"}, CmdTUI},
		{[]string{"web"}, CmdWeb},
		{[]string{"api"}, CmdServer},
		{[]string{"config-show"}, CmdConfigShow},
		{[]string{"history"}, CmdHistory},
		{[]string{"export", "dns"}, CmdExport},
		{[]string{"--version"}, CmdVersion},
		{[]string{"-h"}, CmdHelp},
		{[]string{"RUN", "dns"}, CmdRun},
		{[]string{"launch"}, CmdUnknown},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			got, _, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_GlobalFlagsAnywhere(t *testing.T) {
	cmd, args, err := Parse([]string{"run", "--json", "dns", "--domain", "example.com", "--quota=30", "--config", "c.toml", "-v", "--no-color"})
	require.NoError(t, err)

	assert.Equal(t, CmdRun, cmd)
	assert.True(t, args.JSON)
	assert.True(t, args.Verbose)
	assert.True(t, args.NoColor)
	assert.Equal(t, 30, args.Quota)
	assert.Equal(t, "c.toml", args.ConfigPath)
	assert.Equal(t, []string{"dns", "--domain", "example.com"}, args.Raw)
}

func TestParse_DoubleDashStopsGlobalFlags(t *testing.T) {
	_, args, err := Parse([]string{"run", "hash-gen", "--", "--json"})
	require.NoError(t, err)
	assert.False(t, args.JSON)
	assert.Equal(t, []string{"hash-gen", "--json"}, args.Raw)
}

func TestParse_BadGlobalFlags(t *testing.T) {
	for _, argv := range [][]string{
		{"info", "--quota"},
		{"info", "--quota", "0"},
		{"info", "--quota", "ten"},
		{"info", "--config"},
	} {
		_, _, err := Parse(argv)
		var usage *UsageError
		assert.ErrorAs(t, err, &usage, strings.Join(argv, " "))
	}
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "list-by-category", CmdListByCategory.String())
	assert.Equal(t, "unknown", Command(999).String())
}

// =============================================================================
// RUN FLAG MAPPING (run.go)
// =============================================================================

func TestParamName(t *testing.T) {
	assert.Equal(t, "file_path", ParamName("file-path"))
	assert.Equal(t, "fake_domain", ParamName("fake-domain"))
	assert.Equal(t, "search-engine", ParamName("search-engine"))
	assert.Equal(t, "host", ParamName("host"))
}

func TestToolParams_DropsCLIFlags(t *testing.T) {
	p := NewArgParser([]string{
		"url-shorten", "--url", "https://example.org", "--alias", "promo",
		"--generate-qr", "--output", "out.json", "--serve", "--bind", "0.0.0.0",
		"--report", "http://127.0.0.1:8002", "--interactive",
	}, runSwitches...)

	assert.Equal(t, tools.Params{
		"url":         "https://example.org",
		"alias":       "promo",
		"generate_qr": true,
	}, ToolParams(p))
}

func TestReportURL(t *testing.T) {
	got, err := reportURL("http://127.0.0.1:8002")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8002/aleopantest/api/report", got)

	got, err = reportURL("https://dash.local/custom/report")
	require.NoError(t, err)
	assert.Equal(t, "https://dash.local/custom/report", got)

	for _, bad := range []string{"127.0.0.1:8002", "ftp://host/x", "://"} {
		_, err := reportURL(bad)
		assert.Error(t, err, bad)
	}
}

// =============================================================================
// SUGGESTIONS AND ERRORS
// =============================================================================

func TestSuggestCommand(t *testing.T) {
	assert.Equal(t, "list-tools", SuggestCommand("list-tool"))
	assert.Equal(t, "history", SuggestCommand("histroy"))
	assert.Equal(t, "", SuggestCommand("run"))
	assert.Equal(t, "", SuggestCommand("zzzzzzzz"))
	assert.Equal(t, "", SuggestCommand("x"))
}

func TestSuggest_ToolIDs(t *testing.T) {
	ids := []string{"dns", "port-scan", "hash-gen", "url-shorten"}
	assert.Equal(t, "port-scan", suggest("portscan", ids))
	assert.Equal(t, "hash-gen", suggest("hash-gne", ids))
	assert.Equal(t, "", suggest("sniff", ids))
}

func TestExitCode(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ExitSuccess, ExitCode(ctx, nil))
	assert.Equal(t, ExitFailure, ExitCode(ctx, errors.New("boom")))
	assert.Equal(t, ExitInterrupted, ExitCode(ctx, context.Canceled))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, ExitInterrupted, ExitCode(cancelled, nil))
}

func TestDisplayError_JSON(t *testing.T) {
	var sb strings.Builder
	DisplayError(&sb, &NotFoundError{Resource: "tool", ID: "nope"}, true)
	assert.Contains(t, sb.String(), `"error_type": "not_found_error"`)
	assert.Contains(t, sb.String(), `"id": "nope"`)

	sb.Reset()
	DisplayError(&sb, &UsageError{Msg: "bad flag"}, false)
	assert.Contains(t, sb.String(), "[ERROR] bad flag")
	assert.Contains(t, sb.String(), "aleopantest help")
}
