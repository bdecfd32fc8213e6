// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - command parsing, usage text and version output.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdListTools
	CmdInfo
	CmdHelpTool
	CmdListByCategory
	CmdRun
	CmdTUI
	CmdWeb
	CmdServer
	CmdConfigShow
	CmdHistory
	CmdExport
	CmdVersion
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdHelp:           "help",
	CmdListTools:      "list-tools",
	CmdInfo:           "info",
	CmdHelpTool:       "help-tool",
	CmdListByCategory: "list-by-category",
	CmdRun:            "run",
	CmdTUI:            "tui",
	CmdWeb:            "web",
	CmdServer:         "server",
	CmdConfigShow:     "config-show",
	CmdHistory:        "history",
	CmdExport:         "export",
	CmdVersion:        "version",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Quota      int // session quota override in seconds; 0 keeps the config
	ConfigPath string
	NoColor    bool
	Verbose    bool

	// Name is the command word as typed, kept for suggestions.
	Name string

	// Raw holds everything after the command word, global flags removed.
	Raw []string
}

const usageText = `aleopantest - pentest toolbox core

Usage:
  aleopantest <command> [flags]

Catalog:
  list-tools                      All tools grouped by category
  list-by-category [category|all] Tools of one category
  info                            Tool counts per category and platform
  help-tool <tool_id>             Tool metadata, parameters and example

Execution:
  run <tool_id> [flags]           Run a tool through the orchestrator
    --host, --ip, --url, --domain, --port, --target, --type, --duration,
    --threads, --text, --file-path, --algorithm, --query, --engine, ...
                                  Tool parameters (dashes become underscores)
    --output PATH                 Export the result (.json .txt .yaml .md .html .pdf)
    --report URL                  Post the result to a running web frontend
    --interactive                 Prompt for missing parameters
    --serve                       Keep the redirect listener up (url-shorten, url-mask)
  history [tool_id] [--limit N]   Stored results, newest first
  export <tool_id> --format F     Export the latest stored result
        [--output PATH]

Frontends:
  tui                             Terminal UI
  web [--host H] [--port P]       Browser UI and API (default port 8002)
  server [--host H] [--port P]    API only (default port 5000)

Other:
  config-show [key]               Effective configuration as JSON
  version                         Version information
  help                            This text

Global flags:
  --json                          Machine-readable output
  --quota SECONDS                 Session quota (default 600)
  --config PATH                   Config file (.toml, .json, .yaml)
  --no-color                      Disable colors
  -v, --verbose                   Debug logging on stderr

Exit codes: 0 success (including failed tool runs), 1 framework error,
130 interrupted.
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// VersionInfo is the JSON shape of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentVersion returns the build information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	v := CurrentVersion()
	fmt.Fprintf(w, "aleopantest %s\n", v.Version)
	fmt.Fprintf(w, "  Commit:  %s\n", v.GitCommit)
	fmt.Fprintf(w, "  Built:   %s\n", v.BuildDate)
	fmt.Fprintf(w, "  Go:      %s\n", v.GoVersion)
	fmt.Fprintf(w, "  OS/Arch: %s\n", v.Platform)
}

// Parse splits argv (without the program name) into a command and its
// arguments. Global flags are accepted anywhere on the line.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		return CmdHelp, args, nil
	}

	args.Name = strings.ToLower(remaining[0])
	args.Raw = remaining[1:]

	switch args.Name {
	case "list-tools", "list", "ls":
		return CmdListTools, args, nil
	case "info":
		return CmdInfo, args, nil
	case "help-tool":
		return CmdHelpTool, args, nil
	case "list-by-category", "category":
		return CmdListByCategory, args, nil
	case "run":
		return CmdRun, args, nil
	case "tui":
		return CmdTUI, args, nil
	case "web":
		return CmdWeb, args, nil
	case "server", "api":
		return CmdServer, args, nil
	case "config-show", "config":
		return CmdConfigShow, args, nil
	case "history":
		return CmdHistory, args, nil
	case "export":
		return CmdExport, args, nil
	case "version", "--version":
		return CmdVersion, args, nil
	case "help", "-h", "--help":
		return CmdHelp, args, nil
	default:
		return CmdUnknown, args, nil
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Flags after a bare "--" are left alone.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var args Args
	remaining := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, value, hasValue := strings.Cut(arg, "=")

		switch name {
		case "--":
			remaining = append(remaining, argv[i+1:]...)
			return remaining, args, nil
		case "--json":
			args.JSON = !hasValue || value == "true"
		case "--no-color":
			args.NoColor = !hasValue || value == "true"
		case "-v", "--verbose":
			args.Verbose = !hasValue || value == "true"
		case "--config":
			if !hasValue {
				if i+1 >= len(argv) {
					return nil, args, &UsageError{Msg: "--config requires a path"}
				}
				i++
				value = argv[i]
			}
			args.ConfigPath = value
		case "--quota":
			if !hasValue {
				if i+1 >= len(argv) {
					return nil, args, &UsageError{Msg: "--quota requires a number of seconds"}
				}
				i++
				value = argv[i]
			}
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, args, &UsageError{Msg: fmt.Sprintf("--quota must be a positive number of seconds (got %q)", value)}
			}
			args.Quota = n
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}
