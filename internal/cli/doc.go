// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the command-line frontend of aleopantest.
//
// Main parses the command line, wires an App (configuration, logging, audit
// log, session governor, tool registry, orchestrator, history store and the
// redirect services) and dispatches to one command. Every frontend, the TUI
// and the HTTP server included, is started from here and shares the same
// App, so quota and audit state are per process.
//
// # Commands
//
//	list-tools                      all tools grouped by category
//	list-by-category [category|all] one category
//	info                            counts per category, platform, session
//	help-tool <tool_id>             metadata and parameters
//	run <tool_id> [--param value]   execute through the orchestrator
//	history [tool_id]               stored results
//	export <tool_id> --format F     re-export the latest stored result
//	tui                             terminal UI
//	web | server                    HTTP frontends
//	config-show [key]               effective configuration
//	version
//
// # Run flags
//
// Every --flag that is not a run option becomes a tool parameter; dashes
// map to underscores ("--file-path" is "file_path"). The run options are
// --output, --report, --interactive, --serve and --bind.
//
// # Global flags
//
//	--json           machine-readable output
//	--quota SECONDS  session quota
//	--config PATH    configuration file
//	--no-color       plain output
//	-v, --verbose    debug logging on stderr
//
// # Exit codes
//
// 0 on success, including a tool run whose envelope reports status failed;
// 1 on usage and framework errors; 130 when interrupted.
package cli
