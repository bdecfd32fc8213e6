// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps the history of finished tool invocations.
//
// Every envelope produced by the orchestrator is saved so frontends can
// serve it again later: the HTTP download endpoint, the CLI history and
// export commands, and the TUI result view.
//
// # Key Types
//
//   - History: the store interface
//   - SQLiteHistory: persistent store on modernc.org/sqlite
//   - MemoryHistory: bounded in-process store for tests and --no-history
//
// # Usage
//
//	hist, err := storage.OpenSQLite("output/history.db")
//	defer hist.Close()
//	orch.History = hist
//
//	env, err := hist.Latest(ctx, "dns")
package storage
