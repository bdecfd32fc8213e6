// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the aleopantest packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - WriteJSONFile: indent-encode a value and write it atomically
//
// Display:
//   - Truncate, PadRight: display-width aware string shaping for tables
package util
