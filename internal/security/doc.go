// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security holds the safety-relevant plumbing shared by all frontends:
// the append-only audit trail, the operator identity stamped on every
// envelope, and filename sanitizing for uploads and exports.
//
// # Audit Format
//
// Each record is one line:
//
//	[2025-01-02T15:04:05Z] AUDIT | alice@kali | Tool: DDoS Simulator | Action: Safety check passed (duration=30s)
//
// The file is opened with O_APPEND and synced after every record. Rotation is
// left to the operator.
package security
