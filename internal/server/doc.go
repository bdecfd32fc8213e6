// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the HTTP frontend of the toolbox.
//
// Endpoints (under /aleopantest/api):
//   - GET    /admin                          - Operator identity
//   - GET    /session                        - Session quota and run counters
//   - GET    /tools                          - Tool metadata grouped by category
//   - POST   /run                            - Execute a tool, returns the envelope
//   - POST   /report                         - Accept an envelope from a CLI run
//   - GET    /reports, DELETE /reports       - List or clear bridged reports
//   - POST   /upload                         - Multipart upload with EXIF extraction
//   - GET    /download/{tool_id}/{format}    - Latest envelope as an attachment
//
// The web variant also serves the embedded UI at /, /index.html,
// /favicon.ico and /assets/*.
//
// Every request passes Recovery, RequestID, SecurityHeaders, Logging and
// RateLimit in that order.
package server
