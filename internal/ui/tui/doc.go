// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the Bubble Tea frontend: a filterable tool list, a form
// built from the selected tool's schema, a spinner while the orchestrator
// runs and a scrollable result view. The header shows the session clock and
// turns red once the quota is spent.
package tui
