// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the session governor: a per-process wall-clock
// quota plus the risk-tier limits applied to tool parameters.
//
// # Key Types
//
//   - Governor: quota tracking, limit enforcement, expiry notification
//   - Status: snapshot with H:MM:SS formatted elapsed/remaining time
//   - TickMsg: Bubble Tea message driving the TUI status header
//
// # Usage
//
//	gov := session.NewGovernor(session.DefaultConfig())
//	if !gov.CheckQuota() {
//		// refuse to run anything else
//	}
//	params, notes := gov.EnforceLimits("ddos-sim", true, params, true)
//
// Once the quota passes, Expired() is closed. Live tools and the redirect
// service watch it.
package session
