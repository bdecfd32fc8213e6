// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools is the framework core of aleopantest: the tool contract, the
// registry, the parameter pipeline and the orchestrator every frontend calls.
//
// # Key Types
//
//   - Metadata / Field: declarative tool descriptor and form schema
//   - Base: embeddable runtime state (results, errors, warnings, status, knobs)
//   - Tool: the interface a catalog entry implements
//   - Registry: id to factory map with robust loading
//   - Orchestrator: normalize, coerce, autofill, gate, run, envelope
//   - Envelope: the result schema returned to every frontend
//
// # Invocation Flow
//
//	alias normalize -> coerce by form schema -> autofill from target
//	-> quota check -> enforce limits -> validate -> safety check
//	-> run (retry runtime failures) -> audit -> envelope
//
// Tools log through zerolog.Ctx(ctx). The orchestrator binds a capture sink to
// that context so the transcript ends up in Envelope.Output.
package tools
