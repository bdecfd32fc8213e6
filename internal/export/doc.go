// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders result envelopes into report files.
//
// # Supported Formats
//
//   - JSON: the envelope exactly as served by the HTTP API
//   - YAML: the same structure for config-minded readers
//   - Text: the plain report also used by Base.ExportTXT
//   - Markdown: a report for tickets and wikis
//   - HTML: a standalone styled page
//   - PDF: a printable report built with gofpdf
//
// # Usage
//
//	exp, err := export.ForPath("report.pdf")
//	data, err := exp.Export(env)
//
// or in one step:
//
//	err := export.Write("report.pdf", env)
package export
