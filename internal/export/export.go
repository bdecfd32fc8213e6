// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders an envelope in one format.
type Exporter interface {
	// Export converts an envelope to the target format.
	Export(env *tools.Envelope) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	// MimeType returns the Content-Type for downloads.
	MimeType() string
}

// Formats lists the supported format names.
var Formats = []string{"json", "txt", "yaml", "md", "html", "pdf"}

// ForFormat returns the exporter for a format name. Common synonyms
// (text, yml, markdown) are accepted.
func ForFormat(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return JSONExporter{}, nil
	case "txt", "text":
		return TextExporter{}, nil
	case "yaml", "yml":
		return YAMLExporter{}, nil
	case "md", "markdown":
		return MarkdownExporter{}, nil
	case "html", "htm":
		return HTMLExporter{}, nil
	case "pdf":
		return PDFExporter{}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q (supported: %s)", format, strings.Join(Formats, ", "))
}

// ForPath picks the exporter from the file extension. Paths without one
// export as JSON.
func ForPath(path string) (Exporter, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return JSONExporter{}, nil
	}
	return ForFormat(ext)
}

// Write renders env with the exporter matching path and writes it
// atomically.
func Write(path string, env *tools.Envelope) error {
	exp, err := ForPath(path)
	if err != nil {
		return err
	}
	data, err := exp.Export(env)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Filename builds a download name like "dns_20250102_150405.json".
func Filename(toolID string, exp Exporter, at time.Time) string {
	return fmt.Sprintf("%s_%s%s", security.SafeFilename(toolID), at.Format("20060102_150405"), exp.FileExtension())
}

func checkEnvelope(env *tools.Envelope) error {
	if env == nil {
		return fmt.Errorf("envelope is nil")
	}
	return nil
}

func title(env *tools.Envelope) string {
	return util.FirstNonEmpty(env.ToolInfo.Name, env.ToolID, "Tool report")
}
