// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// PDF EXPORTER
// =============================================================================

// PDFExporter writes a printable A4 report. The core fonts only cover
// Latin-1, so text is transliterated through the font's code page.
type PDFExporter struct{}

const (
	pdfLineHeight = 5.0
	pdfMaxOutput  = 8000
)

func (PDFExporter) Export(env *tools.Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title(env)+" report", true)
	pdf.SetAuthor(env.Execution.Admin.Username, true)
	pdf.SetCreator("aleopantest", true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(title(env)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Version %s | %s | risk %s",
		env.ToolInfo.Version, env.ToolInfo.Category, env.ToolInfo.RiskLevel)), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)

	exec := env.Execution
	rows := [][2]string{
		{"Status", strings.ToUpper(string(exec.Status))},
		{"Duration", fmt.Sprintf("%.2fs", exec.Duration)},
		{"Timestamp", exec.Timestamp},
		{"Operator", fmt.Sprintf("%s@%s (%s)", exec.Admin.Username, exec.Admin.Hostname, exec.Admin.Env)},
		{"Session", exec.SessionID},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 6, r[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(r[1]), "1", 1, "L", false, 0, "")
	}

	section := func(heading string, lines []string) {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, heading, "", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 9)
		for _, l := range lines {
			pdf.MultiCell(0, pdfLineHeight, tr("- "+l), "", "L", false)
		}
	}
	section(fmt.Sprintf("Results (%d)", env.Summary.TotalResults), resultLines(env))
	section("Errors", env.Errors)
	section("Warnings", env.Warnings)

	if out := strings.TrimSpace(env.Output); out != "" {
		if len(out) > pdfMaxOutput {
			out = out[:pdfMaxOutput] + "\n[transcript truncated]"
		}
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Transcript", "", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 8)
		pdf.MultiCell(0, 4, tr(out), "", "L", false)
	}
	if d := env.ToolInfo.LegalDisclaimer; d != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(0, 4, tr(d), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (PDFExporter) FileExtension() string { return ".pdf" }
func (PDFExporter) MimeType() string      { return "application/pdf" }
