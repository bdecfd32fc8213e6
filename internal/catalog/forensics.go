// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// PDF METADATA
// =============================================================================

// PDFInfo is the pdf-meta finding.
type PDFInfo struct {
	File     string            `json:"file"`
	Size     int64             `json:"size"`
	Version  string            `json:"version"`
	Pages    int               `json:"pages"`
	Metadata map[string]string `json:"metadata"`
	Text     string            `json:"text,omitempty"`
}

func (PDFInfo) Kind() string { return "pdf_info" }

// identifyingKeys are Info entries that tend to leak people or tooling.
var identifyingKeys = []string{"Author", "Creator", "Producer"}

type pdfMetaTool struct {
	*tools.Base
}

func newPDFMeta() *pdfMetaTool {
	return &pdfMetaTool{Base: tools.NewBase(tools.Metadata{
		Name:        "PDF Metadata Extractor",
		Version:     "1.0",
		Author:      Author,
		Description: "Read the document information dictionary, page count and optionally the text of a PDF",
		Usage:       "run pdf-meta --file-path report.pdf [--extract_text]",
		Example:     "run pdf-meta --file-path ./uploads/1700000000_invoice.pdf",
		Category:    tools.CategoryForensics,
		Tags:        []string{"pdf", "metadata", "forensics", "offline"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"file_path":    "PDF file to inspect",
			"extract_text": "Include plain text of all pages",
			"max_chars":    "Truncate extracted text",
		},
		FormSchema: []tools.Field{
			{Name: "file_path", Label: "File", Type: tools.FieldText, Required: true},
			{Name: "extract_text", Label: "Extract text", Type: tools.FieldBoolean, Default: false},
			{Name: "max_chars", Label: "Max characters", Type: tools.FieldNumber, Default: 5000, Min: tools.Bound(100)},
		},
	})}
}

func (t *pdfMetaTool) Run(_ context.Context, p tools.Params) error {
	info, err := ReadPDF(p.String("file_path"), p.Bool("extract_text", false))
	if err != nil {
		return err
	}
	info.Text = util.Truncate(info.Text, p.Int("max_chars", 5000))
	for _, k := range identifyingKeys {
		if v := info.Metadata[k]; v != "" {
			t.AddWarning(fmt.Sprintf("Metadata discloses %s: %s", k, v))
		}
	}
	t.AddResult(info)
	return nil
}

// ReadPDF opens path and collects its metadata. Malformed files are
// reported as validation errors.
func ReadPDF(path string, withText bool) (info PDFInfo, err error) {
	f, err := os.Open(path)
	if err != nil {
		return PDFInfo{}, tools.NewValidation("file_path: %v", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return PDFInfo{}, tools.Runtime("stat "+path, err)
	}

	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil || !strings.HasPrefix(string(header), "%PDF-") {
		return PDFInfo{}, tools.NewValidation("file_path: %s is not a PDF document", path)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = tools.NewValidation("file_path: malformed PDF: %v", rec)
		}
	}()
	r, err := pdf.NewReader(f, st.Size())
	if err != nil {
		return PDFInfo{}, tools.NewValidation("file_path: %v", err)
	}

	info = PDFInfo{
		File:     path,
		Size:     st.Size(),
		Version:  strings.TrimSpace(strings.TrimPrefix(string(header), "%PDF-")),
		Pages:    r.NumPage(),
		Metadata: map[string]string{},
	}
	dict := r.Trailer().Key("Info")
	for _, k := range dict.Keys() {
		if v := strings.TrimSpace(dict.Key(k).Text()); v != "" {
			info.Metadata[k] = v
		}
	}

	if withText {
		text, err := r.GetPlainText()
		if err != nil {
			return info, tools.Runtime("extract text", err)
		}
		raw, err := io.ReadAll(io.LimitReader(text, maxBodySize))
		if err != nil {
			return info, tools.Runtime("extract text", err)
		}
		info.Text = strings.TrimSpace(string(raw))
	}
	return info, nil
}

// =============================================================================
// IMAGE EXIF
// =============================================================================

// EXIFInfo is the exif-meta finding.
type EXIFInfo struct {
	File      string            `json:"file"`
	Tags      map[string]string `json:"tags"`
	Latitude  *float64          `json:"latitude,omitempty"`
	Longitude *float64          `json:"longitude,omitempty"`
	TakenAt   string            `json:"taken_at,omitempty"`
}

func (EXIFInfo) Kind() string { return "exif" }

type exifWalker map[string]string

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	v := strings.Trim(tag.String(), `"`)
	if len(v) > 256 {
		v = v[:256]
	}
	w[string(name)] = v
	return nil
}

// ExtractEXIF decodes EXIF tags from an image stream.
func ExtractEXIF(r io.Reader) (EXIFInfo, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return EXIFInfo{}, err
	}
	info := EXIFInfo{Tags: map[string]string{}}
	if err := x.Walk(exifWalker(info.Tags)); err != nil {
		return EXIFInfo{}, err
	}
	if lat, long, err := x.LatLong(); err == nil {
		info.Latitude, info.Longitude = &lat, &long
	}
	if at, err := x.DateTime(); err == nil {
		info.TakenAt = at.Format("2006-01-02T15:04:05")
	}
	return info, nil
}

// TagNames returns the decoded tag names in sorted order.
func (e EXIFInfo) TagNames() []string {
	names := make([]string, 0, len(e.Tags))
	for k := range e.Tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type exifMetaTool struct {
	*tools.Base
}

func newEXIFMeta() *exifMetaTool {
	return &exifMetaTool{Base: tools.NewBase(tools.Metadata{
		Name:        "Image EXIF Extractor",
		Version:     "1.0",
		Author:      Author,
		Description: "Extract EXIF tags, capture time and GPS position from a JPEG or TIFF image",
		Usage:       "run exif-meta --file-path photo.jpg",
		Example:     "run exif-meta --file-path ./uploads/1700000000_photo.jpg",
		Category:    tools.CategoryForensics,
		Tags:        []string{"exif", "image", "forensics", "offline"},
		RiskLevel:   tools.RiskLow,
		Parameters:  map[string]string{"file_path": "Image to inspect"},
		FormSchema: []tools.Field{
			{Name: "file_path", Label: "File", Type: tools.FieldText, Required: true},
		},
	})}
}

func (t *exifMetaTool) Run(_ context.Context, p tools.Params) error {
	path := p.String("file_path")
	f, err := os.Open(path)
	if err != nil {
		return tools.NewValidation("file_path: %v", err)
	}
	defer f.Close()

	info, err := ExtractEXIF(f)
	if err != nil {
		t.AddWarning("No EXIF data: " + err.Error())
		return nil
	}
	info.File = path
	if info.Latitude != nil {
		t.AddWarning(fmt.Sprintf("Image embeds GPS position %.5f, %.5f", *info.Latitude, *info.Longitude))
	}
	t.AddResult(info)
	return nil
}
