// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/redirect"
	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// QRSize is the edge length in pixels of generated QR images.
const QRSize = 256

// =============================================================================
// URL SHORTENER
// =============================================================================

// ShortLink is the url-shorten finding.
type ShortLink struct {
	Code      string `json:"code"`
	ShortURL  string `json:"short_url"`
	TargetURL string `json:"target_url"`
	Tracking  bool   `json:"tracking"`
	QRPath    string `json:"qr_path,omitempty"`
}

func (ShortLink) Kind() string { return "short_link" }

type urlShortenTool struct {
	*tools.Base
	deps Deps
}

func newURLShorten(deps Deps) *urlShortenTool {
	return &urlShortenTool{deps: deps, Base: tools.NewBase(tools.Metadata{
		Name:        "URL Shortener",
		Version:     "1.3",
		Author:      Author,
		Description: "Create a short link on the local redirect service with click tracking and an optional QR code",
		Usage:       "run url-shorten --url <url> [--alias name] [--base-url http://host:port] [--generate-qr] [--serve --port 8080]",
		Example:     "run url-shorten --url https://example.com --alias demo --serve --port 18080",
		Category:    tools.CategoryUtilities,
		Tags:        []string{"url", "redirect", "qr"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"url":         "Destination URL",
			"alias":       "Custom code (3+ chars of A-Z a-z 0-9 _ -)",
			"base_url":    "Public base URL of the redirect service",
			"port":        "Redirect service port used when base_url is empty",
			"generate_qr": "Write a QR PNG of the short link",
			"tracking":    "Record clicks",
		},
		FormSchema: []tools.Field{
			{Name: "url", Label: "URL", Type: tools.FieldText, Required: true},
			{Name: "alias", Label: "Alias", Type: tools.FieldText},
			{Name: "base_url", Label: "Base URL", Type: tools.FieldText, Group: "advanced"},
			{Name: "port", Label: "Port", Type: tools.FieldNumber, Default: deps.RedirectPort,
				Min: tools.Bound(1), Max: tools.Bound(65535), Group: "advanced"},
			{Name: "generate_qr", Label: "Generate QR", Type: tools.FieldBoolean, Default: false},
			{Name: "tracking", Label: "Track clicks", Type: tools.FieldBoolean, Default: true},
		},
	})}
}

func (t *urlShortenTool) Validate(p tools.Params) error {
	var errs []error
	errs = append(errs, tools.ValidateURL("url", p.String("url")))
	if alias := p.String("alias"); alias != "" && !redirect.ValidAlias(alias) {
		errs = append(errs, &tools.ValidationError{Param: "alias", Message: redirect.ErrInvalidAlias.Error()})
	}
	if base := p.String("base_url"); base != "" {
		errs = append(errs, tools.ValidateURL("base_url", base))
	}
	return tools.Collect(errs...)
}

func (t *urlShortenTool) Run(ctx context.Context, p tools.Params) error {
	svc := t.deps.Shortener
	if svc == nil {
		return tools.NewDependency("URL shortener service is not running", "start it with `run url-shorten --serve` or the web frontend")
	}
	target := strings.TrimSpace(p.String("url"))
	tracking := p.Bool("tracking", true)

	code := p.String("alias")
	if code == "" {
		var err error
		if code, err = svc.NewCode(); err != nil {
			return tools.Runtime("generate short code", err)
		}
	} else if existing, ok := svc.Route(code); ok && existing.TargetURL != target {
		t.AddWarning(fmt.Sprintf("Alias %q already pointed to %s; it now points to %s", code, existing.TargetURL, target))
	}

	route, err := svc.AddRoute(code, target, redirect.WithTracking(tracking))
	if err != nil {
		return tools.Runtime("register route", err)
	}

	link := ShortLink{
		Code:      route.Path,
		ShortURL:  ShortURL(p.String("base_url"), p.Int("port", t.deps.RedirectPort), route.Path),
		TargetURL: route.TargetURL,
		Tracking:  route.TrackingEnabled,
	}
	if p.Bool("generate_qr", false) {
		path := filepath.Join(t.deps.artifactDir(tools.CategoryUtilities), "qr_"+link.Code+".png")
		if err := WriteQR(path, link.ShortURL); err != nil {
			t.AddWarning("QR generation failed: " + err.Error())
		} else {
			link.QRPath = path
		}
	}

	zerolog.Ctx(ctx).Info().Str("code", link.Code).Str("target", target).Msg("short link created")
	t.AddResult(link)
	return nil
}

// ShortURL joins the public base (or http://127.0.0.1:port) with path.
func ShortURL(base string, port int, path string) string {
	base = strings.TrimRight(util.FirstNonEmpty(strings.TrimSpace(base), "http://127.0.0.1:"+strconv.Itoa(port)), "/")
	return base + "/" + strings.TrimPrefix(path, "/")
}

// WriteQR renders content as a QR PNG at path.
func WriteQR(path, content string) error {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, QRSize, QRSize)
	if err != nil {
		return fmt.Errorf("scale qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}

// =============================================================================
// URL MASKER
// =============================================================================

// MaskedLink is the url-mask finding.
type MaskedLink struct {
	Method    string `json:"method"`
	MaskedURL string `json:"masked_url"`
	TargetURL string `json:"target_url"`
	LocalURL  string `json:"local_url,omitempty"`
	Code      string `json:"code,omitempty"`
}

func (MaskedLink) Kind() string { return "masked_link" }

type urlMaskTool struct {
	*tools.Base
	deps Deps
}

func newURLMask(deps Deps) *urlMaskTool {
	return &urlMaskTool{deps: deps, Base: tools.NewBase(tools.Metadata{
		Name:            "URL Masker",
		Version:         "1.1",
		Author:          Author,
		Description:     "Disguise a URL behind a look-alike domain for phishing-awareness exercises",
		Usage:           "run url-mask --url <url> --fake-domain <domain> [--method at-sign|redirect]",
		Example:         "run url-mask --url https://example.com/login --fake-domain accounts.example.org",
		Category:        tools.CategoryPhishing,
		Tags:            []string{"phishing", "awareness", "url"},
		RiskLevel:       tools.RiskMedium,
		LegalDisclaimer: Disclaimer,
		Parameters: map[string]string{
			"url":         "Real destination",
			"fake_domain": "Domain shown to the reader",
			"method":      "at-sign (userinfo trick) or redirect (local redirect route)",
		},
		FormSchema: []tools.Field{
			{Name: "url", Label: "URL", Type: tools.FieldText, Required: true},
			{Name: "fake_domain", Label: "Fake domain", Type: tools.FieldText, Required: true, Placeholder: "accounts.example.org"},
			{Name: "method", Label: "Method", Type: tools.FieldSelect, Default: "at-sign", Options: []string{"at-sign", "redirect"}},
			{Name: "port", Label: "Port", Type: tools.FieldNumber, Default: deps.RedirectPort, Group: "advanced"},
		},
	})}
}

func (t *urlMaskTool) Validate(p tools.Params) error {
	return tools.Collect(
		tools.ValidateURL("url", p.String("url")),
		tools.ValidateDomain("fake_domain", p.String("fake_domain")),
	)
}

func (t *urlMaskTool) Run(ctx context.Context, p tools.Params) error {
	target := strings.TrimSpace(p.String("url"))
	fake := strings.TrimSpace(p.String("fake_domain"))
	method := strings.ToLower(util.FirstNonEmpty(p.String("method"), "at-sign"))

	link := MaskedLink{Method: method, TargetURL: target}
	switch method {
	case "redirect":
		svc := t.deps.Masker
		if svc == nil {
			return tools.NewDependency("URL masker service is not running", "start the web frontend or run with --serve")
		}
		code, err := svc.NewCode()
		if err != nil {
			return tools.Runtime("generate code", err)
		}
		route, err := svc.AddRoute(code, target, redirect.WithTracking(true))
		if err != nil {
			return tools.Runtime("register route", err)
		}
		link.Code = code
		link.MaskedURL = "http://" + fake + "/" + route.Path
		link.LocalURL = ShortURL("", p.Int("port", t.deps.RedirectPort), route.Path)
		t.AddWarning("The fake domain must resolve to this host for the redirect to work")
	default:
		masked, err := MaskAtSign(target, fake)
		if err != nil {
			return tools.NewValidation("url: %v", err)
		}
		link.MaskedURL = masked
		t.AddWarning("Most browsers warn about credentials in URLs; expect the at-sign trick to be flagged")
	}

	zerolog.Ctx(ctx).Info().Str("method", method).Msg("masked link created")
	t.AddResult(link)
	return nil
}

// MaskAtSign places fake in the userinfo part of target so the real host
// follows the '@'.
func MaskAtSign(target, fake string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q has no host", target)
	}
	u.User = url.User(fake)
	return u.String(), nil
}
