// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// HTTP HEADER AUDIT
// =============================================================================

// HeaderReport is the http-headers finding.
type HeaderReport struct {
	URL             string            `json:"url"`
	FinalURL        string            `json:"final_url"`
	StatusCode      int               `json:"status_code"`
	Server          string            `json:"server,omitempty"`
	Headers         map[string]string `json:"headers"`
	MissingSecurity []string          `json:"missing_security_headers"`
}

func (HeaderReport) Kind() string { return "http_headers" }

// SecurityHeaders are the response headers a hardened site is expected to send.
var SecurityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Referrer-Policy",
	"Permissions-Policy",
}

type httpHeadersTool struct {
	*tools.Base
	deps Deps
}

func newHTTPHeaders(deps Deps) *httpHeadersTool {
	return &httpHeadersTool{deps: deps, Base: tools.NewBase(tools.Metadata{
		Name:        "HTTP Header Analyzer",
		Version:     "1.1",
		Author:      Author,
		Description: "Fetch response headers and report missing security headers",
		Usage:       "run http-headers --url <url> [--method GET|HEAD]",
		Example:     "run http-headers --url https://example.com",
		Category:    tools.CategoryWeb,
		Tags:        []string{"http", "headers", "hardening"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"url":    "Target URL (aliases: target, host)",
			"method": "Request method",
		},
		FormSchema: []tools.Field{
			{Name: "url", Label: "URL", Type: tools.FieldText, Required: true, Placeholder: "https://example.com"},
			{Name: "method", Label: "Method", Type: tools.FieldSelect, Default: "GET", Options: []string{"GET", "HEAD"}},
			{Name: "verify_ssl", Label: "Verify TLS", Type: tools.FieldBoolean, Default: true, Group: "advanced"},
		},
	})}
}

func (t *httpHeadersTool) Validate(p tools.Params) error {
	return tools.ValidateURL("url", p.String("url"))
}

func (t *httpHeadersTool) Run(ctx context.Context, p tools.Params) error {
	target := strings.TrimSpace(p.String("url"))
	method := strings.ToUpper(util.FirstNonEmpty(p.String("method"), http.MethodGet))

	client, err := httpClient(t.deps, t.Base)
	if err != nil {
		return err
	}
	opCtx, cancel := t.OpContext(ctx)
	defer cancel()
	resp, err := request(opCtx, client, t.Base, method, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	report := HeaderReport{
		URL:             target,
		FinalURL:        resp.Request.URL.String(),
		StatusCode:      resp.StatusCode,
		Server:          resp.Header.Get("Server"),
		Headers:         make(map[string]string, len(resp.Header)),
		MissingSecurity: MissingSecurityHeaders(resp.Header),
	}
	for k, v := range resp.Header {
		report.Headers[k] = strings.Join(v, ", ")
	}
	for _, h := range report.MissingSecurity {
		t.AddWarning("Missing security header: " + h)
	}
	if report.Server != "" {
		t.AddWarning("Server banner disclosed: " + report.Server)
	}

	zerolog.Ctx(ctx).Info().Int("status", resp.StatusCode).Int("missing", len(report.MissingSecurity)).Msg("headers analyzed")
	t.AddResult(report)
	return nil
}

// MissingSecurityHeaders lists the SecurityHeaders absent from h.
func MissingSecurityHeaders(h http.Header) []string {
	missing := []string{}
	for _, name := range SecurityHeaders {
		if h.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// =============================================================================
// WEB CONTENT EXTRACTION
// =============================================================================

// Article is the web-extract finding.
type Article struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Byline   string   `json:"byline,omitempty"`
	SiteName string   `json:"site_name,omitempty"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Length   int      `json:"length"`
	Text     string   `json:"text"`
	Links    []string `json:"links,omitempty"`
}

func (Article) Kind() string { return "article" }

type webExtractTool struct {
	*tools.Base
	deps Deps
}

func newWebExtract(deps Deps) *webExtractTool {
	return &webExtractTool{deps: deps, Base: tools.NewBase(tools.Metadata{
		Name:        "Web Content Extractor",
		Version:     "1.0",
		Author:      Author,
		Description: "Download a page and extract its readable article text and links",
		Usage:       "run web-extract --url <url> [--max_chars 5000]",
		Example:     "run web-extract --url https://example.com/blog/post",
		Category:    tools.CategoryWeb,
		Tags:        []string{"scrape", "osint", "content"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"url":       "Page URL",
			"max_chars": "Truncate extracted text to this many characters",
		},
		FormSchema: []tools.Field{
			{Name: "url", Label: "URL", Type: tools.FieldText, Required: true},
			{Name: "max_chars", Label: "Max characters", Type: tools.FieldNumber, Default: 5000, Min: tools.Bound(100), Max: tools.Bound(200000)},
		},
	})}
}

func (t *webExtractTool) Validate(p tools.Params) error {
	return tools.ValidateURL("url", p.String("url"))
}

func (t *webExtractTool) Run(ctx context.Context, p tools.Params) error {
	target := strings.TrimSpace(p.String("url"))
	base, err := url.Parse(target)
	if err != nil {
		return tools.NewValidation("url: %v", err)
	}

	client, err := httpClient(t.deps, t.Base)
	if err != nil {
		return err
	}
	opCtx, cancel := t.OpContext(ctx)
	defer cancel()
	resp, err := request(opCtx, client, t.Base, http.MethodGet, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return tools.Runtime(fmt.Sprintf("%s returned HTTP %d", target, resp.StatusCode), nil)
	}
	body, err := readBody(resp.Body)
	if err != nil {
		return err
	}

	art, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil {
		return tools.Runtime("readability extract", err)
	}
	text := strings.TrimSpace(art.TextContent)
	if text == "" {
		t.AddWarning("no readable content found")
	}

	t.AddResult(Article{
		URL:      target,
		Title:    art.Title,
		Byline:   art.Byline,
		SiteName: art.SiteName,
		Excerpt:  art.Excerpt,
		Length:   art.Length,
		Text:     util.Truncate(text, p.Int("max_chars", 5000)),
		Links:    extractLinks(body, base),
	})
	return nil
}

// extractLinks collects absolute href targets in first-seen order.
func extractLinks(body []byte, base *url.URL) []string {
	seen := map[string]bool{}
	var links []string
	rest := string(body)
	for {
		i := strings.Index(strings.ToLower(rest), "href=")
		if i < 0 || i+6 > len(rest) {
			break
		}
		rest = rest[i+5:]
		quote := rest[0]
		if quote != '"' && quote != '\'' {
			continue
		}
		end := strings.IndexByte(rest[1:], quote)
		if end < 0 {
			break
		}
		ref := strings.TrimSpace(rest[1 : end+1])
		rest = rest[end+2:]
		u, err := base.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		u.Fragment = ""
		if s := u.String(); !seen[s] {
			seen[s] = true
			links = append(links, s)
		}
	}
	return links
}

// =============================================================================
// SEARCH DORK BUILDER
// =============================================================================

// Dork is one generated search query.
type Dork struct {
	Engine   string `json:"engine"`
	Template string `json:"template"`
	Query    string `json:"query"`
	URL      string `json:"url"`
}

func (Dork) Kind() string { return "dork" }

var searchEngines = map[string]string{
	"google":     "https://www.google.com/search?q=",
	"bing":       "https://www.bing.com/search?q=",
	"duckduckgo": "https://duckduckgo.com/html/?q=",
}

// dorkTemplates expand the query. %s is replaced by the user query.
var dorkTemplates = map[string][]string{
	"basic": {"%s"},
	"files": {
		"%s filetype:pdf",
		"%s filetype:xls OR filetype:xlsx",
		"%s filetype:doc OR filetype:docx",
		"%s ext:sql OR ext:bak OR ext:log",
	},
	"login": {
		"%s inurl:login",
		"%s inurl:admin",
		"%s intitle:\"index of\"",
	},
	"exposure": {
		"%s ext:env OR ext:ini OR ext:conf",
		"%s \"password\" filetype:txt",
		"%s inurl:wp-config",
	},
}

type dorkBuilderTool struct {
	*tools.Base
}

func newDorkBuilder() *dorkBuilderTool {
	templates := make([]string, 0, len(dorkTemplates)+1)
	for name := range dorkTemplates {
		templates = append(templates, name)
	}
	sort.Strings(templates)
	templates = append(templates, "all")

	engines := make([]string, 0, len(searchEngines))
	for name := range searchEngines {
		engines = append(engines, name)
	}
	sort.Strings(engines)

	return &dorkBuilderTool{Base: tools.NewBase(tools.Metadata{
		Name:        "Search Dork Builder",
		Version:     "1.0",
		Author:      Author,
		Description: "Build search-engine dork queries for passive reconnaissance",
		Usage:       "run dork-builder --query site:example.com [--engine google] [--template files]",
		Example:     "run dork-builder --query site:example.com --template login",
		Category:    tools.CategoryOSINT,
		Tags:        []string{"osint", "search", "passive"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"query":    "Base query (aliases: search, keyword)",
			"engine":   "Search engine (alias: search-engine)",
			"template": "Template set",
		},
		FormSchema: []tools.Field{
			{Name: "query", Label: "Query", Type: tools.FieldText, Required: true},
			{Name: "engine", Label: "Engine", Type: tools.FieldSelect, Default: "google", Options: engines},
			{Name: "template", Label: "Template", Type: tools.FieldSelect, Default: "basic", Options: templates},
		},
	})}
}

func (t *dorkBuilderTool) Run(_ context.Context, p tools.Params) error {
	for _, d := range BuildDorks(p.String("query"), p.String("engine"), p.String("template")) {
		t.AddResult(d)
	}
	return nil
}

// BuildDorks expands query through the named template set ("all" for every
// set) into search URLs for engine.
func BuildDorks(query, engine, template string) []Dork {
	query = strings.TrimSpace(query)
	engine = strings.ToLower(util.FirstNonEmpty(engine, "google"))
	prefix, ok := searchEngines[engine]
	if !ok {
		engine, prefix = "google", searchEngines["google"]
	}

	sets := []string{strings.ToLower(util.FirstNonEmpty(template, "basic"))}
	if sets[0] == "all" {
		sets = sets[:0]
		for name := range dorkTemplates {
			sets = append(sets, name)
		}
		sort.Strings(sets)
	}

	var out []Dork
	for _, set := range sets {
		for _, tmpl := range dorkTemplates[set] {
			q := fmt.Sprintf(tmpl, query)
			out = append(out, Dork{Engine: engine, Template: set, Query: q, URL: prefix + url.QueryEscape(q)})
		}
	}
	return out
}
