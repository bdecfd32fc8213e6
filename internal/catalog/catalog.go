// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog holds the built-in tools. Each tool embeds *tools.Base,
// declares its metadata and form schema, decodes its parameters into a
// per-tool struct and reports findings through the Base mutators.
//
// Register wires every tool into a registry:
//
//	reg := tools.NewRegistry(logger)
//	catalog.Register(reg, catalog.Deps{Shortener: svc})
package catalog

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/aleopantest/aleopantest/internal/redirect"
	"github.com/aleopantest/aleopantest/internal/tools"
)

// Author is stamped on every built-in tool.
const Author = "aleopantest"

// Disclaimer is the default legal notice of intrusive tools.
const Disclaimer = "For authorized security testing only. You are responsible for obtaining permission from the owner of every target."

// maxBodySize bounds response bodies read by web tools.
const maxBodySize = 5 * 1024 * 1024

// DNSResolver is the subset of *net.Resolver used by the network tools.
type DNSResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Deps are the shared services handed to tools that need them.
type Deps struct {
	// Shortener backs url-shorten; nil disables route registration.
	Shortener *redirect.Service
	// Masker backs url-mask redirect routes.
	Masker *redirect.Service

	Resolver DNSResolver
	// Dial opens TCP connections for port-scan.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
	// HTTPClient overrides the per-run client of web tools (tests).
	HTTPClient *http.Client

	// OutputDir receives tool artifacts such as QR images.
	OutputDir string
	// RedirectPort is the default port used to build short links.
	RedirectPort int

	// IsRoot reports raw socket privileges for sniffer.
	IsRoot func() bool
}

func (d Deps) withDefaults() Deps {
	if d.Resolver == nil {
		d.Resolver = net.DefaultResolver
	}
	if d.Dial == nil {
		var dialer net.Dialer
		d.Dial = dialer.DialContext
	}
	if d.OutputDir == "" {
		d.OutputDir = "output"
	}
	if d.RedirectPort == 0 {
		d.RedirectPort = redirect.DefaultPort
	}
	if d.IsRoot == nil {
		d.IsRoot = isRoot
	}
	return d
}

func (d Deps) artifactDir(cat tools.Category) string {
	return filepath.Join(d.OutputDir, string(cat))
}

// Register adds every built-in tool to reg in display order.
func Register(reg *tools.Registry, deps Deps) {
	deps = deps.withDefaults()

	reg.Register("dns", func() tools.Tool { return newDNS(deps) })
	reg.Register("ip-geo", func() tools.Tool { return newIPGeo(deps) })
	reg.Register("port-scan", func() tools.Tool { return newPortScan(deps) })
	reg.Register("mac-lookup", func() tools.Tool { return newMACLookup() })
	reg.Register("sniffer", func() tools.Tool { return newSniffer() }, snifferProbe(deps))

	reg.Register("http-headers", func() tools.Tool { return newHTTPHeaders(deps) })
	reg.Register("web-extract", func() tools.Tool { return newWebExtract(deps) })
	reg.Register("dork-builder", func() tools.Tool { return newDorkBuilder() })

	reg.Register("hash-gen", func() tools.Tool { return newHashGen() })
	reg.Register("jwt-decode", func() tools.Tool { return newJWTDecode() })
	reg.Register("totp-gen", func() tools.Tool { return newTOTPGen() })

	reg.Register("url-shorten", func() tools.Tool { return newURLShorten(deps) })
	reg.Register("url-mask", func() tools.Tool { return newURLMask(deps) })

	reg.Register("pdf-meta", func() tools.Tool { return newPDFMeta() })
	reg.Register("exif-meta", func() tools.Tool { return newEXIFMeta() })
	reg.Register("ddos-sim", func() tools.Tool { return newDDoSSim() })
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// httpClient builds a client from the runtime knobs on b.
func httpClient(deps Deps, b *tools.Base) (*http.Client, error) {
	if deps.HTTPClient != nil {
		return deps.HTTPClient, nil
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !b.ScanOptions.VerifySSL,
		},
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	if b.Proxy != "" {
		proxyURL, err := url.Parse(b.Proxy)
		if err != nil {
			return nil, tools.NewValidation("proxy: invalid URL %q", b.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   b.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}, nil
}

// request issues method against rawURL with the instance headers and auth.
// The caller closes the body.
func request(ctx context.Context, client *http.Client, b *tools.Base, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, tools.NewValidation("url: %v", err)
	}
	for k, v := range b.Headers {
		req.Header.Set(k, v)
	}
	if b.Auth != nil {
		req.SetBasicAuth(b.Auth.Username, b.Auth.Password)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, tools.Runtime("request failed", err)
	}
	return resp, nil
}

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return nil, tools.Runtime("read body", err)
	}
	if len(body) > maxBodySize {
		body = body[:maxBodySize]
	}
	return body, nil
}
