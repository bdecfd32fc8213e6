// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/util"
)

// TargetKind is the classification of a free-form target string.
type TargetKind string

const (
	TargetURL     TargetKind = "url"
	TargetEmail   TargetKind = "email"
	TargetIP      TargetKind = "ip"
	TargetDomain  TargetKind = "domain"
	TargetUnknown TargetKind = "unknown"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s.]+$`)

// Classify applies the ordered target rules: url, email, ip, domain.
func Classify(target string) TargetKind {
	t := strings.TrimSpace(target)
	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		return TargetURL
	case emailPattern.MatchString(t):
		return TargetEmail
	case IsIPv4(t):
		return TargetIP
	case strings.Contains(t, ".") && !strings.HasSuffix(t, "."):
		return TargetDomain
	default:
		return TargetUnknown
	}
}

// Resolver is the DNS lookup used for best-effort IP enrichment.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// resolveTimeout bounds the enrichment lookup.
const resolveTimeout = 3 * time.Second

// TargetInfo is a classified target with whatever could be derived from it.
type TargetInfo struct {
	Kind   TargetKind `json:"kind"`
	Raw    string     `json:"raw"`
	URL    string     `json:"url,omitempty"`
	Domain string     `json:"domain,omitempty"`
	Path   string     `json:"path,omitempty"`
	IP     string     `json:"ip,omitempty"`
	Email  string     `json:"email,omitempty"`
}

// Analyze classifies target and enriches it. A nil resolver skips the DNS
// lookup; lookup failures leave IP empty.
func Analyze(ctx context.Context, target string, resolver Resolver) TargetInfo {
	raw := strings.TrimSpace(target)
	info := TargetInfo{Kind: Classify(raw), Raw: raw}

	switch info.Kind {
	case TargetURL:
		info.URL = raw
		if u, err := url.Parse(raw); err == nil {
			info.Domain = u.Hostname()
			info.Path = u.Path
		}
		if IsIPv4(info.Domain) {
			info.IP = info.Domain
		}
	case TargetEmail:
		info.Email = raw
		_, info.Domain, _ = strings.Cut(raw, "@")
	case TargetIP:
		info.IP = raw
	case TargetDomain:
		host, path, _ := strings.Cut(raw, "/")
		info.Domain = host
		if path != "" {
			info.Path = "/" + path
		}
	}

	if info.IP == "" && info.Domain != "" && resolver != nil {
		lctx, cancel := context.WithTimeout(ctx, resolveTimeout)
		defer cancel()
		if addrs, err := resolver.LookupHost(lctx, info.Domain); err == nil {
			for _, a := range addrs {
				if IsIPv4(a) {
					info.IP = a
					break
				}
			}
		}
	}
	return info
}

// DefaultResolver uses the system resolver.
var DefaultResolver Resolver = net.DefaultResolver

// =============================================================================
// PER-TOOL SEEDS
// =============================================================================

type seedFunc func(info TargetInfo) Params

// webURL returns the target as a URL, adding http:// to bare hosts.
func webURL(info TargetInfo) string {
	switch {
	case info.URL != "":
		return info.URL
	case info.Domain != "":
		return "http://" + info.Domain + info.Path
	case info.IP != "":
		return "http://" + info.IP
	}
	return ""
}

func host(info TargetInfo) string {
	if info.Domain != "" {
		return info.Domain
	}
	return info.IP
}

var seeds = map[string]seedFunc{
	"port-scan": func(info TargetInfo) Params {
		return Params{"host": host(info), "port": "1-1000"}
	},
	"dns": func(info TargetInfo) Params {
		return Params{"domain": info.Domain}
	},
	"ip-geo": func(info TargetInfo) Params {
		return Params{"ip": info.IP}
	},
	"http-headers": func(info TargetInfo) Params { return Params{"url": webURL(info)} },
	"web-extract":  func(info TargetInfo) Params { return Params{"url": webURL(info)} },
	"url-shorten":  func(info TargetInfo) Params { return Params{"url": webURL(info)} },
	"url-mask":     func(info TargetInfo) Params { return Params{"url": webURL(info)} },
	"ddos-sim": func(info TargetInfo) Params {
		return Params{"target": util.FirstNonEmpty(info.URL, host(info))}
	},
	"mac-lookup": func(info TargetInfo) Params { return Params{"mac": info.Raw} },
	"jwt-decode": func(info TargetInfo) Params { return Params{"token": info.Raw} },
	"hash-gen":   func(info TargetInfo) Params { return Params{"text": info.Raw} },
	"dork-builder": func(info TargetInfo) Params {
		return Params{"query": "site:" + util.FirstNonEmpty(info.Domain, info.Raw)}
	},
}

// Autofill proposes parameters for toolID from an analyzed target. Values
// already present in params always win. Tools without a seed table get
// params back unchanged.
func Autofill(toolID string, info TargetInfo, params Params) Params {
	out := params.Clone()
	seed, ok := seeds[toolID]
	if !ok || info.Raw == "" {
		return out
	}
	for k, v := range seed(info) {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		if !out.Has(k) {
			out[k] = v
		}
	}
	return out
}
