// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

// =============================================================================
// ALIAS TABLES
// =============================================================================

// alias maps a user-facing parameter name onto the tool's canonical name.
type alias struct {
	from string
	to   string
}

// Alias groups. Order matters when several aliases target the same name:
// the first one present wins.
var (
	geoAliases    = []alias{{"host", "ip"}}
	portAliases   = []alias{{"target", "host"}, {"ip", "host"}}
	dnsAliases    = []alias{{"host", "domain"}, {"url", "domain"}}
	webAliases    = []alias{{"target", "url"}, {"host", "url"}}
	ddosAliases   = []alias{{"host", "target"}, {"url", "target"}}
	searchAliases = []alias{{"search", "query"}, {"keyword", "query"}, {"search-engine", "engine"}}
)

// aliasTables assigns tools to alias groups by id.
var aliasTables = map[string][]alias{
	"ip-geo":       geoAliases,
	"port-scan":    portAliases,
	"dns":          dnsAliases,
	"web-extract":  webAliases,
	"http-headers": webAliases,
	"url-mask":     webAliases,
	"url-shorten":  webAliases,
	"ddos-sim":     ddosAliases,
	"dork-builder": searchAliases,
}

// NormalizeAliases rewrites user-facing names to canonical ones. An explicit
// canonical value always wins over an alias. Unknown names pass through
// untouched. The function is idempotent and does not modify its input.
func NormalizeAliases(toolID string, params Params) Params {
	out := params.Clone()
	for _, a := range aliasTables[toolID] {
		v, ok := out[a.from]
		if !ok {
			continue
		}
		if !out.Has(a.to) && v != nil {
			out[a.to] = v
		}
		delete(out, a.from)
	}
	return out
}
