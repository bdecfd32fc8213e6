// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// DNS LOOKUP
// =============================================================================

// DNSResult is the dns tool finding. Every record list is present on the
// wire, empty when the lookup type did not ask for it.
type DNSResult struct {
	Domain     string   `json:"domain"`
	LookupType string   `json:"lookup_type"`
	ARecords   []string `json:"a_records"`
	MXRecords  []string `json:"mx_records"`
	TXTRecords []string `json:"txt_records"`
	NSRecords  []string `json:"ns_records"`
	CNAME      string   `json:"cname,omitempty"`
}

func (DNSResult) Kind() string { return "dns" }

type dnsParams struct {
	Domain     string `json:"domain"`
	LookupType string `json:"lookup_type"`
}

type dnsTool struct {
	*tools.Base
	resolver DNSResolver
}

func newDNS(deps Deps) *dnsTool {
	return &dnsTool{
		resolver: deps.Resolver,
		Base: tools.NewBase(tools.Metadata{
			Name:        "DNS Lookup",
			Version:     "1.2",
			Author:      Author,
			Description: "Resolve A, MX, TXT, NS and CNAME records for a domain",
			Usage:       "run dns --domain <domain> [--lookup_type all|A|MX|TXT|NS|CNAME]",
			Example:     "run dns --domain example.com",
			Category:    tools.CategoryNetwork,
			Tags:        []string{"dns", "recon", "passive"},
			RiskLevel:   tools.RiskLow,
			Parameters: map[string]string{
				"domain":      "Domain name to resolve",
				"lookup_type": "Record type to query (default all)",
			},
			FormSchema: []tools.Field{
				{Name: "domain", Label: "Domain", Type: tools.FieldText, Required: true, Placeholder: "example.com"},
				{Name: "lookup_type", Label: "Lookup type", Type: tools.FieldSelect, Default: "all",
					Options: []string{"all", "A", "MX", "TXT", "NS", "CNAME"}},
			},
		}),
	}
}

func (t *dnsTool) Validate(p tools.Params) error {
	return tools.ValidateDomain("domain", p.String("domain"))
}

func (t *dnsTool) Run(ctx context.Context, p tools.Params) error {
	var in dnsParams
	if err := p.Decode(&in); err != nil {
		return err
	}
	domain := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(in.Domain)), ".")
	kind := strings.ToUpper(in.LookupType)
	if kind == "" || kind == "ALL" {
		kind = "ALL"
	}
	want := func(k string) bool { return kind == "ALL" || kind == k }

	res := DNSResult{
		Domain:     domain,
		LookupType: strings.ToLower(kind),
		ARecords:   []string{},
		MXRecords:  []string{},
		TXTRecords: []string{},
		NSRecords:  []string{},
	}
	log := zerolog.Ctx(ctx)

	var attempted, failed int
	lookup := func(name string, fn func(ctx context.Context) error) {
		if !t.IsRunning() {
			return
		}
		opCtx, cancel := t.OpContext(ctx)
		defer cancel()
		attempted++
		if err := fn(opCtx); err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				log.Debug().Str("type", name).Msg("no records")
				return
			}
			failed++
			t.AddWarning(fmt.Sprintf("%s lookup failed: %v", name, err))
		}
	}

	if want("A") {
		lookup("A", func(ctx context.Context) error {
			addrs, err := t.resolver.LookupHost(ctx, domain)
			res.ARecords = append(res.ARecords, addrs...)
			return err
		})
	}
	if want("MX") {
		lookup("MX", func(ctx context.Context) error {
			mxs, err := t.resolver.LookupMX(ctx, domain)
			for _, mx := range mxs {
				res.MXRecords = append(res.MXRecords, fmt.Sprintf("%d %s", mx.Pref, strings.TrimSuffix(mx.Host, ".")))
			}
			return err
		})
	}
	if want("TXT") {
		lookup("TXT", func(ctx context.Context) error {
			txts, err := t.resolver.LookupTXT(ctx, domain)
			res.TXTRecords = append(res.TXTRecords, txts...)
			return err
		})
	}
	if want("NS") {
		lookup("NS", func(ctx context.Context) error {
			nss, err := t.resolver.LookupNS(ctx, domain)
			for _, ns := range nss {
				res.NSRecords = append(res.NSRecords, strings.TrimSuffix(ns.Host, "."))
			}
			return err
		})
	}
	if want("CNAME") {
		lookup("CNAME", func(ctx context.Context) error {
			cname, err := t.resolver.LookupCNAME(ctx, domain)
			if c := strings.TrimSuffix(cname, "."); c != domain {
				res.CNAME = c
			}
			return err
		})
	}

	if attempted > 0 && failed == attempted {
		return tools.Runtime(fmt.Sprintf("all DNS lookups for %s failed", domain), nil)
	}
	log.Info().Int("a", len(res.ARecords)).Int("mx", len(res.MXRecords)).
		Int("ns", len(res.NSRecords)).Msgf("resolved %s", domain)
	t.AddResult(res)
	return nil
}

// =============================================================================
// IP CLASSIFICATION
// =============================================================================

// IPInfo is the ip-geo finding.
type IPInfo struct {
	IP       string   `json:"ip"`
	Version  int      `json:"version"`
	Scope    string   `json:"scope"`
	Network  string   `json:"network,omitempty"`
	Owner    string   `json:"owner,omitempty"`
	Country  string   `json:"country,omitempty"`
	Hostname []string `json:"hostnames,omitempty"`
}

func (IPInfo) Kind() string { return "ip_info" }

// knownNetwork is an entry of the offline ownership table.
type knownNetwork struct {
	prefix  netip.Prefix
	owner   string
	country string
}

var knownNetworks = []knownNetwork{
	{netip.MustParsePrefix("8.8.8.0/24"), "Google Public DNS", "US"},
	{netip.MustParsePrefix("8.8.4.0/24"), "Google Public DNS", "US"},
	{netip.MustParsePrefix("1.1.1.0/24"), "Cloudflare DNS", "US"},
	{netip.MustParsePrefix("1.0.0.0/24"), "Cloudflare DNS", "US"},
	{netip.MustParsePrefix("9.9.9.0/24"), "Quad9", "CH"},
	{netip.MustParsePrefix("208.67.222.0/24"), "OpenDNS (Cisco)", "US"},
	{netip.MustParsePrefix("94.140.14.0/24"), "AdGuard DNS", "CY"},
	{netip.MustParsePrefix("2001:4860::/32"), "Google", "US"},
	{netip.MustParsePrefix("2606:4700::/32"), "Cloudflare", "US"},
}

var specialScopes = []struct {
	prefix netip.Prefix
	scope  string
}{
	{netip.MustParsePrefix("100.64.0.0/10"), "shared (CGNAT)"},
	{netip.MustParsePrefix("192.0.2.0/24"), "documentation"},
	{netip.MustParsePrefix("198.51.100.0/24"), "documentation"},
	{netip.MustParsePrefix("203.0.113.0/24"), "documentation"},
	{netip.MustParsePrefix("2001:db8::/32"), "documentation"},
	{netip.MustParsePrefix("198.18.0.0/15"), "benchmarking"},
	{netip.MustParsePrefix("240.0.0.0/4"), "reserved"},
}

type ipGeoTool struct {
	*tools.Base
	resolver DNSResolver
}

func newIPGeo(deps Deps) *ipGeoTool {
	return &ipGeoTool{
		resolver: deps.Resolver,
		Base: tools.NewBase(tools.Metadata{
			Name:        "IP Geolocation",
			Version:     "1.1",
			Author:      Author,
			Description: "Classify an IP address offline: scope, well-known owner and optional reverse DNS",
			Usage:       "run ip-geo --ip <address> [--reverse]",
			Example:     "run ip-geo --ip 8.8.8.8",
			Category:    tools.CategoryOSINT,
			Tags:        []string{"ip", "osint", "passive"},
			RiskLevel:   tools.RiskLow,
			Parameters: map[string]string{
				"ip":      "IPv4 or IPv6 address (alias: host)",
				"reverse": "Also resolve PTR records",
			},
			FormSchema: []tools.Field{
				{Name: "ip", Label: "IP address", Type: tools.FieldText, Required: true, Placeholder: "8.8.8.8"},
				{Name: "reverse", Label: "Reverse DNS", Type: tools.FieldBoolean, Default: false},
			},
		}),
	}
}

func (t *ipGeoTool) Validate(p tools.Params) error {
	return tools.ValidateIP("ip", p.String("ip"))
}

func (t *ipGeoTool) Run(ctx context.Context, p tools.Params) error {
	raw := strings.TrimSpace(p.String("ip"))
	info, err := ClassifyIP(raw)
	if err != nil {
		return tools.NewValidation("ip: %v", err)
	}

	if p.Bool("reverse", false) {
		opCtx, cancel := t.OpContext(ctx)
		names, err := t.resolver.LookupAddr(opCtx, raw)
		cancel()
		if err != nil {
			t.AddWarning("reverse lookup failed: " + err.Error())
		}
		for _, n := range names {
			info.Hostname = append(info.Hostname, strings.TrimSuffix(n, "."))
		}
	}
	t.AddResult(info)
	return nil
}

// ClassifyIP describes an address without network access.
func ClassifyIP(raw string) (IPInfo, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return IPInfo{}, err
	}
	addr = addr.Unmap()
	info := IPInfo{IP: raw, Version: 4, Scope: "public"}
	if addr.Is6() {
		info.Version = 6
	}

	switch {
	case addr.IsLoopback():
		info.Scope = "loopback"
	case addr.IsPrivate():
		info.Scope = "private"
	case addr.IsLinkLocalUnicast():
		info.Scope = "link-local"
	case addr.IsMulticast():
		info.Scope = "multicast"
	case addr.IsUnspecified():
		info.Scope = "unspecified"
	default:
		for _, s := range specialScopes {
			if s.prefix.Contains(addr) {
				info.Scope = s.scope
				info.Network = s.prefix.String()
				break
			}
		}
	}

	for _, n := range knownNetworks {
		if n.prefix.Contains(addr) {
			info.Network = n.prefix.String()
			info.Owner = n.owner
			info.Country = n.country
			break
		}
	}
	return info, nil
}

// =============================================================================
// PORT SCAN
// =============================================================================

// PortFinding is one open port.
type PortFinding struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	State   string `json:"state"`
	Service string `json:"service"`
}

func (PortFinding) Kind() string { return "port" }

var wellKnownPorts = map[int]string{
	21: "ftp", 22: "ssh", 23: "telnet", 25: "smtp", 53: "dns", 80: "http",
	110: "pop3", 111: "rpcbind", 135: "msrpc", 139: "netbios-ssn", 143: "imap",
	443: "https", 445: "microsoft-ds", 465: "smtps", 587: "submission",
	993: "imaps", 995: "pop3s", 1433: "mssql", 1521: "oracle", 2049: "nfs",
	3306: "mysql", 3389: "rdp", 5432: "postgresql", 5900: "vnc",
	6379: "redis", 8080: "http-proxy", 8443: "https-alt", 9200: "elasticsearch",
	27017: "mongodb",
}

// ServiceName returns the conventional service for port, or "unknown".
func ServiceName(port int) string {
	if s, ok := wellKnownPorts[port]; ok {
		return s
	}
	return "unknown"
}

type portScanParams struct {
	Host           string  `json:"host"`
	Port           string  `json:"port"`
	ConnectTimeout float64 `json:"connect_timeout"`
}

type portScanTool struct {
	*tools.Base
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func newPortScan(deps Deps) *portScanTool {
	return &portScanTool{
		dial: deps.Dial,
		Base: tools.NewBase(tools.Metadata{
			Name:            "Port Scanner",
			Version:         "2.0",
			Author:          Author,
			Description:     "TCP connect scan of a host over a port range",
			Usage:           "run port-scan --host <host> [--port 1-1000] [--threads N]",
			Example:         "run port-scan --host scanme.nmap.org --port 22,80,443",
			Category:        tools.CategoryNetwork,
			Tags:            []string{"scan", "tcp", "active"},
			RiskLevel:       tools.RiskMedium,
			LegalDisclaimer: Disclaimer,
			Parameters: map[string]string{
				"host":            "Target host or IP (aliases: target, ip)",
				"port":            "Ports: 80, 1-1000 or 22,80,443-445",
				"threads":         "Concurrent connections",
				"connect_timeout": "Per-port connect timeout in seconds",
			},
			FormSchema: []tools.Field{
				{Name: "host", Label: "Host", Type: tools.FieldText, Required: true},
				{Name: "port", Label: "Ports", Type: tools.FieldText, Default: "1-1000"},
				{Name: "threads", Label: "Threads", Type: tools.FieldNumber, Default: 100, Min: tools.Bound(1), Max: tools.Bound(1000)},
				{Name: "connect_timeout", Label: "Connect timeout (s)", Type: tools.FieldFloat, Default: 1.0,
					Min: tools.Bound(0.05), Max: tools.Bound(30), Group: "advanced"},
			},
		}),
	}
}

func (t *portScanTool) Validate(p tools.Params) error {
	return tools.ValidatePortRange("port", p.String("port"))
}

func (t *portScanTool) Run(ctx context.Context, p tools.Params) error {
	var in portScanParams
	if err := p.Decode(&in); err != nil {
		return err
	}
	ports, err := tools.ParsePortSpec(in.Port)
	if err != nil {
		return tools.NewValidation("port: %v", err)
	}
	timeout := time.Duration(in.ConnectTimeout * float64(time.Second))
	if timeout <= 0 {
		timeout = time.Second
	}
	workers := t.ScanOptions.Threads
	if workers > len(ports) {
		workers = len(ports)
	}

	log := zerolog.Ctx(ctx)
	log.Info().Str("host", in.Host).Int("ports", len(ports)).Int("workers", workers).Msg("scan started")

	jobs := make(chan int)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		open  []int
		fails int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range jobs {
				if !t.IsRunning() {
					continue
				}
				state := t.probe(ctx, in.Host, port, timeout)
				mu.Lock()
				switch state {
				case "open":
					open = append(open, port)
				case "error":
					fails++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, port := range ports {
		if !t.IsRunning() {
			break
		}
		select {
		case jobs <- port:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Ints(open)
	for _, port := range open {
		t.AddResult(PortFinding{Host: in.Host, Port: port, State: "open", Service: ServiceName(port)})
	}
	if fails > 0 {
		t.AddWarning(fmt.Sprintf("%d ports could not be probed (resolution or network errors)", fails))
	}
	if fails == len(ports) {
		return tools.Runtime("no port could be probed on "+in.Host, nil)
	}
	log.Info().Int("open", len(open)).Msg("scan finished")
	return nil
}

// probe reports "open", "closed" or "error" for one port.
func (t *portScanTool) probe(ctx context.Context, host string, port int, timeout time.Duration) string {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := t.dial(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err == nil {
		conn.Close()
		return "open"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "error"
	}
	return "closed"
}

// =============================================================================
// MAC VENDOR LOOKUP
// =============================================================================

// MACInfo is the mac-lookup finding.
type MACInfo struct {
	MAC          string `json:"mac"`
	OUI          string `json:"oui"`
	Vendor       string `json:"vendor"`
	Multicast    bool   `json:"multicast"`
	LocallyAdmin bool   `json:"locally_administered"`
}

func (MACInfo) Kind() string { return "mac" }

var ouiVendors = map[string]string{
	"00:00:0C": "Cisco Systems",
	"00:05:69": "VMware",
	"00:0C:29": "VMware",
	"00:50:56": "VMware",
	"00:1C:42": "Parallels",
	"08:00:27": "Oracle VirtualBox",
	"52:54:00": "QEMU/KVM",
	"00:15:5D": "Microsoft Hyper-V",
	"00:16:3E": "Xen",
	"B8:27:EB": "Raspberry Pi Foundation",
	"DC:A6:32": "Raspberry Pi Trading",
	"E4:5F:01": "Raspberry Pi Trading",
	"00:1A:11": "Google",
	"3C:5A:B4": "Google",
	"F4:F5:D8": "Google",
	"00:03:93": "Apple",
	"AC:DE:48": "Apple",
	"F0:18:98": "Apple",
	"00:1B:63": "Apple",
	"00:14:22": "Dell",
	"F8:BC:12": "Dell",
	"00:1E:C9": "Dell",
	"3C:D9:2B": "Hewlett Packard",
	"00:25:B3": "Hewlett Packard",
	"00:E0:4C": "Realtek",
	"00:1B:21": "Intel",
	"A4:4C:C8": "Intel",
	"00:18:0A": "Cisco Meraki",
	"00:0B:86": "Aruba Networks",
	"18:E8:29": "Ubiquiti",
	"24:A4:3C": "Ubiquiti",
	"00:1D:0F": "TP-Link",
	"50:C7:BF": "TP-Link",
	"C0:56:27": "Belkin",
	"00:09:5B": "Netgear",
	"00:1F:33": "Netgear",
	"CC:2D:E0": "Routerboard (MikroTik)",
	"00:0D:3A": "Microsoft",
	"28:18:78": "Microsoft",
	"00:12:FB": "Samsung",
	"8C:77:12": "Samsung",
	"00:26:B0": "Apple",
	"34:97:F6": "ASUSTek",
	"00:1A:92": "ASUSTek",
}

type macLookupTool struct {
	*tools.Base
}

func newMACLookup() *macLookupTool {
	return &macLookupTool{Base: tools.NewBase(tools.Metadata{
		Name:        "MAC Vendor Lookup",
		Version:     "1.0",
		Author:      Author,
		Description: "Resolve the vendor of a MAC address from its OUI prefix",
		Usage:       "run mac-lookup --mac <address>",
		Example:     "run mac-lookup --mac 08:00:27:12:34:56",
		Category:    tools.CategoryNetwork,
		Tags:        []string{"mac", "oui", "offline"},
		RiskLevel:   tools.RiskLow,
		Parameters:  map[string]string{"mac": "MAC address in colon, dash, dot or bare hex form"},
		FormSchema: []tools.Field{
			{Name: "mac", Label: "MAC address", Type: tools.FieldText, Required: true, Placeholder: "00:11:22:33:44:55"},
		},
	})}
}

func (t *macLookupTool) Validate(p tools.Params) error {
	return tools.ValidateMAC("mac", p.String("mac"))
}

func (t *macLookupTool) Run(_ context.Context, p tools.Params) error {
	info, err := LookupMAC(p.String("mac"))
	if err != nil {
		return tools.NewValidation("mac: %v", err)
	}
	if info.Vendor == "" {
		info.Vendor = "unknown"
		t.AddWarning("OUI " + info.OUI + " is not in the offline vendor table")
	}
	t.AddResult(info)
	return nil
}

// LookupMAC normalizes mac to upper-case colon form and resolves its vendor.
func LookupMAC(mac string) (MACInfo, error) {
	hex := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(mac))
	if len(hex) != 12 {
		return MACInfo{}, fmt.Errorf("%q is not a 48-bit address", mac)
	}
	first, err := strconv.ParseUint(hex[:2], 16, 8)
	if err != nil {
		return MACInfo{}, fmt.Errorf("%q is not hexadecimal", mac)
	}
	hex = strings.ToUpper(hex)
	pairs := make([]string, 6)
	for i := range pairs {
		pairs[i] = hex[i*2 : i*2+2]
	}
	oui := strings.Join(pairs[:3], ":")
	return MACInfo{
		MAC:          strings.Join(pairs, ":"),
		OUI:          oui,
		Vendor:       ouiVendors[oui],
		Multicast:    first&0x01 != 0,
		LocallyAdmin: first&0x02 != 0,
	}, nil
}
