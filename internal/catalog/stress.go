// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"math"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/tools"
	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// LOAD TEST PLANNER
// =============================================================================

// Phase is one segment of a load plan.
type Phase struct {
	Name      string  `json:"name"`
	StartSec  float64 `json:"start_seconds"`
	EndSec    float64 `json:"end_seconds"`
	PeakRate  float64 `json:"peak_rate_per_second"`
	Estimated int64   `json:"estimated_requests"`
}

// LoadPlan is the ddos-sim finding. No traffic is generated.
type LoadPlan struct {
	Target         string   `json:"target"`
	AttackType     string   `json:"attack_type"`
	Duration       float64  `json:"duration_seconds"`
	Threads        int      `json:"threads"`
	RatePerThread  float64  `json:"rate_per_thread"`
	TotalRequests  int64    `json:"estimated_requests"`
	TotalBytes     int64    `json:"estimated_bytes"`
	BytesPerSecond float64  `json:"peak_bytes_per_second"`
	Phases         []Phase  `json:"phases"`
	Mitigations    []string `json:"mitigations"`
}

func (LoadPlan) Kind() string { return "load_plan" }

// attackProfiles describe each simulated traffic type.
var attackProfiles = map[string]struct {
	unitBytes   int
	mitigations []string
}{
	"http": {unitBytes: 420, mitigations: []string{
		"Rate limit per client IP at the edge",
		"Cache static responses behind a CDN",
		"Challenge suspicious clients before they reach the origin",
	}},
	"syn": {unitBytes: 60, mitigations: []string{
		"Enable SYN cookies",
		"Lower the SYN-RECEIVED timeout",
		"Filter spoofed sources upstream",
	}},
	"udp": {unitBytes: 28, mitigations: []string{
		"Drop unused UDP services at the firewall",
		"Apply per-source packet rate limits",
	}},
	"slowloris": {unitBytes: 24, mitigations: []string{
		"Bound header read timeouts",
		"Cap concurrent connections per client",
		"Terminate connections at a reverse proxy",
	}},
}

// rampFraction of the duration is spent ramping up and again ramping down.
const rampFraction = 0.1

type ddosSimTool struct {
	*tools.Base
}

func newDDoSSim() *ddosSimTool {
	return &ddosSimTool{Base: tools.NewBase(tools.Metadata{
		Name:        "DDoS Simulator",
		Version:     "2.0",
		Author:      Author,
		Description: "Plan a load test: estimate request volume, bandwidth and phases for a traffic profile without sending traffic",
		Usage:       "run ddos-sim --target <url|host> --type http|syn|udp|slowloris --duration 30 --authorized",
		Example:     "run ddos-sim --target https://staging.example.com --type http --duration 60 --threads 20 --authorized",
		Category:    tools.CategorySecurity,
		Requirements: []string{
			"written authorization from the target owner",
		},
		Tags:            []string{"load", "stress", "availability", "simulation"},
		RiskLevel:       tools.RiskCritical,
		LegalDisclaimer: Disclaimer + " Load testing third-party infrastructure without consent is illegal in most jurisdictions.",
		Parameters: map[string]string{
			"target":      "URL or host (aliases: host, url)",
			"type":        "Traffic profile",
			"duration":    "Seconds (hard limit 3600)",
			"threads":     "Concurrent workers",
			"rate":        "Requests per second per worker",
			"packet_size": "Payload bytes for udp",
			"authorized":  "Confirm written authorization",
		},
		FormSchema: []tools.Field{
			{Name: "target", Label: "Target", Type: tools.FieldText, Required: true},
			{Name: "type", Label: "Type", Type: tools.FieldSelect, Default: "http", Options: []string{"http", "syn", "udp", "slowloris"}},
			{Name: "duration", Label: "Duration (s)", Type: tools.FieldNumber, Default: 10},
			{Name: "threads", Label: "Threads", Type: tools.FieldNumber, Default: 10, Min: tools.Bound(1), Max: tools.Bound(1000)},
			{Name: "rate", Label: "Rate / thread", Type: tools.FieldFloat, Default: 10.0, Min: tools.Bound(0.1), Max: tools.Bound(100000), Group: "advanced"},
			{Name: "packet_size", Label: "Packet size", Type: tools.FieldNumber, Default: 512, Min: tools.Bound(1), Max: tools.Bound(65507), Group: "advanced"},
			{Name: "authorized", Label: "I have written authorization", Type: tools.FieldBoolean, Default: false},
		},
	})}
}

func (t *ddosSimTool) Validate(p tools.Params) error {
	var errs []error
	if !p.Bool("authorized", false) {
		errs = append(errs, &tools.ValidationError{Param: "authorized",
			Message: "confirm written authorization with --authorized before planning a load test"})
	}
	target := strings.TrimSpace(p.String("target"))
	if strings.EqualFold(util.FirstNonEmpty(p.String("type"), "http"), "http") && strings.Contains(target, "://") {
		errs = append(errs, tools.ValidateURL("target", target))
	}
	return tools.Collect(errs...)
}

func (t *ddosSimTool) Run(ctx context.Context, p tools.Params) error {
	plan := PlanLoad(
		p.String("target"),
		p.String("type"),
		p.Float("duration", 10),
		p.Int("threads", 10),
		p.Float("rate", 10),
		p.Int("packet_size", 512),
	)
	t.AddWarning("Simulation only: no traffic was sent to " + plan.Target)
	if plan.TotalRequests > 1_000_000 {
		t.AddWarning("Plan exceeds one million requests; coordinate with the target's operations team")
	}
	zerolog.Ctx(ctx).Info().Str("type", plan.AttackType).Int64("requests", plan.TotalRequests).Msg("load plan built")
	t.AddResult(plan)
	return nil
}

// PlanLoad estimates a ramp-up, sustain and ramp-down schedule. Unknown
// types fall back to http.
func PlanLoad(target, kind string, duration float64, threads int, rate float64, packetSize int) LoadPlan {
	kind = strings.ToLower(util.FirstNonEmpty(kind, "http"))
	profile, ok := attackProfiles[kind]
	if !ok {
		kind, profile = "http", attackProfiles["http"]
	}
	duration = math.Max(duration, 0)
	threads = max(threads, 1)
	rate = math.Max(rate, 0)

	unit := profile.unitBytes
	if kind == "udp" {
		unit += packetSize
	}
	peak := float64(threads) * rate
	if kind == "slowloris" {
		// one keep-alive header per connection every ten seconds
		peak = float64(threads) / 10
	}

	ramp := duration * rampFraction
	phases := []Phase{
		{Name: "ramp-up", StartSec: 0, EndSec: ramp, PeakRate: peak},
		{Name: "sustain", StartSec: ramp, EndSec: duration - ramp, PeakRate: peak},
		{Name: "ramp-down", StartSec: duration - ramp, EndSec: duration, PeakRate: peak},
	}
	var total int64
	for i := range phases {
		span := phases[i].EndSec - phases[i].StartSec
		volume := span * peak
		if phases[i].Name != "sustain" {
			volume /= 2
		}
		phases[i].Estimated = int64(math.Round(volume))
		total += phases[i].Estimated
	}

	return LoadPlan{
		Target:         displayTarget(target),
		AttackType:     kind,
		Duration:       duration,
		Threads:        threads,
		RatePerThread:  rate,
		TotalRequests:  total,
		TotalBytes:     total * int64(unit),
		BytesPerSecond: peak * float64(unit),
		Phases:         phases,
		Mitigations:    append([]string(nil), profile.mitigations...),
	}
}

func displayTarget(target string) string {
	target = strings.TrimSpace(target)
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return u.Scheme + "://" + u.Host + u.EscapedPath()
	}
	return target
}
