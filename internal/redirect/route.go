// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package redirect serves tracked short links and masked URLs.
//
// A Service owns a route table mapping a path (no leading slash) to a
// target URL. GET /<path> answers 302 while the session is active, 403 once
// it has expired and 404 for unknown paths. The URL shortener persists its
// table to JSON after every change; the URL masker keeps it in memory.
package redirect

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// Click is one tracked visit as persisted.
type Click struct {
	Timestamp string `json:"timestamp"`
	Referrer  string `json:"referrer,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Route is one entry of the route table.
type Route struct {
	Path            string  `json:"path"`
	TargetURL       string  `json:"target_url"`
	CreatedAt       string  `json:"created_at"`
	ClickCount      int     `json:"click_count"`
	Clicks          []Click `json:"clicks"`
	TrackingEnabled bool    `json:"tracking_enabled"`
}

func (r Route) clone() Route {
	r.Clicks = append([]Click{}, r.Clicks...)
	return r
}

// Visit is handed to a route callback after each redirect.
type Visit struct {
	Path      string    `json:"path"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	Timestamp time.Time `json:"timestamp"`
}

// Callback observes visits. It runs on the request goroutine after the
// response has been written.
type Callback func(v Visit)

// =============================================================================
// SHORT CODES
// =============================================================================

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 6
	maxRerolls   = 1000
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,}$`)

// ErrInvalidAlias is returned for aliases shorter than three characters or
// containing anything outside [A-Za-z0-9_-].
var ErrInvalidAlias = errors.New("alias must be at least 3 characters of [A-Za-z0-9_-]")

// ValidAlias reports whether a user-supplied alias is acceptable.
func ValidAlias(alias string) bool {
	return aliasPattern.MatchString(alias)
}

// GenerateCode returns a random 6-character code for which taken reports
// false.
func GenerateCode(taken func(string) bool) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for attempt := 0; attempt < maxRerolls; attempt++ {
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("generate short code: %w", err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		if code := string(buf); taken == nil || !taken(code) {
			return code, nil
		}
	}
	return "", errors.New("generate short code: code space exhausted")
}
