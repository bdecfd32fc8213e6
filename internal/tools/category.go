// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// CATEGORIES
// =============================================================================

// Category groups tools in listings. It has no effect on execution.
type Category string

const (
	CategoryNetwork      Category = "network"
	CategoryWeb          Category = "web"
	CategoryOSINT        Category = "osint"
	CategoryCrypto       Category = "crypto"
	CategoryWireless     Category = "wireless"
	CategoryDatabase     Category = "database"
	CategoryUtilities    Category = "utilities"
	CategoryPhishing     Category = "phishing"
	CategorySecurity     Category = "security"
	CategoryClickjacking Category = "clickjacking"
	CategoryReporting    Category = "reporting"
	CategoryForensics    Category = "forensics"
	CategoryCloud        Category = "cloud"
	CategoryIoT          Category = "iot"
	CategoryMobile       Category = "mobile"
	CategorySocial       Category = "social"
)

var allCategories = []Category{
	CategoryNetwork,
	CategoryWeb,
	CategoryOSINT,
	CategoryCrypto,
	CategoryWireless,
	CategoryDatabase,
	CategoryUtilities,
	CategoryPhishing,
	CategorySecurity,
	CategoryClickjacking,
	CategoryReporting,
	CategoryForensics,
	CategoryCloud,
	CategoryIoT,
	CategoryMobile,
	CategorySocial,
}

// AllCategories returns every category in display order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range allCategories {
		if c == k {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// Title returns the display name, e.g. "OSINT" or "Clickjacking".
func (c Category) Title() string {
	switch c {
	case CategoryOSINT:
		return "OSINT"
	case CategoryIoT:
		return "IoT"
	}
	return titleCaser.String(string(c))
}

// =============================================================================
// RISK LEVELS
// =============================================================================

// RiskLevel governs safety caps and audit logging.
type RiskLevel int

const (
	// RiskLow - passive lookups, no traffic to the target beyond normal use
	RiskLow RiskLevel = iota

	// RiskMedium - active probing
	RiskMedium

	// RiskHigh - intrusive; duration capped and every run audited
	RiskHigh

	// RiskCritical - disruptive; duration capped and every run audited
	RiskCritical
)

// String returns the upper-case tier name.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Color returns the color associated with a risk level.
func (r RiskLevel) Color() string {
	switch r {
	case RiskLow:
		return "#34D399" // Emerald
	case RiskMedium:
		return "#FBBF24" // Amber
	case RiskHigh:
		return "#FB923C" // Orange
	case RiskCritical:
		return "#FB7185" // Rose
	default:
		return "#A6ADC8"
	}
}

// IsHigh reports HIGH or CRITICAL.
func (r RiskLevel) IsHigh() bool {
	return r >= RiskHigh
}

// ParseRiskLevel accepts the tier name in any case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	case "CRITICAL":
		return RiskCritical, nil
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

// MarshalJSON encodes the tier name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes the tier name.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// MarshalYAML encodes the tier name for YAML exports.
func (r RiskLevel) MarshalYAML() (any, error) {
	return r.String(), nil
}
