// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// PALETTE
// =============================================================================

// All colors adapt to light and dark terminals.
var (
	Cyan    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Purple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	Amber   = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	Rose    = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// riskColors follow the severity ladder; CRITICAL is rendered bold.
var riskColors = map[tools.RiskLevel]lipgloss.AdaptiveColor{
	tools.RiskLow:      Emerald,
	tools.RiskMedium:   Cyan,
	tools.RiskHigh:     Amber,
	tools.RiskCritical: Rose,
}

// =============================================================================
// STYLES
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Background(SurfaceDim).
			Padding(0, 1)

	brandStyle  = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	accentStyle = lipgloss.NewStyle().Foreground(Purple)

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(Purple).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(TextSecondary).Width(12)
	mutedStyle   = lipgloss.NewStyle().Foreground(TextMuted)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	warningStyle = lipgloss.NewStyle().Foreground(Amber)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(Rose)

	focusedLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	blurredLabelStyle = lipgloss.NewStyle().Foreground(TextSecondary)

	footerStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(Overlay)
)

func riskStyle(r tools.RiskLevel) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(riskColors[r])
	if r == tools.RiskCritical {
		s = s.Bold(true)
	}
	return s
}

func statusStyle(s tools.Status) lipgloss.Style {
	switch s {
	case tools.StatusCompleted:
		return successStyle
	case tools.StatusFailed:
		return errorStyle
	default:
		return warningStyle
	}
}
