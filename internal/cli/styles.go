// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - shared lipgloss styles for CLI output.
//
// Colors are disabled for non-TTY output, NO_COLOR and --no-color.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aleopantest/aleopantest/internal/tools"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// SectionStyle is used for category headers and envelope sections
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	// LabelStyle is used for field labels (left-aligned prompts)
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// IDStyle highlights tool ids in listings
	IDStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal separator line of the specified width.
// Default width is 70 characters if not specified.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderStatus renders an envelope status as a colored tag.
func RenderStatus(status tools.Status) string {
	switch status {
	case tools.StatusCompleted:
		return SuccessStyle.Render("[COMPLETED]")
	case tools.StatusFailed:
		return ErrorStyle.Render("[FAILED]")
	case tools.StatusRunning:
		return WarningStyle.Render("[RUNNING]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(string(status)) + "]")
	}
}

// RenderRisk renders a risk level in its color.
func RenderRisk(r tools.RiskLevel) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(r.Color()))
	if r == tools.RiskCritical {
		style = style.Bold(true)
	}
	return style.Render(r.String())
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}
