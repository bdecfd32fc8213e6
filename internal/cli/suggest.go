// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - "did you mean" for mistyped commands and tool ids.
package cli

import (
	"strings"
)

// validCommands lists every command word, aliases included.
var validCommands = []string{
	"list-tools", "list", "ls",
	"info",
	"help-tool",
	"list-by-category", "category",
	"run",
	"tui",
	"web",
	"server", "api",
	"config-show", "config",
	"history",
	"export",
	"version",
	"help",
}

// SuggestCommand returns the closest command to input, or "".
func SuggestCommand(input string) string {
	return suggest(input, validCommands)
}

// suggest returns the candidate closest to input within an edit budget that
// grows with the input length. Exact matches and very short inputs yield "".
func suggest(input string, candidates []string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, c := range candidates {
		distance := levenshteinDistance(input, c)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = c
		}
	}
	return bestMatch
}

// levenshteinDistance is the number of single-byte edits between s1 and s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	cols := len(s2) + 1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}
