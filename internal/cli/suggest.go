// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "strings"

// slashCommands are the chat commands offered as suggestions.
var slashCommands = []string{
	"/topic", "/sessions", "/switch", "/new", "/delete", "/model",
	"/mode", "/research", "/budget", "/history", "/help", "/quit",
}

var (
	sessionSubcommands = []string{"list", "show", "export", "delete"}
	configSubcommands  = []string{"show", "path", "init", "get", "set", "keys"}
)

// suggest returns the candidate closest to input, or "" when none is close.
// Short inputs allow one edit, longer ones two or three.
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

	best, bestDistance := "", -1
	for _, candidate := range candidates {
		distance := levenshteinDistance(input, candidate)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// didYouMean formats a suggestion hint, or returns "".
func didYouMean(input string, candidates []string) string {
	if s := suggest(input, candidates); s != "" {
		return " (did you mean " + s + "?)"
	}
	return ""
}

// levenshteinDistance is the number of single-character edits between s1
// and s2.
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
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}
