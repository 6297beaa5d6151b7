// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"regexp"
	"strings"
)

// Noise the second geocoding pass strips from road addresses: parenthetical
// annotations, basement/floor/unit suffixes.
var cleanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*\)`),
	regexp.MustCompile(`지하\s*\d+층`),
	regexp.MustCompile(`\d+층\s*\d+호`),
	regexp.MustCompile(`\d+층`),
	regexp.MustCompile(`\d+호`),
}

var spaceRun = regexp.MustCompile(`\s+`)

// CleanAddress removes unit-level noise from an address. Applying it to an
// already-clean address returns the same string.
func CleanAddress(address string) string {
	out := address

	for _, p := range cleanPatterns {
		out = p.ReplaceAllString(out, " ")
	}

	return strings.TrimSpace(spaceRun.ReplaceAllString(out, " "))
}
