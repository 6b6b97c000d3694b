package condense

import (
	"regexp"
	"strings"

	"github.com/richinex/lectern/internal/tokens"
)

// truncationMarker is appended whenever the pruner drops lines.
const truncationMarker = "[output truncated to fit context budget]"

// importantLinePattern marks lines the pruner keeps preferentially:
// paper metadata fields, list items, and headings.
var importantLinePattern = regexp.MustCompile(`(?i)^\s*(?:#{1,4}\s|\d+[.)]\s|[-*]\s|(?:\*\*)?(?:title|paper|authors?|year|published|url|link|citations?|abstract)(?:\*\*)?\s*:)`)

// pruneLines is the second-stage budget enforcer. Important lines are
// kept first (charging the budget); remaining lines are appended in
// original order only while the running budget allows. Original line
// order is preserved in the output.
func pruneLines(text string, budget int) string {
	lines := strings.Split(text, "\n")
	keep := make([]bool, len(lines))
	remaining := budget - tokens.Estimate(truncationMarker)

	// First pass: important lines.
	for i, line := range lines {
		if importantLinePattern.MatchString(line) {
			keep[i] = true
			remaining -= tokens.Estimate(line) + 1
		}
	}

	// Second pass: fill with the rest while the budget holds.
	dropped := false
	for i, line := range lines {
		if keep[i] {
			continue
		}
		cost := tokens.Estimate(line) + 1
		if cost <= remaining {
			keep[i] = true
			remaining -= cost
		} else {
			dropped = true
		}
	}

	var sb strings.Builder
	for i, line := range lines {
		if keep[i] {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	if dropped {
		sb.WriteString(truncationMarker)
	}

	return strings.TrimRight(sb.String(), "\n")
}
