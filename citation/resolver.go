// Package citation resolves inline citations against a document's
// bibliography.
//
// Everything here is heuristic text processing: bibliographies in the
// wild are messy, so each extraction step is a prioritized list of
// independent matchers, tried in a fixed order, first match wins.
// Entries the heuristics cannot decompose are still kept with their raw
// text so a citation can at least be quoted back verbatim.
package citation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Reference is one parsed bibliography entry.
// Index is the bibliography's own numbering (0 when the entry carries no
// numeric marker). Malformed documents can repeat indices; matching
// takes the first occurrence.
type Reference struct {
	Index   int    `json:"index"`
	RawText string `json:"rawText"`
	Authors string `json:"authors,omitempty"`
	Year    string `json:"year,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Bibliography section headings, in priority order.
var headingPattern = regexp.MustCompile(`(?mi)^\s*(?:#{1,6}\s*)?(?:references|bibliography|works\s+cited)\s*:?\s*$`)

// bareHeadingPattern matches a heading-like line without markdown markers,
// used for the tail-of-document fallback scan.
var bareHeadingPattern = regexp.MustCompile(`(?mi)^\s*(?:references|bibliography|works\s+cited)\b.*$`)

// LocateBibliography returns the text following the document's
// bibliography heading, or "" and false if none is found.
//
// A heading anywhere in the document wins; failing that, the final ~30%
// of the document is scanned for a bare heading-like line, since some
// extracted PDFs lose their heading markup.
func LocateBibliography(fullText string) (string, bool) {
	if loc := headingPattern.FindStringIndex(fullText); loc != nil {
		return fullText[loc[1]:], true
	}

	tailStart := len(fullText) * 7 / 10
	// Keep the cut on a rune boundary.
	for tailStart > 0 && !utf8.RuneStart(fullText[tailStart]) {
		tailStart--
	}
	tail := fullText[tailStart:]
	if loc := bareHeadingPattern.FindStringIndex(tail); loc != nil {
		return tail[loc[1]:], true
	}

	return "", false
}

// Entry markers: [N], N., (N) at the start of a line.
var (
	bracketMarker = regexp.MustCompile(`^\s*\[(\d+)\]\.?\s*`)
	dotMarker     = regexp.MustCompile(`^\s*(\d+)\.\s+`)
	parenMarker   = regexp.MustCompile(`^\s*\((\d+)\)\.?\s*`)
)

// referenceStartPattern recognizes an unnumbered entry start: a
// capitalized author name with a year in parentheses later on the line.
var referenceStartPattern = regexp.MustCompile(`^[A-Z][A-Za-z'-]+.*\(\d{4}\)`)

// ParseReferences splits bibliography text into structured references.
//
// A new entry begins at a line carrying a numeric marker, or (when no
// marker is present) at a line that looks like a reference start.
// Other lines are continuations of the current entry.
func ParseReferences(bibliographyText string) []Reference {
	var refs []Reference
	var current *strings.Builder
	currentIndex := 0

	flush := func() {
		if current == nil {
			return
		}
		raw := strings.TrimSpace(current.String())
		if raw != "" {
			refs = append(refs, buildReference(currentIndex, raw))
		}
		current = nil
	}

	for _, line := range strings.Split(bibliographyText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if index, rest, ok := matchEntryMarker(trimmed); ok {
			flush()
			current = &strings.Builder{}
			currentIndex = index
			current.WriteString(rest)
			continue
		}

		if current == nil || referenceStartPattern.MatchString(trimmed) {
			flush()
			current = &strings.Builder{}
			currentIndex = 0
			current.WriteString(trimmed)
			continue
		}

		// Continuation line
		current.WriteString(" ")
		current.WriteString(trimmed)
	}
	flush()

	return refs
}

// ParseDocument locates the bibliography in a full document and parses
// it. Returns nil when the document has no recognizable bibliography.
// Intended to run once, at document ingestion.
func ParseDocument(fullText string) []Reference {
	bibliography, ok := LocateBibliography(fullText)
	if !ok {
		return nil
	}
	return ParseReferences(bibliography)
}

// matchEntryMarker tries the numeric entry markers in fixed order.
func matchEntryMarker(line string) (index int, rest string, ok bool) {
	for _, pattern := range []*regexp.Regexp{bracketMarker, dotMarker, parenMarker} {
		if m := pattern.FindStringSubmatch(line); m != nil {
			return atoi(m[1]), strings.TrimSpace(line[len(m[0]):]), true
		}
	}
	return 0, "", false
}

// buildReference mines a finished entry for year, authors, and title.
// Entries the matchers cannot decompose keep raw text only.
func buildReference(index int, raw string) Reference {
	ref := Reference{Index: index, RawText: raw}
	ref.Year = extractYear(raw)
	ref.Authors = extractAuthors(raw)
	ref.Title = extractTitle(raw, ref.Year)
	return ref
}

var yearPattern = regexp.MustCompile(`\((\d{4})[a-z]?\)`)

// extractYear returns the first (YYYY) match, or "".
func extractYear(raw string) string {
	if m := yearPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// Author matchers, tried in order:
// 1. "Name, I." initial sequences, possibly several authors
// 2. "Name et al."
// 3. plain leading name list before the year
var (
	authorInitialsPattern = regexp.MustCompile(`^([A-Z][A-Za-z'-]+,\s*(?:[A-Z]\.\s*)+(?:(?:,|and|&)\s*[A-Z][A-Za-z'-]+,?\s*(?:[A-Z]\.\s*)*)*)`)
	etAlPattern           = regexp.MustCompile(`^([A-Z][A-Za-z'-]+(?:,\s*[A-Z]\.)*,?\s+et al\.?)`)
	leadingNamesPattern   = regexp.MustCompile(`^([A-Z][A-Za-z'-]+(?:\s*(?:,|and|&)\s*[A-Z][A-Za-z'-]+)*)\s*\(\d{4}`)
)

// extractAuthors returns the author span of a raw entry, or "".
func extractAuthors(raw string) string {
	for _, pattern := range []*regexp.Regexp{etAlPattern, authorInitialsPattern, leadingNamesPattern} {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			return strings.TrimRight(strings.TrimSpace(m[1]), ",")
		}
	}
	return ""
}

var quotedTitlePattern = regexp.MustCompile(`["“]([^"”]+)["”]`)

// extractTitle returns the title span: text between the year marker and
// the next full stop, or a quoted span, whichever matches first.
func extractTitle(raw, year string) string {
	if year != "" {
		marker := "(" + year + ")"
		if pos := strings.Index(raw, marker); pos != -1 {
			after := raw[pos+len(marker):]
			after = strings.TrimLeft(after, ". ")
			if end := strings.IndexAny(after, ".?"); end != -1 {
				title := strings.TrimSpace(after[:end])
				if title != "" {
					return title
				}
			}
		}
	}

	if m := quotedTitlePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}

	return ""
}

// atoi converts digit-only strings produced by the marker regexes.
// Inputs are guaranteed numeric by the patterns.
func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
