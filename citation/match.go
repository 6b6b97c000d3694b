package citation

import (
	"regexp"
	"strings"
)

// Citation matchers, tried in order. Numeric markers are unambiguous and
// checked first; textual citations are fallbacks.
var (
	singleNumberPattern = regexp.MustCompile(`^\s*[\[(]?(\d+)[\])]?\s*$`)
	numberListPattern   = regexp.MustCompile(`^\s*[\[(](\d+)(?:\s*[,;]\s*\d+)+[\])]\s*$`)
	authorYearPattern   = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z'-]+)(?:\s+(?:et al\.?|and\s+\S+|&\s+\S+))?\s*[,(]?\s*(\d{4})\)?\s*$`)
	authorEtAlPattern   = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z'-]+)\s+et al\.?\s*$`)
)

// MatchCitation resolves a highlighted citation string against parsed
// references. Rules are tried in order; the first producing a match
// wins; nil means no rule matched.
//
// Multi-number citations like [1,2,3] resolve to the first number only;
// the remaining numbers are discarded. Callers that need the full set
// have to split the citation themselves.
func MatchCitation(citationText string, references []Reference) *Reference {
	text := strings.TrimSpace(citationText)
	if text == "" || len(references) == 0 {
		return nil
	}

	if m := singleNumberPattern.FindStringSubmatch(text); m != nil {
		return matchByIndex(atoi(m[1]), references)
	}

	if m := numberListPattern.FindStringSubmatch(text); m != nil {
		return matchByIndex(atoi(m[1]), references)
	}

	if m := authorYearPattern.FindStringSubmatch(text); m != nil {
		return matchByAuthorYear(m[1], m[2], references)
	}

	if m := authorEtAlPattern.FindStringSubmatch(text); m != nil {
		return matchByAuthor(m[1], references)
	}

	return nil
}

// matchByIndex finds the first reference with the exact index.
func matchByIndex(index int, references []Reference) *Reference {
	for i := range references {
		if references[i].Index == index {
			return &references[i]
		}
	}
	return nil
}

// matchByAuthorYear requires the author token to appear in the
// reference's author field (falling back to raw text) and the year to
// match exactly.
func matchByAuthorYear(author, year string, references []Reference) *Reference {
	author = strings.ToLower(author)
	for i := range references {
		ref := &references[i]
		if ref.Year != year {
			continue
		}
		if containsAuthor(ref, author) {
			return ref
		}
	}
	return nil
}

// matchByAuthor matches on author substring alone ("Author et al." with
// no year).
func matchByAuthor(author string, references []Reference) *Reference {
	author = strings.ToLower(author)
	for i := range references {
		if containsAuthor(&references[i], author) {
			return &references[i]
		}
	}
	return nil
}

// containsAuthor checks the author field first, then the raw text.
func containsAuthor(ref *Reference, lowerAuthor string) bool {
	if ref.Authors != "" && strings.Contains(strings.ToLower(ref.Authors), lowerAuthor) {
		return true
	}
	return strings.Contains(strings.ToLower(ref.RawText), lowerAuthor)
}
