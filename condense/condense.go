// Package condense converts verbose tool output into compact,
// information-dense text before it re-enters the model's context.
//
// Only the paper-search tool gets structured condensing; other tool
// output passes through untouched. Parsing is best-effort and never
// fails: JSON first, then line-oriented field extraction, then the
// original text unchanged.
package condense

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	jsonutil "github.com/richinex/lectern/internal/json"
	"github.com/richinex/lectern/internal/tokens"
)

const (
	// SearchToolName is the tool whose output gets structured condensing.
	SearchToolName = "search_papers"

	// maxRecords caps how many results survive condensing.
	maxRecords = 5

	// abstractBudget is the per-record abstract character cap.
	abstractBudget = 300

	// hardTokenCeiling triggers the second-stage line pruner.
	hardTokenCeiling = 1200

	// minDataLength below which raw text cannot be a result set.
	minDataLength = 80
)

// record is one extracted paper result.
type record struct {
	Title     string
	Authors   string
	Year      string
	Citations string
	URL       string
	Abstract  string
}

func (r record) empty() bool {
	return r.Title == "" && r.Authors == "" && r.URL == "" && r.Abstract == ""
}

// Condense compacts raw tool output within the token budget.
//
// Unknown tools, error-looking text, and text too short to be a result
// set pass through unchanged. Extraction failure also passes through:
// raw text in the context beats losing the information.
func Condense(toolName, raw string) string {
	if toolName != SearchToolName {
		return raw
	}
	if looksLikeError(raw) || len(raw) < minDataLength {
		return raw
	}

	result := raw
	records := parseJSONRecords(raw)
	if len(records) == 0 {
		records = parseLineRecords(raw)
	}
	if len(records) > 0 {
		result = formatRecords(records)
	}

	if tokens.Estimate(result) > hardTokenCeiling {
		result = pruneLines(result, hardTokenCeiling)
	}

	return result
}

// looksLikeError reports whether raw text is an error advisory rather
// than data.
func looksLikeError(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lower, "error") ||
		strings.HasPrefix(lower, "failed") ||
		strings.Contains(lower, "temporarily unavailable")
}

// jsonRecord mirrors the fields paper-search services commonly return.
// Authors may be a string or a list of objects/strings; year may be a
// number or a string.
type jsonRecord struct {
	Title         string      `json:"title"`
	Authors       interface{} `json:"authors"`
	Year          interface{} `json:"year"`
	CitationCount interface{} `json:"citationCount"`
	URL           string      `json:"url"`
	Abstract      string      `json:"abstract"`
}

// parseJSONRecords attempts JSON extraction: a bare array of objects,
// or an object with a "data" array.
func parseJSONRecords(raw string) []record {
	items, err := jsonutil.ExtractJSONFromResponse[[]jsonRecord](raw)
	if err != nil {
		wrapper, werr := jsonutil.ExtractJSONFromResponse[struct {
			Data []jsonRecord `json:"data"`
		}](raw)
		if werr != nil {
			return nil
		}
		items = wrapper.Data
	}

	var records []record
	for _, item := range items {
		rec := record{
			Title:     item.Title,
			Authors:   flattenAuthors(item.Authors),
			Year:      flattenScalar(item.Year),
			Citations: flattenScalar(item.CitationCount),
			URL:       item.URL,
			Abstract:  item.Abstract,
		}
		if !rec.empty() {
			records = append(records, rec)
		}
	}
	return records
}

// flattenAuthors normalizes the authors field: plain string, list of
// strings, or list of {name: ...} objects.
func flattenAuthors(v interface{}) string {
	switch authors := v.(type) {
	case string:
		return authors
	case []interface{}:
		var names []string
		for _, a := range authors {
			switch author := a.(type) {
			case string:
				names = append(names, author)
			case map[string]interface{}:
				if name, ok := author["name"].(string); ok {
					names = append(names, name)
				}
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// flattenScalar renders a string-or-number JSON field.
func flattenScalar(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return fmt.Sprintf("%.0f", value)
	}
	return ""
}

// Per-field line matchers for markdown / numbered-list output.
// Each is independent; a new record header flushes the in-progress one.
var (
	headerLine    = regexp.MustCompile(`^\s*(?:\d+[.)]\s+|[-*]\s+|#{1,4}\s+)(?:\*\*)?(.+?)(?:\*\*)?\s*$`)
	titleField    = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:title|paper)(?:\*\*)?\s*:\s*(.+)$`)
	authorsField  = regexp.MustCompile(`(?i)^\s*(?:\*\*)?authors?(?:\*\*)?\s*:\s*(.+)$`)
	yearField     = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:year|published)(?:\*\*)?\s*:\s*.*?(\d{4})`)
	citationField = regexp.MustCompile(`(?i)^\s*(?:\*\*)?citations?(?:\s+count)?(?:\*\*)?\s*:\s*([\d,]+)`)
	urlField      = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:url|link)(?:\*\*)?\s*:\s*(\S+)`)
	abstractField = regexp.MustCompile(`(?i)^\s*(?:\*\*)?abstract(?:\*\*)?\s*:\s*(.+)$`)
)

// parseLineRecords is the line-oriented fallback extractor. It
// accumulates one in-progress record and flushes it whenever a new
// record header appears.
func parseLineRecords(raw string) []record {
	var records []record
	var current record
	inProgress := false

	flush := func() {
		if inProgress && !current.empty() {
			records = append(records, current)
		}
		current = record{}
		inProgress = false
	}

	for _, line := range strings.Split(raw, "\n") {
		// Field lines are checked before the generic header so that
		// "Title: X" is not swallowed as a list item.
		switch {
		case titleField.MatchString(line):
			if current.Title != "" {
				flush()
			}
			current.Title = titleField.FindStringSubmatch(line)[1]
			inProgress = true
		case authorsField.MatchString(line):
			current.Authors = authorsField.FindStringSubmatch(line)[1]
			inProgress = true
		case yearField.MatchString(line):
			current.Year = yearField.FindStringSubmatch(line)[1]
			inProgress = true
		case citationField.MatchString(line):
			current.Citations = citationField.FindStringSubmatch(line)[1]
			inProgress = true
		case urlField.MatchString(line):
			current.URL = urlField.FindStringSubmatch(line)[1]
			inProgress = true
		case abstractField.MatchString(line):
			current.Abstract = abstractField.FindStringSubmatch(line)[1]
			inProgress = true
		case headerLine.MatchString(line):
			flush()
			current.Title = strings.TrimSpace(headerLine.FindStringSubmatch(line)[1])
			inProgress = true
		}
	}
	flush()

	return records
}

// formatRecords renders records as a compact numbered list, capped at
// maxRecords with a trailing omission note.
func formatRecords(records []record) string {
	shown := records
	omitted := 0
	if len(shown) > maxRecords {
		omitted = len(shown) - maxRecords
		shown = shown[:maxRecords]
	}

	var sb strings.Builder
	for i, rec := range shown {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, orUnknown(rec.Title)))
		if rec.Year != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", rec.Year))
		}
		sb.WriteString("\n")
		if rec.Authors != "" {
			sb.WriteString(fmt.Sprintf("   Authors: %s\n", rec.Authors))
		}
		if rec.Citations != "" {
			sb.WriteString(fmt.Sprintf("   Citations: %s\n", rec.Citations))
		}
		if rec.URL != "" {
			sb.WriteString(fmt.Sprintf("   URL: %s\n", rec.URL))
		}
		if rec.Abstract != "" {
			sb.WriteString(fmt.Sprintf("   Abstract: %s\n", truncate(rec.Abstract, abstractBudget)))
		}
	}
	if omitted > 0 {
		sb.WriteString(fmt.Sprintf("(%d more results omitted)\n", omitted))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func orUnknown(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never leaves invalid UTF-8.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
