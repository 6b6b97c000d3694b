package window

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/richinex/lectern/llm"
)

// summaryTruncationMarker ends a summary cut at the token cap.
const summaryTruncationMarker = "[summary truncated]"

// maxExchangeDigests caps the "user asked / assistant discussed" pairs.
const maxExchangeDigests = 3

// topicKeywords is the domain vocabulary scanned for in folded turns.
var topicKeywords = []string{
	"transformer", "attention", "neural network", "language model",
	"dataset", "training", "evaluation", "benchmark", "fine-tuning",
	"embedding", "architecture", "methodology", "algorithm",
	"citation", "reference", "abstract", "experiment", "baseline",
}

var (
	// aboutPattern catches generic "about X" / "regarding X" topics.
	aboutPattern = regexp.MustCompile(`(?i)\b(?:about|regarding)\s+(?:the\s+)?([a-z][\w-]{3,}(?:\s+[a-z][\w-]{3,})?)`)

	// boldSpanPattern catches markdown-bold paper titles.
	boldSpanPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)

	// quotedTitleYearPattern catches quoted titles followed by a year.
	quotedTitleYearPattern = regexp.MustCompile(`"([^"]{8,})"\s*\((\d{4})\)`)

	// questionPattern catches the first question sentence in a message.
	questionPattern = regexp.MustCompile(`([^.!?\n]{4,}\?)`)
)

// summarize builds the labeled multi-section heuristic summary of the
// folded messages, truncated to maxTokens.
func summarize(messages []llm.ChatMessage, maxTokens int) string {
	var sections []string

	if topics := extractTopics(messages); len(topics) > 0 {
		sections = append(sections, "Topics discussed: "+strings.Join(topics, ", "))
	}
	if papers := extractPaperMentions(messages); len(papers) > 0 {
		sections = append(sections, "Papers mentioned: "+strings.Join(papers, "; "))
	}
	if questions := extractQuestions(messages); len(questions) > 0 {
		sections = append(sections, "Questions asked:\n- "+strings.Join(questions, "\n- "))
	}
	if exchanges := extractExchanges(messages); len(exchanges) > 0 {
		sections = append(sections, "Key exchanges:\n- "+strings.Join(exchanges, "\n- "))
	}

	if len(sections) == 0 {
		sections = append(sections, fmt.Sprintf("Earlier conversation of %d messages.", len(messages)))
	}

	summary := strings.Join(sections, "\n\n")
	return truncateToTokens(summary, maxTokens)
}

// extractTopics scans all content for domain keywords and generic
// "about X" phrases, deduplicated in first-seen order.
func extractTopics(messages []llm.ChatMessage) []string {
	seen := make(map[string]bool)
	var topics []string

	add := func(topic string) {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" || seen[topic] {
			return
		}
		seen[topic] = true
		topics = append(topics, topic)
	}

	for _, msg := range messages {
		lower := strings.ToLower(msg.Content)
		for _, keyword := range topicKeywords {
			if strings.Contains(lower, keyword) {
				add(keyword)
			}
		}
		for _, m := range aboutPattern.FindAllStringSubmatch(msg.Content, 3) {
			add(m[1])
		}
	}

	return topics
}

// extractPaperMentions collects bold spans and quoted-title-plus-year
// spans, deduplicated.
func extractPaperMentions(messages []llm.ChatMessage) []string {
	seen := make(map[string]bool)
	var papers []string

	add := func(paper string) {
		paper = strings.TrimSpace(paper)
		if paper == "" || seen[paper] {
			return
		}
		seen[paper] = true
		papers = append(papers, paper)
	}

	for _, msg := range messages {
		for _, m := range boldSpanPattern.FindAllStringSubmatch(msg.Content, -1) {
			add(m[1])
		}
		for _, m := range quotedTitleYearPattern.FindAllStringSubmatch(msg.Content, -1) {
			add(fmt.Sprintf("%s (%s)", m[1], m[2]))
		}
	}

	return papers
}

// extractQuestions takes the first question sentence of each user message.
func extractQuestions(messages []llm.ChatMessage) []string {
	var questions []string
	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		if m := questionPattern.FindStringSubmatch(msg.Content); m != nil {
			questions = append(questions, strings.TrimSpace(m[1]))
		}
	}
	return questions
}

// extractExchanges condenses up to three user/assistant pairs into
// "asked X, discussed Y" digests, preferring the most recent pairs.
func extractExchanges(messages []llm.ChatMessage) []string {
	var exchanges []string
	for i := 0; i+1 < len(messages); i++ {
		if messages[i].Role != "user" || messages[i+1].Role != "assistant" {
			continue
		}
		userClause := firstClause(messages[i].Content)
		assistantClause := firstClause(messages[i+1].Content)
		if userClause == "" || assistantClause == "" {
			continue
		}
		exchanges = append(exchanges, fmt.Sprintf("User asked: %s / Assistant discussed: %s", userClause, assistantClause))
	}
	if len(exchanges) > maxExchangeDigests {
		exchanges = exchanges[len(exchanges)-maxExchangeDigests:]
	}
	return exchanges
}

// firstClause returns the text up to the first sentence break, capped
// at 80 characters.
func firstClause(content string) string {
	content = strings.TrimSpace(content)
	if end := strings.IndexAny(content, ".?!\n"); end != -1 {
		content = content[:end+1]
	}
	if len(content) > 80 {
		content = content[:runeBoundary(content, 80)] + "..."
	}
	return strings.TrimSpace(content)
}

// truncateToTokens cuts text at an approximate token cap, appending a
// marker when anything was dropped.
func truncateToTokens(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars - len(summaryTruncationMarker) - 1
	if cut < 0 {
		cut = 0
	}
	cut = runeBoundary(text, cut)
	return text[:cut] + " " + summaryTruncationMarker
}

// runeBoundary backs a byte offset up to the start of the rune it
// falls inside, so slicing never splits a multi-byte rune.
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
