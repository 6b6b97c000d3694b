// Package tokens provides heuristic token estimation for budget checks.
//
// Estimates are deliberately conservative (slight overestimates) so that
// budget decisions made from them never overshoot a provider's context
// window. Exact tokenizer fidelity is not a goal; the heuristic only has
// to be monotonic and cheap.
package tokens

import "github.com/richinex/lectern/llm"

// charsPerToken is the rough character-to-token ratio for English prose.
const charsPerToken = 4

// messageOverhead is the fixed structural cost charged per message
// (role markers, separators) on top of its content.
const messageOverhead = 4

// Estimate returns the estimated token count for a piece of text.
// Empty text yields 0. The estimate rounds up, never down.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// EstimateMessages returns the estimated token count for a message list,
// charging a fixed structural overhead per message.
func EstimateMessages(messages []llm.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += Estimate(msg.Content) + messageOverhead
	}
	return total
}
