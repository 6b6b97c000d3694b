// Package window keeps conversation history inside a token budget.
//
// Recent turns are kept verbatim; older turns are folded into a cheap
// heuristic summary. The summary is keyword and pattern based, not a
// model call: it has no semantic correctness guarantee, only structural
// ones (bounded size, recent messages untouched). That trade is
// deliberate: summarization must never cost a completion request.
package window

import (
	"github.com/richinex/lectern/internal/tokens"
	"github.com/richinex/lectern/llm"
)

// Config holds sliding window parameters.
type Config struct {
	// KeepRecentPairs is the number of user/assistant message pairs
	// always kept verbatim.
	KeepRecentPairs int

	// TokenThreshold is the estimated total above which summarization
	// activates.
	TokenThreshold int

	// SummaryMaxTokens caps the generated summary.
	SummaryMaxTokens int
}

// DefaultConfig returns the default window configuration.
func DefaultConfig() Config {
	return Config{
		KeepRecentPairs:  5,
		TokenThreshold:   30000,
		SummaryMaxTokens: 500,
	}
}

// Result is the outcome of applying the window to a message list.
// It is derived state, recomputed per request and never persisted.
type Result struct {
	// Summary of the folded messages; "" when WasSummarized is false.
	Summary string

	// RecentMessages kept verbatim. When WasSummarized is true this is
	// a suffix of the original list.
	RecentMessages []llm.ChatMessage

	// WasSummarized reports whether any messages were folded.
	WasSummarized bool

	// Token telemetry.
	OriginalTokens  int
	ProcessedTokens int
	SummarizedCount int
}

// Manager applies the sliding window policy.
type Manager struct {
	config Config
}

// NewManager creates a window manager with the given configuration.
// Zero-value fields fall back to defaults.
func NewManager(config Config) *Manager {
	defaults := DefaultConfig()
	if config.KeepRecentPairs <= 0 {
		config.KeepRecentPairs = defaults.KeepRecentPairs
	}
	if config.TokenThreshold <= 0 {
		config.TokenThreshold = defaults.TokenThreshold
	}
	if config.SummaryMaxTokens <= 0 {
		config.SummaryMaxTokens = defaults.SummaryMaxTokens
	}
	return &Manager{config: config}
}

// Apply decides whether history fits the budget and folds older turns
// into a summary when it does not.
func (m *Manager) Apply(messages []llm.ChatMessage) Result {
	total := tokens.EstimateMessages(messages)

	if total <= m.config.TokenThreshold {
		return Result{
			RecentMessages:  messages,
			OriginalTokens:  total,
			ProcessedTokens: total,
		}
	}

	split := len(messages) - 2*m.config.KeepRecentPairs
	if split <= 0 {
		// Nothing precedes the verbatim slice; no summary needed.
		return Result{
			RecentMessages:  messages,
			OriginalTokens:  total,
			ProcessedTokens: total,
		}
	}

	older := messages[:split]
	recent := messages[split:]
	summary := summarize(older, m.config.SummaryMaxTokens)

	return Result{
		Summary:         summary,
		RecentMessages:  recent,
		WasSummarized:   true,
		OriginalTokens:  total,
		ProcessedTokens: tokens.Estimate(summary) + tokens.EstimateMessages(recent),
		SummarizedCount: len(older),
	}
}

// FormatWithSummary renders a window result back into a message list.
// When summarization occurred, one synthetic leading message embeds the
// summary ahead of the verbatim recent messages.
func (m *Manager) FormatWithSummary(result Result) []llm.ChatMessage {
	if !result.WasSummarized {
		return result.RecentMessages
	}

	lead := llm.UserMessage(
		"Continuing from our recent conversation. Summary of the earlier discussion:\n\n" + result.Summary)

	formatted := make([]llm.ChatMessage, 0, len(result.RecentMessages)+1)
	formatted = append(formatted, lead)
	formatted = append(formatted, result.RecentMessages...)
	return formatted
}
