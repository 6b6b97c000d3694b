package tokens

import (
	"strings"
	"testing"

	"github.com/richinex/lectern/llm"
)

func TestEstimateEmpty(t *testing.T) {
	if got := Estimate(""); got != 0 {
		t.Errorf("expected 0 for empty text, got %d", got)
	}
}

func TestEstimatePositiveForNonEmpty(t *testing.T) {
	inputs := []string{"a", "hi", "hello world", strings.Repeat("x", 4097)}
	for _, s := range inputs {
		if got := Estimate(s); got <= 0 {
			t.Errorf("Estimate(%q) = %d, want > 0", s[:min(len(s), 10)], got)
		}
	}
}

func TestEstimateMonotonic(t *testing.T) {
	s1 := "the quick brown fox"
	s2 := " jumps over the lazy dog"
	if Estimate(s1+s2) < Estimate(s1) {
		t.Errorf("estimate decreased when text grew: %d < %d", Estimate(s1+s2), Estimate(s1))
	}
}

func TestEstimateRoundsUp(t *testing.T) {
	// 5 chars at 4 chars/token must round up to 2, not truncate to 1.
	if got := Estimate("abcde"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := Estimate("abcd"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestEstimateMessagesAddsOverhead(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: "user", Content: "abcd"},
		{Role: "assistant", Content: "efgh"},
	}
	perMessage := Estimate("abcd")
	got := EstimateMessages(messages)
	if got <= 2*perMessage {
		t.Errorf("expected per-message overhead on top of %d, got %d", 2*perMessage, got)
	}
}

func TestEstimateMessagesEmpty(t *testing.T) {
	if got := EstimateMessages(nil); got != 0 {
		t.Errorf("expected 0 for no messages, got %d", got)
	}
}
