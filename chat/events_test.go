package chat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/richinex/lectern/citation"
)

func TestEventJSONShapes(t *testing.T) {
	ref := &citation.Reference{Index: 1, RawText: "[1]. Brown, T. et al. (2020). GPT-3.", Year: "2020"}

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"matched", matchedReferenceEvent(ref), `{"matchedReference":{"index":1,"rawText":"[1]. Brown, T. et al. (2020). GPT-3.","year":"2020"}}`},
		{"unmatched", matchedReferenceEvent(nil), `{"matchedReference":null}`},
		{"content", contentEvent("hello"), `{"content":"hello"}`},
		{"toolUse", toolUseEvent("search_papers", json.RawMessage(`{"query":"gpt"}`)), `{"toolUse":{"name":"search_papers","input":{"query":"gpt"}}}`},
		{"toolUseEmptyInput", toolUseEvent("search_papers", nil), `{"toolUse":{"name":"search_papers","input":{}}}`},
		{"done", doneEvent(), `{"done":true}`},
		{"error", errorEvent("boom"), `{"error":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("wire shape mismatch:\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestBuildCitationPromptMatched(t *testing.T) {
	ref := &citation.Reference{
		Index:   1,
		RawText: "[1]. Brown, T. et al. (2020). Language Models are Few-Shot Learners. NeurIPS.",
		Year:    "2020",
		Title:   "Language Models are Few-Shot Learners",
	}
	prompt := buildCitationPrompt("[1]", "Summarize this paper", ref)

	if !strings.Contains(prompt, ref.RawText) {
		t.Error("prompt missing the matched entry's raw text")
	}
	if !strings.Contains(prompt, "2020") {
		t.Error("prompt missing the publication year")
	}
	if !strings.Contains(prompt, "Summarize this paper") {
		t.Error("prompt missing the user request")
	}
}

func TestBuildCitationPromptUnmatched(t *testing.T) {
	prompt := buildCitationPrompt("[999]", "What is this?", nil)
	if !strings.Contains(prompt, "could not be matched") {
		t.Errorf("prompt must state the citation was not matched: %q", prompt)
	}
	if !strings.Contains(prompt, "[999]") {
		t.Error("prompt missing the citation marker")
	}
}
