package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richinex/lectern/citation"
	"github.com/richinex/lectern/llm"
	"github.com/richinex/lectern/papers"
	"github.com/richinex/lectern/storage"
)

const sampleDocument = `# A Survey of Large Language Models

Scaling laws have driven rapid progress [1]. The transformer remains
the dominant architecture (Vaswani et al., 2017).

## References

[1]. Brown, T. et al. (2020). Language Models are Few-Shot Learners. NeurIPS.
[2]. Vaswani, A., Shazeer, N. (2017). Attention Is All You Need. NeurIPS.`

// engineProvider replays canned turns and records each request.
type engineProvider struct {
	turns         []llm.LLMResponse
	err           error
	conversations [][]llm.ChatMessage
}

func (p *engineProvider) Name() string  { return "fake" }
func (p *engineProvider) Model() string { return "fake-1" }

func (p *engineProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.LLMResponse, error) {
	return p.StreamChatWithTools(ctx, messages, tools, nil)
}

func (p *engineProvider) StreamChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition, onText llm.TextFunc) (llm.LLMResponse, error) {
	snapshot := make([]llm.ChatMessage, len(messages))
	copy(snapshot, messages)
	p.conversations = append(p.conversations, snapshot)

	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	turn := p.turns[0]
	if len(p.turns) > 1 {
		p.turns = p.turns[1:]
	}
	if onText != nil && turn.Content != "" {
		onText(turn.Content)
	}
	return turn, nil
}

// nullExecutor advertises no tools and fails any call.
type nullExecutor struct{}

func (nullExecutor) Definitions() []llm.ToolDefinition { return nil }
func (nullExecutor) CallTool(ctx context.Context, name string, arguments json.RawMessage) string {
	return "no tools available"
}

func collectEvents() (*[]Event, EmitFunc) {
	events := &[]Event{}
	return events, func(e Event) { *events = append(*events, e) }
}

func kinds(events []Event) []EventKind {
	var out []EventKind
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestStreamCitationGroundedRequest(t *testing.T) {
	refs := citation.ParseDocument(sampleDocument)
	if len(refs) < 2 {
		t.Fatalf("expected parsed references, got %d", len(refs))
	}

	provider := &engineProvider{turns: []llm.LLMResponse{{Content: "GPT-3 shows few-shot scaling."}}}
	engine := NewEngine(provider, nullExecutor{}, storage.NewInMemoryHistory(), Config{})

	events, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{
		ConversationID: "conv-1",
		Text:           "Summarize this paper",
		Citation:       "[1]",
		References:     refs,
	}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := (*events)[0]
	if first.Kind != EventMatchedReference || first.Reference == nil {
		t.Fatalf("expected a matched reference first, got %+v", first)
	}
	if first.Reference.Index != 1 {
		t.Errorf("wrong reference matched: %d", first.Reference.Index)
	}
	last := (*events)[len(*events)-1]
	if last.Kind != EventDone {
		t.Errorf("expected terminal done event, got %s", last.Kind)
	}

	// The prompt built for the model must carry the entry's raw text
	// and its year.
	request := provider.conversations[0]
	var prompt string
	for _, msg := range request {
		if msg.Role == "user" {
			prompt = msg.Content
		}
	}
	if !strings.Contains(prompt, "Brown, T. et al. (2020). Language Models are Few-Shot Learners") {
		t.Errorf("prompt missing matched raw text: %q", prompt)
	}
	if !strings.Contains(prompt, "2020") {
		t.Errorf("prompt missing year: %q", prompt)
	}
}

func TestStreamUnmatchedCitation(t *testing.T) {
	refs := citation.ParseDocument(sampleDocument)
	provider := &engineProvider{turns: []llm.LLMResponse{{Content: "I cannot identify that citation."}}}
	engine := NewEngine(provider, nullExecutor{}, storage.NewInMemoryHistory(), Config{})

	events, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{
		ConversationID: "conv-1",
		Text:           "What is this?",
		Citation:       "[999]",
		References:     refs,
	}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := (*events)[0]
	if first.Kind != EventMatchedReference || first.Reference != nil {
		t.Fatalf("expected a null matched reference, got %+v", first)
	}

	prompt := provider.conversations[0][len(provider.conversations[0])-1].Content
	if !strings.Contains(prompt, "could not be matched") {
		t.Errorf("prompt must tell the model the citation was unmatched: %q", prompt)
	}
}

func TestStreamPlainRequestSkipsMatching(t *testing.T) {
	provider := &engineProvider{turns: []llm.LLMResponse{{Content: "Hello."}}}
	engine := NewEngine(provider, nullExecutor{}, storage.NewInMemoryHistory(), Config{})

	events, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{ConversationID: "c", Text: "hi"}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range *events {
		if e.Kind == EventMatchedReference {
			t.Error("plain requests must not emit a matched reference event")
		}
	}
}

func TestStreamPersistenceOrdering(t *testing.T) {
	history := storage.NewInMemoryHistory()
	provider := &engineProvider{turns: []llm.LLMResponse{{Content: "Answer."}}}
	engine := NewEngine(provider, nullExecutor{}, history, Config{})

	_, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{ConversationID: "conv-p", Text: "question"}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := history.Messages(context.Background(), "conv-p")
	if len(stored) != 2 {
		t.Fatalf("expected user and assistant turns persisted, got %d", len(stored))
	}
	if stored[0].Role != "user" || stored[1].Role != "assistant" {
		t.Errorf("turns out of order: %s, %s", stored[0].Role, stored[1].Role)
	}
	if stored[1].Content != "Answer." {
		t.Errorf("assistant transcript diverges from the loop output: %q", stored[1].Content)
	}
}

func TestStreamProviderErrorEmitsErrorEvent(t *testing.T) {
	history := storage.NewInMemoryHistory()
	provider := &engineProvider{err: errors.New("upstream 500")}
	engine := NewEngine(provider, nullExecutor{}, history, Config{})

	events, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{ConversationID: "conv-e", Text: "hi"}, emit)
	if err == nil {
		t.Fatal("expected the provider error to surface")
	}

	last := (*events)[len(*events)-1]
	if last.Kind != EventError {
		t.Fatalf("expected terminal error event, got %s", last.Kind)
	}
	for _, e := range *events {
		if e.Kind == EventDone {
			t.Error("a failed stream must not also emit done")
		}
	}

	// The user turn stays persisted; no assistant turn was produced.
	stored, _ := history.Messages(context.Background(), "conv-e")
	if len(stored) != 1 || stored[0].Role != "user" {
		t.Errorf("expected only the user turn persisted, got %v", stored)
	}
}

func TestStreamToolUseEventsEmitted(t *testing.T) {
	provider := &engineProvider{turns: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_papers", Arguments: json.RawMessage(`{"query":"gpt"}`)}}},
		{Content: "Found them."},
	}}
	history := storage.NewInMemoryHistory()

	transport := &countingTransport{result: mcpText("1. **Paper** (2020)")}
	gateway := papers.NewGateway(func(ctx context.Context) (papers.Transport, error) {
		return transport, nil
	}, papers.NewBreaker(3, time.Minute))

	engine := NewEngine(provider, gateway, history, Config{})
	events, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{ConversationID: "conv-t", Text: "find gpt papers"}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sawToolUse := false
	for _, e := range *events {
		if e.Kind == EventToolUse {
			sawToolUse = true
			if e.ToolName != "search_papers" {
				t.Errorf("unexpected tool name: %s", e.ToolName)
			}
		}
	}
	if !sawToolUse {
		t.Errorf("expected a toolUse event, got %v", kinds(*events))
	}
}

// countingTransport implements papers.Transport for breaker scenarios.
type countingTransport struct {
	calls  int
	result json.RawMessage
	err    error
}

func (c *countingTransport) CallTool(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	c.calls++
	return c.result, c.err
}

func (c *countingTransport) Close() error { return nil }

func mcpText(text string) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return raw
}

func TestStreamBreakerOpensAfterRepeatedFailures(t *testing.T) {
	// The provider asks for a search on four consecutive turns, then
	// answers. The transport always fails, so the breaker opens after
	// three attempts and the fourth call must not reach the transport.
	toolTurn := llm.LLMResponse{ToolCalls: []llm.ToolCall{{ID: "c", Name: "search_papers", Arguments: json.RawMessage(`{"query":"x"}`)}}}
	provider := &engineProvider{turns: []llm.LLMResponse{
		toolTurn, toolTurn, toolTurn, toolTurn,
		{Content: "The search service is down."},
	}}

	transport := &countingTransport{err: errors.New("connection refused")}
	gateway := papers.NewGateway(func(ctx context.Context) (papers.Transport, error) {
		return transport, nil
	}, papers.NewBreaker(3, 5*time.Minute))

	engine := NewEngine(provider, gateway, storage.NewInMemoryHistory(), Config{})
	_, emit := collectEvents()
	_, err := engine.Stream(context.Background(), Request{ConversationID: "conv-b", Text: "search a lot"}, emit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.calls != 3 {
		t.Errorf("fourth call must be rejected without a network attempt, transport saw %d calls", transport.calls)
	}
	if gateway.Breaker().State() != papers.StateOpen {
		t.Errorf("expected open breaker, got %s", gateway.Breaker().State())
	}
}
