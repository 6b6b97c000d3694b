// Bounded tool-use loop implementation.
//
// This is THE canonical implementation of the tool-use cycle.
// All model-driven tool execution goes through this module.
//
// Information Hiding:
// - Iteration bookkeeping hidden
// - Tool execution coordination hidden
// - Result condensing and guidance hidden

package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/richinex/lectern/condense"
	"github.com/richinex/lectern/llm"
	"github.com/richinex/lectern/papers"
)

// DefaultMaxIterations bounds the loop when no cap is configured.
const DefaultMaxIterations = 5

// ToolExecutor runs tools on behalf of the model. It never returns an
// error; failures come back as advisory text.
type ToolExecutor interface {
	Definitions() []llm.ToolDefinition
	CallTool(ctx context.Context, name string, arguments json.RawMessage) string
}

// Callbacks receive loop progress as it happens. Nil fields are
// skipped.
type Callbacks struct {
	// OnText receives streamed text chunks in arrival order.
	OnText llm.TextFunc

	// OnToolUse fires once per tool call before it executes.
	OnToolUse func(name string, input json.RawMessage)
}

// Response is the outcome of one loop run.
type Response struct {
	// Content is the accumulated assistant text across iterations.
	Content string

	// Iterations actually executed.
	Iterations int

	// StoppedAtCap is true when the iteration cap ended the loop
	// before the model finished naturally.
	StoppedAtCap bool

	// Usage is cumulative token usage across completion requests.
	Usage llm.TokenUsage

	// Duration of the whole run.
	Duration time.Duration
}

// Loop drives a bounded request/response cycle against a completion
// provider, executing tool calls through the executor between turns.
type Loop struct {
	provider      llm.Provider
	executor      ToolExecutor
	maxIterations int
}

// NewLoop creates a loop. A non-positive cap falls back to the
// default.
func NewLoop(provider llm.Provider, executor ToolExecutor, maxIterations int) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		provider:      provider,
		executor:      executor,
		maxIterations: maxIterations,
	}
}

// Run executes the loop over the given conversation. The message list
// should already include any system prompt. The returned response
// carries whatever text accumulated, even when the cap was hit.
func (l *Loop) Run(ctx context.Context, messages []llm.ChatMessage, callbacks Callbacks) (Response, error) {
	startTime := time.Now()
	tools := l.executor.Definitions()
	conversation := make([]llm.ChatMessage, len(messages))
	copy(conversation, messages)

	var accumulated strings.Builder
	var totalUsage llm.TokenUsage

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return l.response(accumulated.String(), iteration-1, false, totalUsage, startTime), err
		}

		response, err := l.provider.StreamChatWithTools(ctx, conversation, tools, callbacks.OnText)
		if err != nil {
			return l.response(accumulated.String(), iteration, false, totalUsage, startTime), err
		}

		if response.Usage != nil {
			totalUsage.PromptTokens += response.Usage.PromptTokens
			totalUsage.CompletionTokens += response.Usage.CompletionTokens
			totalUsage.TotalTokens += response.Usage.TotalTokens
		}

		if response.Content != "" {
			if accumulated.Len() > 0 {
				accumulated.WriteString("\n")
			}
			accumulated.WriteString(response.Content)
		}

		// Natural completion: no tool calls this turn.
		if len(response.ToolCalls) == 0 {
			return l.response(accumulated.String(), iteration, false, totalUsage, startTime), nil
		}

		results := l.executeTools(ctx, response.ToolCalls, callbacks.OnToolUse)

		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})
		for i, call := range response.ToolCalls {
			conversation = append(conversation, llm.ToolResultMessage(call.ID, results[i]))
		}
	}

	return l.response(accumulated.String(), l.maxIterations, true, totalUsage, startTime), nil
}

// executeTools runs all tool calls from one turn concurrently and
// collects results in call order. Every result is condensed and given
// a guidance suffix before it rejoins the conversation.
func (l *Loop) executeTools(ctx context.Context, calls []llm.ToolCall, onToolUse func(string, json.RawMessage)) []string {
	results := make([]string, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		if onToolUse != nil {
			onToolUse(call.Name, call.Arguments)
		}
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			raw := l.executor.CallTool(ctx, call.Name, call.Arguments)
			condensed := condense.Condense(call.Name, raw)
			results[i] = condensed + guidanceFor(call.Name, condensed)
		}(i, call)
	}

	wg.Wait()
	return results
}

// response finalizes the run bookkeeping.
func (l *Loop) response(content string, iterations int, atCap bool, usage llm.TokenUsage, startTime time.Time) Response {
	return Response{
		Content:      content,
		Iterations:   iterations,
		StoppedAtCap: atCap,
		Usage:        usage,
		Duration:     time.Since(startTime),
	}
}

// guidanceFor tells the model what to do with a tool result. Failure
// is detected from the gateway's advisory prefixes and a leading
// no-results notice, never from words inside result data.
func guidanceFor(toolName, result string) string {
	if toolName != condense.SearchToolName {
		return ""
	}
	if papers.IsAdvisory(result) || strings.HasPrefix(strings.ToLower(result), "no results") {
		return "\n\nThe search returned no usable results. Let the user know and suggest alternative search terms or manual search."
	}
	return "\n\nSummarize the papers found above for the user, including titles, years, and links where available."
}
