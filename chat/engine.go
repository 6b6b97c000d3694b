// Package chat orchestrates the research chat engine.
//
// The engine resolves citations, assembles a bounded conversation
// window, runs the tool-use loop, and streams results to the caller
// while keeping the persisted transcript consistent with what the
// loop produced.
//
// Information Hiding:
// - Event sequencing hidden
// - Persistence ordering hidden
// - Prompt construction hidden

package chat

import (
	"context"
	"encoding/json"

	"github.com/richinex/lectern/agent"
	"github.com/richinex/lectern/citation"
	"github.com/richinex/lectern/llm"
	"github.com/richinex/lectern/storage"
	"github.com/richinex/lectern/window"
)

// Config holds engine parameters. Zero values fall back to defaults.
type Config struct {
	// MaxIterations caps the tool-use loop.
	MaxIterations int

	// Window configures conversation summarization.
	Window window.Config
}

// Request is one user turn submitted to the engine.
type Request struct {
	// ConversationID scopes history persistence.
	ConversationID string

	// Text is the user's request.
	Text string

	// Citation is an optional inline citation marker the user
	// highlighted, e.g. "[1]" or "Smith (2023)". When set, References
	// must hold the document's pre-parsed bibliography.
	Citation string

	// References are the document's parsed bibliography entries.
	References []citation.Reference
}

// Engine is the research chat orchestrator. Construct one per process
// and share it; per-request state lives on the stack.
type Engine struct {
	provider llm.Provider
	executor agent.ToolExecutor
	history  storage.History
	window   *window.Manager
	loop     *agent.Loop
}

// NewEngine wires the orchestrator from its collaborators.
func NewEngine(provider llm.Provider, executor agent.ToolExecutor, history storage.History, config Config) *Engine {
	return &Engine{
		provider: provider,
		executor: executor,
		history:  history,
		window:   window.NewManager(config.Window),
		loop:     agent.NewLoop(provider, executor, config.MaxIterations),
	}
}

// Stream processes one request, emitting events as they happen. The
// stream always terminates with exactly one done or error event; the
// returned response carries the accumulated text for programmatic
// callers. Hard failures surface as error events, never panics.
func (e *Engine) Stream(ctx context.Context, req Request, emit EmitFunc) (agent.Response, error) {
	userContent := req.Text

	if req.Citation != "" {
		ref := citation.MatchCitation(req.Citation, req.References)
		emit(matchedReferenceEvent(ref))
		userContent = buildCitationPrompt(req.Citation, req.Text, ref)
	}

	prior, err := e.history.Messages(ctx, req.ConversationID)
	if err != nil {
		emit(errorEvent("failed to load conversation history: " + err.Error()))
		return agent.Response{}, err
	}

	userMessage := llm.UserMessage(userContent)

	// The user turn is persisted before the loop starts so the stored
	// transcript never lags what the model saw.
	if err := e.history.Append(ctx, req.ConversationID, userMessage); err != nil {
		emit(errorEvent("failed to persist message: " + err.Error()))
		return agent.Response{}, err
	}

	windowed := e.window.Apply(append(prior, userMessage))
	conversation := make([]llm.ChatMessage, 0, len(windowed.RecentMessages)+2)
	conversation = append(conversation, llm.SystemMessage(systemPrompt))
	conversation = append(conversation, e.window.FormatWithSummary(windowed)...)

	response, loopErr := e.loop.Run(ctx, conversation, agent.Callbacks{
		OnText: func(text string) {
			emit(contentEvent(text))
		},
		OnToolUse: func(name string, input json.RawMessage) {
			emit(toolUseEvent(name, input))
		},
	})

	// The assistant turn is persisted exactly once, after the loop's
	// outcome is known. On failure the best-effort accumulated text is
	// still kept.
	if response.Content != "" {
		if err := e.history.Append(ctx, req.ConversationID, llm.AssistantMessage(response.Content)); err != nil {
			emit(errorEvent("failed to persist message: " + err.Error()))
			return response, err
		}
	}

	if loopErr != nil {
		emit(errorEvent(loopErr.Error()))
		return response, loopErr
	}

	emit(doneEvent())
	return response, nil
}
