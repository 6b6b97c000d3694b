// Package storage provides chat history storage abstraction.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures

package storage

import (
	"context"
	"sync"

	radix "github.com/armon/go-radix"
	"github.com/richinex/lectern/llm"
)

// History defines the interface for an ordered, append-only chat log
// scoped per conversation.
type History interface {
	// Messages returns all messages for a conversation in insertion
	// order. Returns empty slice (not nil) if the conversation doesn't
	// exist. Returns error only for storage failures, not missing
	// conversations.
	Messages(ctx context.Context, conversationID string) ([]llm.ChatMessage, error)

	// Append adds one message to the end of a conversation's log.
	Append(ctx context.Context, conversationID string, message llm.ChatMessage) error

	// Clear removes all messages for a conversation.
	Clear(ctx context.Context, conversationID string) error

	// ListConversations lists all conversation IDs.
	ListConversations(ctx context.Context) ([]string, error)
}

// InMemoryHistory implements History over a radix tree keyed by
// conversation ID, so listing is lexicographically ordered and
// prefix-scoped lookups are cheap. Thread-safe. Data is lost when the
// process exits.
type InMemoryHistory struct {
	mu            sync.RWMutex
	conversations *radix.Tree
}

var _ History = (*InMemoryHistory)(nil)

// NewInMemoryHistory creates empty in-memory history storage.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{
		conversations: radix.New(),
	}
}

// Messages returns a copy of the conversation's log.
func (h *InMemoryHistory) Messages(ctx context.Context, conversationID string) ([]llm.ChatMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	messages := []llm.ChatMessage{}
	if stored, ok := h.conversations.Get(conversationID); ok {
		messages = append(messages, stored.([]llm.ChatMessage)...)
	}
	return messages, nil
}

// Append adds a message to the conversation's log.
func (h *InMemoryHistory) Append(ctx context.Context, conversationID string, message llm.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var log []llm.ChatMessage
	if stored, ok := h.conversations.Get(conversationID); ok {
		log = stored.([]llm.ChatMessage)
	}
	h.conversations.Insert(conversationID, append(log, message))
	return nil
}

// Clear removes the conversation's log.
func (h *InMemoryHistory) Clear(ctx context.Context, conversationID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conversations.Delete(conversationID)
	return nil
}

// ListConversations returns conversation IDs in lexicographic order.
func (h *InMemoryHistory) ListConversations(ctx context.Context) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, h.conversations.Len())
	h.conversations.Walk(func(id string, _ interface{}) bool {
		ids = append(ids, id)
		return false
	})
	return ids, nil
}

// ListConversationsWithPrefix returns conversation IDs sharing a
// prefix, e.g. all conversations for one document.
func (h *InMemoryHistory) ListConversationsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := []string{}
	h.conversations.WalkPrefix(prefix, func(id string, _ interface{}) bool {
		ids = append(ids, id)
		return false
	})
	return ids, nil
}
