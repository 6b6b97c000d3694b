// Stream event types for the research chat engine.
//
// Events serialize one JSON object each, suitable for server-sent
// events. A stream is: an optional matchedReference event, any number
// of content and toolUse events, then exactly one done or error event.

package chat

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/lectern/citation"
)

// EventKind discriminates stream events.
type EventKind string

const (
	EventMatchedReference EventKind = "matchedReference"
	EventContent          EventKind = "content"
	EventToolUse          EventKind = "toolUse"
	EventDone             EventKind = "done"
	EventError            EventKind = "error"
)

// Event is one unit of the streaming protocol. Only the fields for
// its Kind are meaningful.
type Event struct {
	Kind EventKind

	// Reference for EventMatchedReference; nil means the citation
	// could not be matched.
	Reference *citation.Reference

	// Content for EventContent.
	Content string

	// ToolName and ToolInput for EventToolUse.
	ToolName  string
	ToolInput json.RawMessage

	// Err for EventError.
	Err string
}

// EmitFunc receives stream events in order.
type EmitFunc func(Event)

// MarshalJSON renders the wire shape for the event's kind.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventMatchedReference:
		return json.Marshal(struct {
			MatchedReference *citation.Reference `json:"matchedReference"`
		}{e.Reference})
	case EventContent:
		return json.Marshal(struct {
			Content string `json:"content"`
		}{e.Content})
	case EventToolUse:
		input := e.ToolInput
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return json.Marshal(struct {
			ToolUse struct {
				Name  string          `json:"name"`
				Input json.RawMessage `json:"input"`
			} `json:"toolUse"`
		}{struct {
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{e.ToolName, input}})
	case EventDone:
		return json.Marshal(struct {
			Done bool `json:"done"`
		}{true})
	case EventError:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{e.Err})
	}
	return nil, fmt.Errorf("unknown event kind: %q", e.Kind)
}

func matchedReferenceEvent(ref *citation.Reference) Event {
	return Event{Kind: EventMatchedReference, Reference: ref}
}

func contentEvent(text string) Event {
	return Event{Kind: EventContent, Content: text}
}

func toolUseEvent(name string, input json.RawMessage) Event {
	return Event{Kind: EventToolUse, ToolName: name, ToolInput: input}
}

func doneEvent() Event {
	return Event{Kind: EventDone}
}

func errorEvent(message string) Event {
	return Event{Kind: EventError, Err: message}
}
