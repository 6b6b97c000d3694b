// Package papers exposes the paper-search service as a tool surface.
//
// The Gateway wraps an MCP server behind a circuit breaker. Every
// failure mode degrades to an advisory text result; callers never see
// a hard error from this package.
//
// Information Hiding:
// - Connection lifecycle hidden (lazy connect, discard on failure)
// - Breaker bookkeeping hidden
// - MCP result format hidden

package papers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/richinex/lectern/llm"
	"github.com/richinex/lectern/mcp"
)

// Tool names exposed to the completion provider.
const (
	SearchToolName  = "search_papers"
	DetailsToolName = "get_paper_details"
)

// Advisory texts returned instead of errors. The prefixes are stable
// so callers can distinguish advisories from service data.
const (
	searchErrorPrefix = "Error searching for papers."
	unavailablePrefix = "The paper search service is temporarily unavailable."

	searchErrorText = searchErrorPrefix + " The search service may be temporarily unavailable. Please try searching manually."
)

// IsAdvisory reports whether a tool result is one of the gateway's
// failure advisories rather than data from the service.
func IsAdvisory(result string) bool {
	return strings.HasPrefix(result, searchErrorPrefix) ||
		strings.HasPrefix(result, unavailablePrefix)
}

// Transport performs tool calls against the paper-search service.
// *mcp.Client is the production implementation.
type Transport interface {
	CallTool(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error)
	Close() error
}

var _ Transport = (*mcp.Client)(nil)

// Connector establishes a new transport. Called lazily on first use
// and again after any failure discards the cached transport.
type Connector func(ctx context.Context) (Transport, error)

// CommandConnector returns a Connector that starts the given MCP
// server command, e.g. "uv run paper-search-server".
func CommandConnector(serverCommand string) Connector {
	return func(ctx context.Context) (Transport, error) {
		command, args, err := mcp.ParseCommand(serverCommand)
		if err != nil {
			return nil, err
		}
		return mcp.NewClient(ctx, command, args...)
	}
}

// ServerConnector returns a Connector that starts a server entry from
// an MCP configuration file, including its extra environment.
func ServerConnector(server mcp.ServerConfig) Connector {
	return func(ctx context.Context) (Transport, error) {
		return mcp.NewServerClient(ctx, server)
	}
}

// Gateway is the circuit-breaker-wrapped client to the paper-search
// service. Construct one at process start and share it.
type Gateway struct {
	connect Connector
	breaker *Breaker

	mu     sync.Mutex
	client Transport
}

// NewGateway creates a gateway using the given connector and breaker.
// A nil breaker gets the defaults.
func NewGateway(connect Connector, breaker *Breaker) *Gateway {
	if breaker == nil {
		breaker = NewBreaker(DefaultFailureThreshold, DefaultResetTimeout)
	}
	return &Gateway{connect: connect, breaker: breaker}
}

// Definitions returns the tool definitions to advertise to the
// completion provider.
func (g *Gateway) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        SearchToolName,
			Description: "Search for academic papers by topic, title, or author. Returns a list of matching papers with titles, authors, years, and abstracts.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query, e.g. a topic, paper title, or author name",
					},
					"limit": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of results to return",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        DetailsToolName,
			Description: "Fetch full details for a single paper by its identifier.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paper_id": map[string]interface{}{
						"type":        "string",
						"description": "Paper identifier from a previous search result",
					},
				},
				"required": []string{"paper_id"},
			},
		},
	}
}

// Breaker exposes the gateway's breaker for observation.
func (g *Gateway) Breaker() *Breaker {
	return g.breaker
}

// CallTool invokes a tool on the paper-search service. It never
// returns an error: rejected or failed calls yield advisory text the
// conversation can surface.
func (g *Gateway) CallTool(ctx context.Context, name string, arguments json.RawMessage) string {
	if !g.breaker.ShouldAllow() {
		return unavailableText(g.breaker.RetryAfter())
	}

	client, err := g.transport(ctx)
	if err != nil {
		g.breaker.RecordFailure()
		return searchErrorText
	}

	result, err := client.CallTool(ctx, name, arguments)
	if err != nil {
		g.breaker.RecordFailure()
		g.discard()
		return searchErrorText
	}

	g.breaker.RecordSuccess()
	return renderResult(result)
}

// Close releases the cached transport, if any.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		err := g.client.Close()
		g.client = nil
		return err
	}
	return nil
}

// transport returns the cached transport, connecting lazily.
func (g *Gateway) transport(ctx context.Context) (Transport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	client, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// discard drops the cached transport so the next call reconnects.
func (g *Gateway) discard() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
}

// unavailableText is the advisory returned while the breaker rejects
// calls.
func unavailableText(retryAfter time.Duration) string {
	minutes := int(retryAfter.Minutes())
	if retryAfter > time.Duration(minutes)*time.Minute {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%s Please try again in about %d minute(s), or search manually.", unavailablePrefix, minutes)
}

// mcpToolResult is the MCP tools/call result shape.
type mcpToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// renderResult flattens an MCP tool result into plain text.
func renderResult(raw json.RawMessage) string {
	var result mcpToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return string(raw)
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return string(raw)
	}
	return strings.Join(parts, "\n")
}
