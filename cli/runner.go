// Command execution for CLI commands.
//
// Information Hiding:
// - Engine setup hidden
// - Document loading and reference parsing hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/richinex/lectern/chat"
	"github.com/richinex/lectern/citation"
	"github.com/richinex/lectern/config"
	"github.com/richinex/lectern/mcp"
	"github.com/richinex/lectern/papers"
	"github.com/richinex/lectern/storage"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Verbose  bool

	// MCPConfig is an optional MCP configuration file path. When set,
	// the paper-search server is taken from its "papers" entry instead
	// of PAPERS_SERVER_CMD.
	MCPConfig string
}

// papersServerName is the entry the gateway looks up in an MCP
// configuration file.
const papersServerName = "papers"

// session bundles a configured engine with its document references.
type session struct {
	engine     *chat.Engine
	gateway    *papers.Gateway
	references []citation.Reference
	close      func()
}

// newSession builds the engine from settings, the document, and the
// chosen history backend.
func newSession(docPath, dbPath string, opts Options) (*session, error) {
	providerName := opts.Provider
	if providerName == "" {
		providerName = os.Getenv("LLM_PROVIDER")
	}
	if providerName == "" {
		providerName = "anthropic"
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, err
	}

	provider, err := settings.LLM.Provider.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
	if err != nil {
		return nil, err
	}

	connector, err := resolveConnector(settings.Papers.ServerCommand, opts.MCPConfig)
	if err != nil {
		return nil, err
	}

	gateway := papers.NewGateway(
		connector,
		papers.NewBreaker(settings.Papers.FailureThreshold, settings.Papers.ResetTimeout),
	)

	var history storage.History
	closeFn := func() { gateway.Close() }
	if dbPath != "" {
		sqlite, err := storage.OpenSqlite(dbPath)
		if err != nil {
			gateway.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		history = sqlite
		closeFn = func() {
			gateway.Close()
			sqlite.Close()
		}
	} else {
		history = storage.NewInMemoryHistory()
	}

	var references []citation.Reference
	if docPath != "" {
		data, err := os.ReadFile(docPath)
		if err != nil {
			closeFn()
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		references = citation.ParseDocument(string(data))
	}

	engine := chat.NewEngine(provider, gateway, history, chat.Config{
		MaxIterations: settings.Chat.MaxIterations,
		Window:        settings.Window,
	})

	return &session{
		engine:     engine,
		gateway:    gateway,
		references: references,
		close:      closeFn,
	}, nil
}

// resolveConnector picks the paper-search server source: the named
// entry in an MCP configuration file when one is given, otherwise the
// PAPERS_SERVER_CMD command line.
func resolveConnector(serverCommand, mcpConfigPath string) (papers.Connector, error) {
	if mcpConfigPath == "" {
		return papers.CommandConnector(serverCommand), nil
	}

	mcpConfig, err := mcp.LoadConfig(mcpConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load MCP config: %w", err)
	}
	server, ok := mcpConfig.Server(papersServerName)
	if !ok {
		return nil, fmt.Errorf("no %q server in %s", papersServerName, mcpConfigPath)
	}
	return papers.ServerConnector(server), nil
}

// emitter renders stream events to stdout.
func emitter(verbose bool) chat.EmitFunc {
	return func(event chat.Event) {
		switch event.Kind {
		case chat.EventMatchedReference:
			if event.Reference != nil {
				fmt.Printf("[matched: %s]\n\n", event.Reference.RawText)
			} else {
				fmt.Print("[citation not found in bibliography]\n\n")
			}
		case chat.EventContent:
			fmt.Print(event.Content)
		case chat.EventToolUse:
			if verbose {
				fmt.Printf("\n[tool: %s %s]\n", event.ToolName, string(event.ToolInput))
			}
		case chat.EventDone:
			fmt.Println()
		case chat.EventError:
			fmt.Fprintf(os.Stderr, "\nError: %s\n", event.Err)
		}
	}
}

// Ask runs a single question against a document and prints the answer.
func Ask(ctx context.Context, question, docPath string, opts Options) error {
	s, err := newSession(docPath, "", opts)
	if err != nil {
		return err
	}
	defer s.close()

	_, err = s.engine.Stream(ctx, chat.Request{
		ConversationID: uuid.NewString(),
		Text:           question,
		References:     s.references,
	}, emitter(opts.Verbose))
	return err
}

// Chat starts an interactive research chat session over a document.
// Prefix a message with "cite <marker>: <request>" to ground it in a
// bibliography entry, e.g. "cite [1]: summarize this paper".
func Chat(ctx context.Context, docPath, conversationID, dbPath string, opts Options) error {
	s, err := newSession(docPath, dbPath, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	if docPath != "" {
		fmt.Printf("Loaded %s (%d references)\n", docPath, len(s.references))
	}
	fmt.Println("Research chat. Type 'exit' to quit, 'cite <marker>: <request>' to ground a question in a citation.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		citationMarker, text := parseCiteCommand(input)
		request := chat.Request{
			ConversationID: conversationID,
			Text:           text,
			Citation:       citationMarker,
			References:     s.references,
		}

		if _, err := s.engine.Stream(ctx, request, emitter(opts.Verbose)); err != nil && opts.Verbose {
			fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		}
		fmt.Println()
	}

	return scanner.Err()
}

// parseCiteCommand splits "cite <marker>: <request>" into its citation
// marker and request text. Any other input is a plain request.
func parseCiteCommand(input string) (citationMarker, text string) {
	rest, ok := strings.CutPrefix(input, "cite ")
	if !ok {
		return "", input
	}
	marker, request, found := strings.Cut(rest, ":")
	if !found {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(marker), strings.TrimSpace(request)
}
