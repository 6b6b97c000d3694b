// Package main provides the lectern CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/lectern/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider  string
	verbose   bool
	mcpConfig string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "lectern",
		Short: "Research chat over academic papers",
		Long: `Chat with a language model about an academic paper, with citation
resolution against the paper's bibliography and live paper search
through an MCP server.

Set PAPERS_SERVER_CMD to the paper-search server command to enable the
search tools, e.g. "uv run paper-search-server", or point --mcp-config
at an MCP configuration file with a "papers" server entry.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show tool calls as they happen")
	rootCmd.PersistentFlags().StringVar(&mcpConfig, "mcp-config", "", "MCP configuration file with a \"papers\" server entry (overrides PAPERS_SERVER_CMD)")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	var docPath string
	var conversationID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive research chat session",
		Long: `Start an interactive chat session over a document.

Messages prefixed with "cite <marker>: <request>" are grounded in the
document's bibliography, e.g.:

  cite [1]: summarize this paper
  cite Smith (2023): how does this relate to the current section?`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Verbose: verbose, MCPConfig: mcpConfig}
			return cli.Chat(context.Background(), docPath, conversationID, dbPath, opts)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Path to the document under discussion")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID for history persistence")
	cmd.Flags().StringVar(&dbPath, "db", ".lectern/lectern.db", "Database path for chat history")

	return cmd
}

func askCmd() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Verbose: verbose, MCPConfig: mcpConfig}
			return cli.Ask(context.Background(), args[0], docPath, opts)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Path to the document under discussion")

	return cmd
}
