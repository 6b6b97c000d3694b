// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/lectern/llm"
	"github.com/richinex/lectern/papers"
	"github.com/richinex/lectern/window"
)

// Settings holds all application configuration.
type Settings struct {
	LLM    LLMConfig
	Chat   ChatConfig
	Window window.Config
	Papers PapersConfig
}

// LLMConfig holds completion provider configuration.
type LLMConfig struct {
	Provider    llm.ProviderType
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// ChatConfig holds engine execution configuration.
type ChatConfig struct {
	MaxIterations int
}

// PapersConfig holds paper-search gateway configuration.
type PapersConfig struct {
	// ServerCommand launches the MCP paper-search server,
	// e.g. "uv run paper-search-server".
	ServerCommand string

	FailureThreshold int
	ResetTimeout     time.Duration
}

// New creates settings for the specified provider, loading values from
// environment variables. Returns an error if the provider is unknown
// or an environment variable holds an invalid value.
func New(provider string) (Settings, error) {
	providerType, err := llm.ParseProviderType(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getEnvInt("CHAT_MAX_ITERATIONS", 5)
	if err != nil {
		return Settings{}, err
	}

	keepPairs, err := getEnvInt("WINDOW_KEEP_PAIRS", 5)
	if err != nil {
		return Settings{}, err
	}

	tokenThreshold, err := getEnvInt("WINDOW_TOKEN_THRESHOLD", 30000)
	if err != nil {
		return Settings{}, err
	}

	summaryMaxTokens, err := getEnvInt("WINDOW_SUMMARY_MAX_TOKENS", 500)
	if err != nil {
		return Settings{}, err
	}

	failureThreshold, err := getEnvInt("PAPERS_FAILURE_THRESHOLD", papers.DefaultFailureThreshold)
	if err != nil {
		return Settings{}, err
	}

	resetSecs, err := getEnvInt("PAPERS_RESET_TIMEOUT_SECS", int(papers.DefaultResetTimeout.Seconds()))
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv(strings.ToUpper(providerType.String()) + "_MODEL")
	if model == "" {
		model = providerType.DefaultModel()
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    providerType,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Chat: ChatConfig{
			MaxIterations: maxIterations,
		},
		Window: window.Config{
			KeepRecentPairs:  keepPairs,
			TokenThreshold:   tokenThreshold,
			SummaryMaxTokens: summaryMaxTokens,
		},
		Papers: PapersConfig{
			ServerCommand:    os.Getenv("PAPERS_SERVER_CMD"),
			FailureThreshold: failureThreshold,
			ResetTimeout:     time.Duration(resetSecs) * time.Second,
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are
// invalid. Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
