// DeepSeek Provider - OpenAI-compatible API with a different base URL.
//
// Supports deepseek-chat and deepseek-reasoner models. Tool calling and
// streaming go through the shared OpenAI-compatible implementation.

package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewOpenAICompatibleProvider("deepseek", deepseekBaseURL, apiKey, model, maxTokens, temperature)
}
