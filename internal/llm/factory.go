package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "gemini", "google":
		return NewGeminiProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai, anthropic, ollama)", config.Provider)
	}
}

// EndpointFor returns the base URL a provider config resolves to.
// Batch rate limiting is keyed on its host.
func EndpointFor(config Config) string {
	if config.BaseURL != "" {
		return strings.TrimSuffix(config.BaseURL, "/")
	}

	switch strings.ToLower(config.Provider) {
	case "gemini", "google":
		return defaultGeminiBaseURL
	case "openai":
		return "https://api.openai.com/v1"
	case "anthropic", "claude":
		return defaultAnthropicBaseURL
	case "ollama":
		return defaultOllamaBaseURL
	default:
		return ""
	}
}
