package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/ppiankov/clinsum/internal/model"
	"github.com/ppiankov/clinsum/internal/util"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Provider defines the interface for structured-output LLM backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends one request and returns the raw response text.
	// Implementations never retry.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest is a single structured-extraction call
type GenerateRequest struct {
	// SystemInstruction describes the extraction task
	SystemInstruction string

	// Content is the text to analyze (the raw clinical note)
	Content string

	// Schema is the output shape the backend must conform to.
	// Each provider translates it to its own structured-output mechanism.
	Schema *jsonschema.Definition

	// SchemaName identifies the schema where the backend wants a name
	SchemaName string

	// Model overrides Config.Model when set
	Model string

	// MaxTokens overrides Config.MaxTokens when set
	MaxTokens int
}

// GenerateResponse is the backend's answer
type GenerateResponse struct {
	// Text is the JSON document produced by the model (untrimmed)
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption when the backend reports it
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey is resolved by the Client on every call; providers only see it here
	APIKey string

	// BaseURL for custom endpoints (tests, proxies, self-hosted Ollama)
	BaseURL string

	// Timeout for API requests in seconds; 0 leaves it to the transport
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const defaultMaxTokens = 8192

// ConfigFromModel converts model.LLMConfig to llm.Config (without the key)
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxTokens:  c.MaxTokens,
		HTTPProxy:  c.HTTPProxy,
		HTTPSProxy: c.HTTPSProxy,
		NoProxy:    c.NoProxy,
	}
}

// httpClient builds the outbound client shared by the REST providers
func (c Config) httpClient() *http.Client {
	return &http.Client{
		Timeout: time.Duration(c.Timeout) * time.Second,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(c.HTTPProxy, c.HTTPSProxy, c.NoProxy),
		},
	}
}

func (c Config) pickModel(override, fallback string) string {
	if override != "" {
		return override
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) pickMaxTokens(override int) int {
	if override > 0 {
		return override
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return defaultMaxTokens
}
