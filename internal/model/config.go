package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete clinsum configuration.
// Precedence: CLI flags > CLINSUM_* env vars > config file > DefaultConfig.
type Config struct {
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects and tunes the summarization backend
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider" validate:"required,oneof=gemini openai anthropic claude ollama"`
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"` // Env var holding the credential, read on every call
	Timeout   int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"gte=0"` // 0 = no client-side timeout
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`

	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ServerConfig controls the web front-end
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	ProbeTTL        time.Duration `yaml:"probe_ttl" mapstructure:"probe_ttl"` // How long /readyz reuses a provider check
	RefreshSeconds  int           `yaml:"refresh_seconds" mapstructure:"refresh_seconds" validate:"gte=1"`
}

// ExportConfig controls PDF export
type ExportConfig struct {
	Scale    float64 `yaml:"scale" mapstructure:"scale" validate:"gt=0,lte=4"`
	Filename string  `yaml:"filename" mapstructure:"filename" validate:"required"`
}

// BatchConfig controls directory processing
type BatchConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=0"`
	WritePDF          bool    `yaml:"write_pdf" mapstructure:"write_pdf"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "gemini",
			Model:     "", // each provider has its own default model
			APIKeyEnv: "API_KEY",
			Timeout:   0,
			MaxTokens: 8192,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ProbeTTL:        time.Minute,
			RefreshSeconds:  2,
		},
		Export: ExportConfig{
			Scale:    2,
			Filename: "clinical-summary.pdf",
		},
		Batch: BatchConfig{
			Workers:           4,
			RequestsPerSecond: 1,
			BurstSize:         2,
			WritePDF:          false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var validate = validator.New()

// Validate checks the configuration for values the rest of the program cannot work with
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
