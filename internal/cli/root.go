package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/clinsum/internal/llm"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile   string
	verbose   bool
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clinsum",
	Short: "clinsum - structured summaries of clinical notes",
	Long: `clinsum turns an unstructured clinical note into a structured summary:
SOAP sections, ICD-10 and CPT codes, NLP insights, a suggested diagnosis
and an emergency flag.

The summary is produced by one call to a language model backend. It is a
drafting aid, not a diagnosis: every field needs clinician review.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number for clinsum.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clinsum %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.clinsum/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("provider", "", "LLM provider (gemini, openai, anthropic, ollama)")
	flags.String("model", "", "LLM model name")
	flags.String("base-url", "", "custom backend base URL")
	flags.String("api-key-env", "", "environment variable holding the API key")
	flags.Int("timeout", 0, "backend request timeout in seconds (0 = none)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"llm.provider":        "provider",
		"llm.model":           "model",
		"llm.base_url":        "base-url",
		"llm.api_key_env":     "api-key-env",
		"llm.timeout_seconds": "timeout",
		"log.level":           "log-level",
		"log.format":          "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	configErr = configureViper(viper.GetViper(), cfgFile)
	if configErr == nil && verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults, env overrides and the config file on v.
// A missing default config file is fine; a missing explicit one is not.
func configureViper(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".clinsum"))
		}
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	// Read in environment variables that match CLINSUM_*
	v.SetEnvPrefix("CLINSUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// setDefaults registers every config key so env vars can override it
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for key, val := range node {
			if child, ok := val.(map[string]interface{}); ok {
				walk(prefix+key+".", child)
				continue
			}
			v.SetDefault(prefix+key, val)
		}
	}
	walk("", tree)

	// omitempty keys are absent from the marshaled defaults
	for _, key := range []string{"llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy"} {
		v.SetDefault(key, "")
	}
	return nil
}

// loadConfig builds the effective configuration and initializes logging
func loadConfig() (*model.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds the summarization client for cfg
func newClient(cfg *model.Config) *llm.Client {
	keyEnv := cfg.LLM.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "API_KEY"
	}
	return llm.NewClient(llm.ConfigFromModel(cfg.LLM), keyEnv)
}
