package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/metrics"
	"github.com/ppiankov/clinsum/internal/model"
	"github.com/sirupsen/logrus"
)

const (
	failurePrefix  = "Failed to process the clinical note. Reason: "
	unknownFailure = "An unknown error occurred while processing the clinical note."
)

// ErrorKind classifies a summarization failure
type ErrorKind string

const (
	KindCredential ErrorKind = "credential" // API key missing, raised before any network call
	KindConfig     ErrorKind = "config"     // Provider could not be constructed
	KindService    ErrorKind = "service"    // Transport or backend failure
	KindParse      ErrorKind = "parse"      // Response was not a ClinicalSummary JSON document
	KindUnknown    ErrorKind = "unknown"
)

// SummarizationError is the only error type Client.Summarize returns.
// Error() is the human-readable message shown to the user.
type SummarizationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SummarizationError) Error() string {
	return e.Message
}

func (e *SummarizationError) Unwrap() error {
	return e.Err
}

func newSummarizationError(kind ErrorKind, cause error) *SummarizationError {
	if cause == nil {
		return &SummarizationError{Kind: KindUnknown, Message: unknownFailure}
	}
	return &SummarizationError{
		Kind:    kind,
		Message: failurePrefix + cause.Error(),
		Err:     cause,
	}
}

// Client turns a clinical note into a model.ClinicalSummary with one backend call
type Client struct {
	config      Config
	keyEnv      string
	lookupEnv   func(string) (string, bool)
	newProvider func(Config) (Provider, error)
}

// NewClient creates a client. The credential is read from keyEnv on every
// Summarize call, never cached.
func NewClient(config Config, keyEnv string) *Client {
	return &Client{
		config:      config,
		keyEnv:      keyEnv,
		lookupEnv:   os.LookupEnv,
		newProvider: NewProvider,
	}
}

// ProviderName returns the configured backend name
func (c *Client) ProviderName() string {
	return strings.ToLower(c.config.Provider)
}

// Endpoint returns the base URL the configured backend talks to
func (c *Client) Endpoint() string {
	return EndpointFor(c.config)
}

// Provider builds the configured backend with the current credential.
// It is used for availability probes; Summarize builds its own.
func (c *Client) Provider() (Provider, error) {
	cfg, err := c.resolve()
	if err != nil {
		return nil, err
	}
	p, err := c.newProvider(cfg)
	if err != nil {
		return nil, newSummarizationError(KindConfig, err)
	}
	if p == nil {
		return nil, newSummarizationError(KindConfig, errors.New("no LLM provider configured"))
	}
	return p, nil
}

func (c *Client) resolve() (Config, error) {
	cfg := c.config
	if !requiresKey(cfg.Provider) {
		return cfg, nil
	}

	key, _ := c.lookupEnv(c.keyEnv)
	key = strings.TrimSpace(key)
	if key == "" {
		return cfg, newSummarizationError(KindCredential, fmt.Errorf("%s environment variable not set", c.keyEnv))
	}
	cfg.APIKey = key
	return cfg, nil
}

// Summarize sends the note to the backend and decodes the result verbatim.
// The caller is responsible for rejecting empty notes.
func (c *Client) Summarize(ctx context.Context, note string) (summary *model.ClinicalSummary, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		var se *SummarizationError
		if errors.As(err, &se) {
			outcome = string(se.Kind)
		}
		metrics.Default.ObserveSummarization(c.ProviderName(), outcome, time.Since(start))
	}()

	p, err := c.Provider()
	if err != nil {
		return nil, err
	}

	resp, err := p.Generate(ctx, GenerateRequest{
		SystemInstruction: SystemInstruction,
		Content:           note,
		Schema:            SummarySchema(),
		SchemaName:        SummarySchemaName,
	})
	if err != nil {
		logger.WithFields(logrus.Fields{
			"provider": p.Name(),
		}).WithError(err).Error("Error summarizing clinical note")
		return nil, newSummarizationError(KindService, err)
	}
	if resp == nil {
		return nil, newSummarizationError(KindService, fmt.Errorf("empty response from %s", p.Name()))
	}

	summary, err = decodeSummary(resp.Text)
	if err != nil {
		logger.WithField("provider", p.Name()).WithError(err).Error("Error decoding clinical summary")
		return nil, newSummarizationError(KindParse, err)
	}

	if !summary.Consistent() {
		logger.WithFields(logrus.Fields{
			"provider":     p.Name(),
			"is_emergency": summary.IsEmergency,
		}).Warn("Emergency flag and reason disagree; passing summary through unchanged")
	}

	logger.WithFields(logrus.Fields{
		"provider":    p.Name(),
		"model":       resp.Model,
		"tokens_used": resp.TokensUsed,
	}).Debug("Clinical note summarized")

	return summary, nil
}

func decodeSummary(text string) (*model.ClinicalSummary, error) {
	var summary *model.ClinicalSummary
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &summary); err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, errors.New("response contained no summary object")
	}
	return summary, nil
}

func requiresKey(provider string) bool {
	return strings.ToLower(provider) != "ollama"
}
