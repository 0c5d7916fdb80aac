package extraction

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// LLMConfig configures the completion-service client.
type LLMConfig struct {
	// BaseURL of an OpenAI-compatible completion API.
	BaseURL string

	// Model name, e.g. "gpt-4o-mini".
	Model string

	// APIKey for authentication.
	APIKey string
}

// Validate checks the configuration.
func (c LLMConfig) Validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.APIKey == "" {
		return errors.New("api key is required")
	}
	return nil
}

// NewLLM creates the langchaingo completion client used by the Extractor.
func NewLLM(cfg LLMConfig) (*openai.LLM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return llm, nil
}
