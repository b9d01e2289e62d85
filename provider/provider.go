package provider

import (
	"context"
	"errors"

	"github.com/rutvikswami/Intellidocs/config"
	openai_provider "github.com/rutvikswami/Intellidocs/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// ErrUnavailable marks transport-level failures talking to the hosted API so
// callers can distinguish them from bad input. Implementations wrap it around
// their request errors.
var ErrUnavailable = openai_provider.ErrUnavailable

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Completion sends a system/user prompt pair and returns the generated text.
	Completion(ctx context.Context, system, user string) (string, error)
	// CreateEmbedding returns one vector per input text, in input order.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
