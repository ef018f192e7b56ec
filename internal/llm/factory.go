package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Backend names one model endpoint.
type Backend struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
}

// New builds a Completer for b.
func New(b Backend) (Completer, error) {
	switch b.Provider {
	case config.ProviderOpenAI:
		// OpenAI-compatible endpoints (Cerebras, vLLM, TEI) accept a
		// placeholder token when unauthenticated.
		token := b.APIKey
		if token == "" {
			token = "placeholder"
		}
		opts := []openai.Option{openai.WithToken(token), openai.WithModel(b.Model)}
		if b.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(b.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		return NewLangChain(client, "openai"), nil
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(b.Model)}
		if b.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(b.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		return NewLangChain(client, "ollama"), nil
	case config.ProviderAnthropic:
		if b.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		return NewAnthropicFromKey(b.APIKey, b.BaseURL, b.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", b.Provider)
	}
}

// FromConfig returns the fast completer (translation, extraction) and
// the analysis completer (categorization, summaries).
func FromConfig(cfg config.LLMConfig) (fast, analysis Completer, err error) {
	fast, err = New(Backend{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey.Value(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("llm: %w", err)
	}
	analysis, err = New(Backend{
		Provider: cfg.AnalysisProvider,
		BaseURL:  cfg.AnalysisBaseURL,
		Model:    cfg.AnalysisModel,
		APIKey:   cfg.AnalysisAPIKey.Value(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("llm analysis: %w", err)
	}
	d := cfg.Timeout.Duration()
	return WithTimeout(fast, d), WithTimeout(analysis, d), nil
}

// WithTimeout bounds every call on c by d. d <= 0 returns c unchanged.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, system, user string, opts ...Option) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Complete(ctx, system, user, opts...)
	})
}
