// Package llm adapts chat-completion backends to the small set of calls
// the relay needs: raw completion, translation, message analysis and
// action-item summaries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("model returned no content")

// Completer runs a single system + user exchange and returns the text
// of the first choice.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts ...Option) (string, error)
}

// Options are per-call sampling settings.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Option sets an Options field.
type Option func(*Options)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

func applyOptions(opts []Option) Options {
	o := Options{Temperature: 0.3, MaxTokens: 500}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Generator is the subset of llms.Model used by LangChain. It is
// satisfied by the langchaingo openai and ollama clients.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChain is a Completer over a langchaingo model.
type LangChain struct {
	gen  Generator
	name string
}

// NewLangChain wraps gen. name labels errors.
func NewLangChain(gen Generator, name string) *LangChain {
	return &LangChain{gen: gen, name: name}
}

// Complete implements Completer.
func (c *LangChain) Complete(ctx context.Context, system, user string, opts ...Option) (string, error) {
	o := applyOptions(opts)

	msgs := make([]llms.MessageContent, 0, 2)
	if system != "" {
		msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeHuman, user))

	resp, err := c.gen.GenerateContent(ctx, msgs,
		llms.WithTemperature(o.Temperature),
		llms.WithMaxTokens(o.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion: %w", c.name, ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("%s completion: %w", c.name, ErrEmptyResponse)
	}
	return text, nil
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, user string, opts ...Option) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string, opts ...Option) (string, error) {
	return f(ctx, system, user, opts...)
}
