package llm

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// MessagesClient is the subset of the Anthropic SDK used here. It is
// satisfied by *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic is a Completer over the Claude Messages API.
type Anthropic struct {
	msg   MessagesClient
	model string
}

// NewAnthropic wraps an existing messages client.
func NewAnthropic(msg MessagesClient, model string) *Anthropic {
	return &Anthropic{msg: msg, model: model}
}

// NewAnthropicFromKey builds a client without SDK-level retries.
func NewAnthropicFromKey(apiKey, baseURL, model string) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	ac := sdk.NewClient(opts...)
	return NewAnthropic(&ac.Messages, model)
}

// Complete implements Completer. Text blocks of the reply are joined.
func (a *Anthropic) Complete(ctx context.Context, system, user string, opts ...Option) (string, error) {
	o := applyOptions(opts)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(o.MaxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if o.Temperature > 0 {
		params.Temperature = sdk.Float(o.Temperature)
	}

	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("anthropic messages.new: %w", ErrEmptyResponse)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("anthropic messages.new: %w", ErrEmptyResponse)
	}
	return text, nil
}
