package llm

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestAnthropic_Complete(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{Content: []sdk.ContentBlockUnion{
		{Type: "text", Text: "{\"category\": "},
		{Type: "text", Text: "\"safety\"}"},
	}}}
	c := NewAnthropic(stub, "claude-3-5-sonnet-20241022")

	out, err := c.Complete(context.Background(), "be brief", "analyze", WithMaxTokens(1000))
	require.NoError(t, err)
	assert.Equal(t, `{"category": "safety"}`, out)

	assert.Equal(t, sdk.Model("claude-3-5-sonnet-20241022"), stub.lastParams.Model)
	assert.Equal(t, int64(1000), stub.lastParams.MaxTokens)
	require.Len(t, stub.lastParams.System, 1)
	assert.Equal(t, "be brief", stub.lastParams.System[0].Text)
	require.Len(t, stub.lastParams.Messages, 1)
}

func TestAnthropic_Errors(t *testing.T) {
	_, err := NewAnthropic(&stubMessagesClient{err: errors.New("overloaded")}, "m").Complete(context.Background(), "", "x")
	assert.ErrorContains(t, err, "overloaded")

	_, err = NewAnthropic(&stubMessagesClient{resp: &sdk.Message{}}, "m").Complete(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = NewAnthropic(&stubMessagesClient{}, "m").Complete(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
