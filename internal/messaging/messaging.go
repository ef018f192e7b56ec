// Package messaging delivers WhatsApp messages through Twilio and
// verifies inbound webhook signatures.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	twilio "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// ErrNoDeliveryID is returned when the provider accepted a message
// without reporting its identifier.
var ErrNoDeliveryID = errors.New("provider returned no message sid")

// Sender delivers a text message and returns the provider's delivery id.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) (string, error)
}

// MessagesAPI is the subset of the Twilio REST client used for delivery.
type MessagesAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Twilio sends WhatsApp messages from a fixed sender number.
type Twilio struct {
	api    MessagesAPI
	from   string
	logger *logging.Logger
}

var _ Sender = (*Twilio)(nil)

// NewTwilio returns a Sender over api.
func NewTwilio(api MessagesAPI, from string, logger *logging.Logger) *Twilio {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Twilio{api: api, from: from, logger: logger}
}

// NewTwilioFromCredentials builds the REST client from account credentials.
// The client performs no retries of its own.
func NewTwilioFromCredentials(accountSID, authToken, from string, logger *logging.Logger) *Twilio {
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewTwilio(rc.Api, from, logger)
}

// SendMessage delivers body to the WhatsApp address to.
func (t *Twilio) SendMessage(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", supply.NewError("messaging.send", supply.ErrDelivery, err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return "", supply.NewError("messaging.send", supply.ErrDelivery, fmt.Errorf("twilio create message: %w", err))
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return "", supply.NewError("messaging.send", supply.ErrDelivery, ErrNoDeliveryID)
	}

	t.logger.Debug(ctx, "message delivered", zap.String("delivery_id", *resp.Sid), logging.Phone("to", to), zap.Int("length", len(body)))
	return *resp.Sid, nil
}

// Disabled is a Sender used when delivery is not configured. Every call
// fails with supply.ErrDelivery.
type Disabled struct{}

func (Disabled) SendMessage(context.Context, string, string) (string, error) {
	return "", supply.NewError("messaging.send", supply.ErrDelivery, errors.New("delivery not configured"))
}

// Outbox records messages in memory. It is used by tests and by local runs
// without provider credentials.
type Outbox struct {
	mu   sync.Mutex
	sent []Sent
	seq  int
	// Err, when set, fails every send.
	Err error
}

// Sent is one recorded message.
type Sent struct {
	DeliveryID string
	To         string
	Body       string
}

func (o *Outbox) SendMessage(_ context.Context, to, body string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return "", supply.NewError("messaging.send", supply.ErrDelivery, o.Err)
	}
	o.seq++
	id := fmt.Sprintf("SM%032d", o.seq)
	o.sent = append(o.sent, Sent{DeliveryID: id, To: to, Body: body})
	return id, nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}

// Validator checks the X-Twilio-Signature of an inbound webhook.
type Validator interface {
	Validate(url string, params map[string]string, signature string) bool
}

// NewValidator returns a Validator for the account auth token.
func NewValidator(authToken string) Validator {
	rv := twclient.NewRequestValidator(authToken)
	return &rv
}
