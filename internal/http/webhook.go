package http

import (
	"errors"
	"net/http"

	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/relay"
	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

// TwilioSignatureHeader carries the webhook signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// handleTwilioWebhook accepts an inbound WhatsApp message from the
// supervisor. Twilio expects TwiML back; approval commands are answered
// with a <Message> so the supervisor sees the outcome.
func (s *Server) handleTwilioWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := c.FormParams()
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid form")
	}

	if s.validator != nil {
		params := make(map[string]string, len(form))
		for k, v := range form {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !s.validator.Validate(s.config.PublicURL, params, c.Request().Header.Get(TwilioSignatureHeader)) {
			s.logger.Warn(ctx, "invalid twilio signature", zap.String("ip", c.RealIP()))
			return c.String(http.StatusForbidden, "Forbidden")
		}
	}

	in := relay.SupervisorMessage{
		From:       form.Get("From"),
		Body:       form.Get("Body"),
		MessageSid: form.Get("MessageSid"),
	}
	ctx = logging.WithMessageID(ctx, in.MessageSid)

	res, err := s.relay.HandleSupervisorReply(ctx, in)
	switch {
	case errors.Is(err, relay.ErrMessageNotFound):
		s.logger.Warn(ctx, "supervisor reply has no original message")
		return c.String(http.StatusNotFound, "Message not found")
	case err != nil:
		s.logger.Error(ctx, "supervisor reply failed", zap.Error(err))
		return c.String(http.StatusInternalServerError, "Error processing webhook")
	}

	var verbs []twiml.Element
	if res.Kind == relay.ReplyCommand && res.Response != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: res.Response})
	}
	body, err := twiml.Messages(verbs)
	if err != nil {
		s.logger.Error(ctx, "twiml encoding failed", zap.Error(err))
		return c.String(http.StatusInternalServerError, "Error processing webhook")
	}
	return c.Blob(http.StatusOK, "text/xml", []byte(body))
}
