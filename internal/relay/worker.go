package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supplyagent"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// WorkerMessage is a transcribed message from a field worker.
type WorkerMessage struct {
	WorkerID   string `json:"workerId"`
	SpokenText string `json:"spokenText"`
	// IsSpanishMode is set when SpokenText is Spanish; otherwise it is
	// English and the Spanish variant is produced by translation.
	IsSpanishMode bool `json:"isSpanishMode"`
	// MessageID optionally fixes the stored message identifier. It must
	// be a UUID.
	MessageID string `json:"messageId,omitempty"`
}

// WorkerResult is returned to the worker client.
type WorkerResult struct {
	MessageID        string         `json:"messageId"`
	EnglishRaw       string         `json:"englishRaw"`
	EnglishFormatted string         `json:"englishFormatted"`
	Category         string         `json:"category"`
	Urgency          supply.Urgency `json:"urgency"`
	SupplyRequestID  *string        `json:"supplyRequestId,omitempty"`
	SupplyMessage    *string        `json:"supplyMessage,omitempty"`
	DeliveryID       *string        `json:"deliveryId,omitempty"`
}

// Validate checks the required fields.
func (m WorkerMessage) Validate() error {
	var errs []error
	if strings.TrimSpace(m.WorkerID) == "" {
		errs = append(errs, errors.New("workerId is required"))
	}
	if strings.TrimSpace(m.SpokenText) == "" {
		errs = append(errs, errors.New("spokenText is required"))
	}
	if m.MessageID != "" {
		if _, err := uuid.Parse(m.MessageID); err != nil {
			errs = append(errs, errors.New("messageId must be a UUID"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return supply.NewError("relay.worker", supply.ErrValidation, err)
	}
	return nil
}

// HandleWorkerMessage relays one worker message to the supervisor.
// Translation and persistence failures are returned; analysis, the
// supply agent and delivery degrade without failing the call.
func (r *Relay) HandleWorkerMessage(ctx context.Context, in WorkerMessage) (*WorkerResult, error) {
	ctx, span := r.tracer.Start(ctx, "relay.worker_message")
	defer span.End()

	res, err := r.handleWorkerMessage(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("message.category", res.Category),
		attribute.Bool("supply.request", res.SupplyRequestID != nil),
	)
	return res, nil
}

func (r *Relay) handleWorkerMessage(ctx context.Context, in WorkerMessage) (*WorkerResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx = logging.WithWorkerID(ctx, in.WorkerID)
	text := strings.TrimSpace(in.SpokenText)

	spanish, english := text, text
	var err error
	if in.IsSpanishMode {
		english, err = r.translator.Translate(ctx, text, llm.Spanish, llm.English)
	} else {
		spanish, err = r.translator.Translate(ctx, text, llm.English, llm.Spanish)
	}
	if err != nil {
		r.logger.Error(ctx, "worker message translation failed", zap.Error(err))
		return nil, err
	}

	analysis, err := r.analyzer.Analyze(ctx, spanish, english)
	if err != nil {
		r.logger.Warn(ctx, "analysis failed; using keyword fallback", zap.Error(err))
		analysis = FallbackAnalysis(spanish, english)
	}
	r.metrics.WorkerMessagesTotal.WithLabelValues(analysis.Category).Inc()

	msg := &supply.Message{
		ID:               in.MessageID,
		WorkerID:         in.WorkerID,
		SpanishRaw:       spanish,
		EnglishRaw:       english,
		EnglishFormatted: analysis.Formatted,
		Category:         analysis.Category,
		Urgency:          analysis.Urgency,
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		err = supply.NewError("relay.worker", supply.ErrPersistence, err)
		r.logger.Error(ctx, "worker message not stored", zap.Error(err))
		return nil, err
	}
	ctx = logging.WithMessageID(ctx, msg.ID)

	res := &WorkerResult{
		MessageID:        msg.ID,
		EnglishRaw:       english,
		EnglishFormatted: analysis.Formatted,
		Category:         analysis.Category,
		Urgency:          analysis.Urgency,
	}

	body := analysis.Formatted
	if r.pipeline != nil && analysis.Category == supply.CategoryMaterialNeed {
		if state := r.runPipeline(ctx, spanish, english, in.WorkerID, msg.ID); state.SupervisorMessage != "" {
			body = state.SupervisorMessage
			res.SupplyMessage = &state.SupervisorMessage
			res.SupplyRequestID = state.SupplyRequestID
		}
	}

	res.DeliveryID = r.deliver(ctx, msg.ID, body)
	return res, nil
}

func (r *Relay) runPipeline(ctx context.Context, spanish, english, workerID, messageID string) supplyagent.State {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.pipeline.Run(ctx, supplyagent.Input{
		SpanishText: spanish,
		EnglishText: english,
		WorkerID:    workerID,
		MessageID:   &messageID,
	})
}

// deliver sends body to the supervisor and records the delivery id on
// the message. Failures are logged; the message stays stored.
func (r *Relay) deliver(ctx context.Context, messageID, body string) *string {
	if r.supervisorTo == "" {
		r.metrics.DeliveriesTotal.WithLabelValues(DeliverySkipped).Inc()
		return nil
	}
	id, err := r.sender.SendMessage(ctx, r.supervisorTo, body)
	if err != nil {
		r.metrics.DeliveriesTotal.WithLabelValues(DeliveryFailed).Inc()
		r.logger.Error(ctx, "delivery to supervisor failed; message saved", logging.Phone("to", r.supervisorTo), zap.Error(err))
		return nil
	}
	r.metrics.DeliveriesTotal.WithLabelValues(DeliverySent).Inc()
	if err := r.store.AttachDeliveryID(ctx, messageID, id); err != nil {
		r.logger.Warn(ctx, "delivery id not recorded", zap.String("delivery_id", id), zap.Error(err))
	}
	return &id
}
