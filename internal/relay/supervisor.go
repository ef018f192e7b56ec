package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SupervisorMessage is an inbound WhatsApp message from the supervisor.
type SupervisorMessage struct {
	From       string
	Body       string
	MessageSid string
}

// Reply kinds.
const (
	ReplyDuplicate = "duplicate"
	ReplyEmpty     = "empty"
	ReplyCommand   = "command"
	ReplyFreeText  = "free_text"
)

// SupervisorResult describes how a supervisor message was handled.
type SupervisorResult struct {
	Kind string
	// Response is the text to answer the supervisor with, set for
	// approval commands.
	Response string
	// Reply is the stored free-text reply.
	Reply *supply.SupervisorReply
}

// HandleSupervisorReply routes one supervisor message. Approval commands
// are applied by the state machine; anything else is treated as a reply
// to the worker message it answers.
func (r *Relay) HandleSupervisorReply(ctx context.Context, in SupervisorMessage) (SupervisorResult, error) {
	ctx, span := r.tracer.Start(ctx, "relay.supervisor_reply")
	defer span.End()

	res, err := r.handleSupervisorReply(ctx, in)
	r.metrics.SupervisorRepliesTotal.WithLabelValues(res.Kind).Inc()
	span.SetAttributes(attribute.String("reply.kind", res.Kind))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Relay) handleSupervisorReply(ctx context.Context, in SupervisorMessage) (SupervisorResult, error) {
	claimed := false
	if r.deduper != nil {
		first, err := r.deduper.Claim(ctx, in.MessageSid)
		switch {
		case err != nil:
			r.logger.Warn(ctx, "dedupe unavailable; processing anyway",
				zap.String("message_sid", in.MessageSid), zap.Error(err))
		case !first:
			r.logger.Info(ctx, "duplicate webhook delivery ignored", zap.String("message_sid", in.MessageSid), logging.Phone("from", in.From))
			return SupervisorResult{Kind: ReplyDuplicate}, nil
		default:
			claimed = true
		}
	}

	res, err := r.routeSupervisorReply(ctx, in)
	if err != nil && claimed {
		// A failed delivery gets a 5xx; Twilio's retry must be processed.
		if rerr := r.deduper.Release(context.WithoutCancel(ctx), in.MessageSid); rerr != nil {
			r.logger.Warn(ctx, "dedupe claim not released", zap.String("message_sid", in.MessageSid), zap.Error(rerr))
		}
	}
	return res, err
}

func (r *Relay) routeSupervisorReply(ctx context.Context, in SupervisorMessage) (SupervisorResult, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return SupervisorResult{Kind: ReplyEmpty}, nil
	}

	if r.commands != nil {
		cmd, err := r.commands.Handle(ctx, body)
		if err != nil {
			// The supervisor is told through cmd.Response.
			r.logger.Error(ctx, "approval command failed", zap.Error(err))
		}
		if cmd.Handled {
			return SupervisorResult{Kind: ReplyCommand, Response: cmd.Response}, nil
		}
	}

	res := SupervisorResult{Kind: ReplyFreeText}
	orig, err := r.correlate(ctx, in.MessageSid)
	if err != nil {
		return res, err
	}
	ctx = logging.WithMessageID(logging.WithWorkerID(ctx, orig.WorkerID), orig.ID)

	var spanish, summary string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spanish, err = r.translator.Translate(gctx, body, llm.English, llm.Spanish)
		return err
	})
	g.Go(func() error {
		summary = r.analyzer.SummarizeActions(gctx, body)
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logger.Error(ctx, "supervisor reply translation failed", zap.Error(err))
		return res, err
	}

	reply := &supply.SupervisorReply{
		MessageID:     orig.ID,
		EnglishRaw:    body,
		SpanishTrans:  spanish,
		ActionSummary: summary,
	}
	if err := r.store.CreateSupervisorReply(ctx, reply); err != nil {
		err = supply.NewError("relay.supervisor", supply.ErrPersistence, err)
		r.logger.Error(ctx, "supervisor reply not stored", zap.Error(err))
		return res, err
	}
	res.Reply = reply

	err = r.publisher.Publish(ctx, notify.ChannelKey(orig.WorkerID), notify.Event{
		Type: notify.EventSupervisorReply,
		Payload: notify.SupervisorReply{
			MessageID:     orig.ID,
			EnglishRaw:    body,
			SpanishTrans:  spanish,
			ActionSummary: summary,
		},
	})
	if err != nil {
		r.logger.Warn(ctx, "supervisor reply not published", zap.Error(err))
	} else {
		r.logger.Info(ctx, "supervisor reply delivered to worker")
	}
	return res, nil
}

// correlate finds the worker message a reply answers: the one delivered
// under sid, else the most recent.
func (r *Relay) correlate(ctx context.Context, sid string) (*supply.Message, error) {
	if sid != "" {
		m, err := r.store.FindMessageByDeliveryID(ctx, sid)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, supply.NewError("relay.correlate", supply.ErrPersistence, err)
		}
	}
	m, err := r.store.LatestMessage(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, supply.NewError("relay.correlate", supply.ErrPersistence, err)
	}
	return m, nil
}
