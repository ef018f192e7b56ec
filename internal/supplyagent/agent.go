package supplyagent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/jthomaschappell/echolingo-resurgence/internal/supplyagent"

// Agent runs the supply pipeline. It is safe for concurrent use; every
// Run owns its State.
type Agent struct {
	extractor *Extractor
	history   *HistoryLookup
	formatter *Formatter

	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) { a.tracer = t }
}

// New builds an Agent extracting with c, reading history from orders and
// persisting into requests.
func New(c llm.Completer, orders store.SupplyOrders, requests store.SupplyRequests, opts ...Option) *Agent {
	a := &Agent{
		logger:  logging.NewNop(),
		tracer:  otel.Tracer(instrumentationName),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.extractor = NewExtractor(c)
	a.history = NewHistoryLookup(orders, a.logger)
	a.formatter = NewFormatter(requests, a.logger)
	return a
}

// Run executes detect, extract, history and format. The caller bounds
// the run with ctx; an expired ctx ends it with supply.ErrAgentTimeout.
func (a *Agent) Run(ctx context.Context, in Input) State {
	s := newState(in)
	ctx = logging.WithWorkerID(ctx, in.WorkerID)

	ctx, span := a.tracer.Start(ctx, "supplyagent.run", trace.WithAttributes(
		attribute.String("worker.id", in.WorkerID),
	))
	defer span.End()

	if strings.TrimSpace(in.SpanishText) == "" || strings.TrimSpace(in.EnglishText) == "" || strings.TrimSpace(in.WorkerID) == "" {
		s.Err = supply.NewError("supplyagent.run", supply.ErrValidation,
			errors.New("spanish text, english text and worker id are required"))
		return a.finish(ctx, span, s)
	}

	a.stage(ctx, "detect", func(context.Context) {
		s.mergeDetect(Detect(s))
	})
	if !s.IsSupplyRequest {
		return a.finish(ctx, span, s)
	}

	if a.expired(ctx, &s) {
		return a.finish(ctx, span, s)
	}
	a.stage(ctx, "extract", func(ctx context.Context) {
		s.mergeExtract(a.extractor.Extract(ctx, s))
	})
	if s.Err != nil {
		a.expired(ctx, &s)
		return a.finish(ctx, span, s)
	}
	span.SetAttributes(attribute.String("supply.item", s.Entities.NormalizedItem))

	if a.expired(ctx, &s) {
		return a.finish(ctx, span, s)
	}
	a.stage(ctx, "history", func(ctx context.Context) {
		s.mergeHistory(a.history.Lookup(ctx, s))
	})

	if a.expired(ctx, &s) {
		return a.finish(ctx, span, s)
	}
	a.stage(ctx, "format", func(ctx context.Context) {
		s.mergeFormat(a.formatter.Format(ctx, s))
	})
	return a.finish(ctx, span, s)
}

func (a *Agent) stage(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := a.tracer.Start(ctx, "supplyagent."+name)
	defer span.End()
	start := time.Now()
	fn(ctx)
	a.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// expired replaces the state error with a timeout when ctx is done.
func (a *Agent) expired(ctx context.Context, s *State) bool {
	if err := ctx.Err(); err != nil {
		s.Err = supply.NewError("supplyagent.run", supply.ErrAgentTimeout, err)
		return true
	}
	return false
}

func (a *Agent) finish(ctx context.Context, span trace.Span, s State) State {
	outcome := outcomeOf(s)
	a.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("supplyagent.outcome", outcome))

	fields := []zap.Field{zap.String("outcome", outcome)}
	if s.SupplyRequestID != nil {
		fields = append(fields, zap.String("supply_request.id", *s.SupplyRequestID))
	}
	if s.Err != nil {
		span.RecordError(s.Err)
		span.SetStatus(codes.Error, s.Err.Error())
		a.logger.Warn(ctx, "supply agent run ended early", append(fields, zap.Error(s.Err))...)
		return s
	}
	a.logger.Debug(ctx, "supply agent run finished", fields...)
	return s
}

func outcomeOf(s State) string {
	switch {
	case errors.Is(s.Err, supply.ErrValidation):
		return OutcomeValidation
	case errors.Is(s.Err, supply.ErrAgentTimeout):
		return OutcomeTimeout
	case s.Err != nil:
		return OutcomeStageError
	case !s.IsSupplyRequest:
		return OutcomeNotSupply
	case s.SupplyRequestID == nil:
		return OutcomeUnsaved
	default:
		return OutcomeCreated
	}
}
