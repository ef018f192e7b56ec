// Package relay carries messages between field workers and the
// supervisor. Worker messages are translated, analyzed, stored and
// delivered over WhatsApp, with supply requests routed through the supply
// agent. Supervisor replies are either approval commands or free text
// that is translated back to the worker.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/approval"
	"github.com/jthomaschappell/echolingo-resurgence/internal/dedupe"
	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/messaging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supplyagent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrMessageNotFound is returned when a supervisor reply cannot be
// correlated with any worker message.
var ErrMessageNotFound = errors.New("original message not found")

// DefaultPipelineTimeout bounds one supply agent run.
const DefaultPipelineTimeout = 20 * time.Second

// Translator translates between the worker and supervisor languages.
type Translator interface {
	Translate(ctx context.Context, text string, from, to llm.Language) (string, error)
}

// Analyzer categorizes worker messages and summarizes supervisor replies.
type Analyzer interface {
	Analyze(ctx context.Context, spanish, english string) (llm.Analysis, error)
	SummarizeActions(ctx context.Context, english string) string
}

// Pipeline turns a worker message into a supply request.
type Pipeline interface {
	Run(ctx context.Context, in supplyagent.Input) supplyagent.State
}

// Commands applies supervisor approval commands.
type Commands interface {
	Handle(ctx context.Context, body string) (approval.Result, error)
}

// Store is the persistence the relay needs.
type Store interface {
	store.Messages
	store.SupervisorReplies
}

// Relay wires translation, analysis, the supply agent, approval commands,
// delivery and worker notification.
type Relay struct {
	store      Store
	translator Translator
	analyzer   Analyzer
	pipeline   Pipeline
	commands   Commands
	sender     messaging.Sender
	publisher  notify.Publisher
	deduper    dedupe.Deduper

	supervisorTo string
	timeout      time.Duration
	logger       *logging.Logger
	tracer       trace.Tracer
	metrics      *Metrics
}

// Deps are the collaborators of a Relay.
type Deps struct {
	Store      Store
	Translator Translator
	Analyzer   Analyzer
	Pipeline   Pipeline
	Commands   Commands
	Sender     messaging.Sender
	Publisher  notify.Publisher
	Deduper    dedupe.Deduper
}

// Option configures a Relay.
type Option func(*Relay)

// WithSupervisor sets the WhatsApp address worker messages are delivered
// to. Without one, messages are stored but not delivered.
func WithSupervisor(to string) Option {
	return func(r *Relay) { r.supervisorTo = to }
}

// WithPipelineTimeout bounds each supply agent run.
func WithPipelineTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Relay) { r.tracer = t }
}

// New returns a Relay. A nil Deduper disables duplicate suppression and a
// nil Sender disables delivery.
func New(d Deps, opts ...Option) *Relay {
	r := &Relay{
		store:      d.Store,
		translator: d.Translator,
		analyzer:   d.Analyzer,
		pipeline:   d.Pipeline,
		commands:   d.Commands,
		sender:     d.Sender,
		publisher:  d.Publisher,
		deduper:    d.Deduper,
		timeout:    DefaultPipelineTimeout,
		logger:     logging.NewNop(),
		tracer:     otel.Tracer("echolingo/relay"),
		metrics:    NewMetrics(),
	}
	if r.sender == nil {
		r.sender = messaging.Disabled{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FallbackAnalysis guesses a category and urgency from keywords when the
// analysis model is unavailable.
func FallbackAnalysis(spanish, english string) llm.Analysis {
	a := llm.Analysis{
		Category:  supply.CategoryClarification,
		Urgency:   llm.UrgencyOf(spanish),
		Formatted: english,
	}
	switch {
	case llm.IsUrgent(spanish):
		a.Category = supply.CategorySafety
	case supplyagent.IsSupplyRequest(spanish, english):
		a.Category = supply.CategoryMaterialNeed
	}
	return a
}
