// Package notify fans worker events out over NATS. Each worker has one
// channel key; events are published on <channelKey>.<eventType>.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Event types delivered to workers.
const (
	EventSupplyRequestUpdate = "supply-request-update"
	EventSupervisorReply     = "supervisor-reply"
)

// ChannelPrefix roots every worker channel.
const ChannelPrefix = "workers"

// Event is one notification for a worker.
type Event struct {
	Type    string
	Payload any
}

// SupplyRequestUpdate reports a supervisor decision on a supply request.
type SupplyRequestUpdate struct {
	RequestID         string        `json:"requestId"`
	Status            supply.Status `json:"status"`
	Message           string        `json:"message"`
	TranslatedMessage string        `json:"translatedMessage"`
}

// SupervisorReply carries a translated free-text supervisor answer.
type SupervisorReply struct {
	MessageID     string `json:"messageId"`
	EnglishRaw    string `json:"englishRaw"`
	SpanishTrans  string `json:"spanishTrans"`
	ActionSummary string `json:"actionSummary"`
}

// Publisher delivers events to a worker channel.
type Publisher interface {
	Publish(ctx context.Context, channelKey string, ev Event) error
}

// ChannelKey derives the channel for a worker. Characters NATS reserves
// in subjects (dots, wildcards, whitespace) become underscores, so the
// key is always exactly two tokens.
func ChannelKey(workerID string) string {
	token := strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, workerID)
	if token == "" {
		token = "_"
	}
	return ChannelPrefix + "." + token
}

// Subject is the NATS subject for an event on a channel.
func Subject(channelKey, eventType string) string {
	return channelKey + "." + eventType
}

// NATSPublisher publishes JSON payloads on a NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher returns a publisher on nc.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Publish implements Publisher. Failures wrap supply.ErrNotification.
func (p *NATSPublisher) Publish(ctx context.Context, channelKey string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return supply.NewError("notify.publish", supply.ErrNotification, err)
	}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return supply.NewError("notify.publish", supply.ErrNotification, fmt.Errorf("marshal %s: %w", ev.Type, err))
	}
	msg := &nats.Msg{Subject: Subject(channelKey, ev.Type), Data: data, Header: nats.Header{}}
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(msg.Header))
	if err := p.nc.PublishMsg(msg); err != nil {
		return supply.NewError("notify.publish", supply.ErrNotification, err)
	}
	return nil
}

// HeaderCarrier adapts nats.Header for OTEL propagators. NATS header
// keys are case-sensitive, so keys are stored exactly as given.
type HeaderCarrier nats.Header

var _ propagation.TextMapCarrier = HeaderCarrier(nil)

func (h HeaderCarrier) Get(key string) string {
	if v := h[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (h HeaderCarrier) Set(key, value string) {
	h[key] = []string{value}
}

func (h HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

// ExtractTraceContext returns ctx carrying the trace context a publisher
// injected into h.
func ExtractTraceContext(ctx context.Context, h nats.Header) context.Context {
	if h == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier(h))
}

// Published is one event captured by a Recorder.
type Published struct {
	ChannelKey string
	Event      Event
}

// Recorder is an in-memory Publisher for tests. Set Err to make every
// Publish fail.
type Recorder struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, channelKey string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return supply.NewError("notify.publish", supply.ErrNotification, r.Err)
	}
	r.events = append(r.events, Published{ChannelKey: channelKey, Event: ev})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}
