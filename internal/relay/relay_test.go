package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/approval"
	"github.com/jthomaschappell/echolingo-resurgence/internal/dedupe"
	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/messaging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store/memory"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supplyagent"
	"github.com/jthomaschappell/echolingo-resurgence/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const supervisor = "whatsapp:+15550009999"

// fakeTranslator prefixes the target language.
type fakeTranslator struct {
	err error
}

func (f fakeTranslator) Translate(_ context.Context, text string, _, to llm.Language) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "[" + string(to) + "] " + text, nil
}

type fakeAnalyzer struct {
	analysis llm.Analysis
	err      error
	summary  string
}

func (f fakeAnalyzer) Analyze(context.Context, string, string) (llm.Analysis, error) {
	return f.analysis, f.err
}

func (f fakeAnalyzer) SummarizeActions(context.Context, string) string {
	if f.summary == "" {
		return llm.ActionSummaryFallback
	}
	return f.summary
}

type pipelineFunc func(ctx context.Context, in supplyagent.Input) supplyagent.State

func (f pipelineFunc) Run(ctx context.Context, in supplyagent.Input) supplyagent.State {
	return f(ctx, in)
}

type harness struct {
	store  *memory.Store
	outbox *messaging.Outbox
	pub    *notify.Recorder
	log    *logging.TestLogger
	relay  *Relay
}

func newHarness(t *testing.T, d Deps, opts ...Option) *harness {
	t.Helper()
	h := &harness{store: memory.New(), outbox: &messaging.Outbox{}, pub: &notify.Recorder{}, log: logging.NewTestLogger()}
	if d.Store == nil {
		d.Store = h.store
	}
	if d.Translator == nil {
		d.Translator = fakeTranslator{}
	}
	if d.Analyzer == nil {
		d.Analyzer = fakeAnalyzer{analysis: llm.Analysis{Category: supply.CategoryDelayReport, Urgency: supply.UrgencyNormal, Formatted: "Formatted update."}}
	}
	if d.Sender == nil {
		d.Sender = h.outbox
	}
	if d.Publisher == nil {
		d.Publisher = h.pub
	}
	opts = append([]Option{WithSupervisor(supervisor), WithLogger(h.log.Logger)}, opts...)
	h.relay = New(d, opts...)
	return h
}

func TestFallbackAnalysis(t *testing.T) {
	tests := []struct {
		name, spanish, english string
		category               string
		urgency                supply.Urgency
	}{
		{"urgent", "Hubo un accidente en el andamio", "There was an accident", supply.CategorySafety, supply.UrgencyHigh},
		{"supply", "Necesitamos varilla", "We need rebar", supply.CategoryMaterialNeed, supply.UrgencyNormal},
		{"other", "Terminamos el muro", "We finished the wall", supply.CategoryClarification, supply.UrgencyNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := FallbackAnalysis(tt.spanish, tt.english)
			assert.Equal(t, tt.category, a.Category)
			assert.Equal(t, tt.urgency, a.Urgency)
			assert.Equal(t, tt.english, a.Formatted)
		})
	}
}

func TestWorkerMessage_Validate(t *testing.T) {
	assert.NoError(t, WorkerMessage{WorkerID: "w", SpokenText: "hola"}.Validate())
	assert.NoError(t, WorkerMessage{WorkerID: "w", SpokenText: "hola", MessageID: "0b9f8f4e-7a39-4e7b-9a51-4f1c2b3d4e5f"}.Validate())

	for _, m := range []WorkerMessage{
		{SpokenText: "hola"},
		{WorkerID: "w", SpokenText: "   "},
		{WorkerID: "w", SpokenText: "hola", MessageID: "msg-1"},
	} {
		assert.ErrorIs(t, m.Validate(), supply.ErrValidation, "%+v", m)
	}
}

func TestHandleWorkerMessage_Delivers(t *testing.T) {
	h := newHarness(t, Deps{})
	res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{
		WorkerID: "worker-01", SpokenText: "Vamos a llegar tarde", IsSpanishMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "[en] Vamos a llegar tarde", res.EnglishRaw)
	assert.Equal(t, "Formatted update.", res.EnglishFormatted)
	assert.Equal(t, supply.CategoryDelayReport, res.Category)
	assert.Nil(t, res.SupplyRequestID)

	sent := h.outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, supervisor, sent[0].To)
	assert.Equal(t, "Formatted update.", sent[0].Body)
	require.NotNil(t, res.DeliveryID)
	assert.Equal(t, sent[0].DeliveryID, *res.DeliveryID)

	m, err := h.store.FindMessageByDeliveryID(context.Background(), sent[0].DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, res.MessageID, m.ID)
	assert.Equal(t, "Vamos a llegar tarde", m.SpanishRaw)
	assert.Equal(t, "worker-01", m.WorkerID)
}

func TestHandleWorkerMessage_EnglishMode(t *testing.T) {
	h := newHarness(t, Deps{})
	res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{
		WorkerID: "worker-01", SpokenText: "We finished the slab",
	})
	require.NoError(t, err)
	assert.Equal(t, "We finished the slab", res.EnglishRaw)

	m, err := h.store.LatestMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[es] We finished the slab", m.SpanishRaw)
}

func TestHandleWorkerMessage_Failures(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		h := newHarness(t, Deps{})
		_, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{WorkerID: "w"})
		assert.ErrorIs(t, err, supply.ErrValidation)
		assert.Empty(t, h.outbox.Messages())
	})

	t.Run("translation", func(t *testing.T) {
		terr := supply.NewError("translate", supply.ErrTranslation, errors.New("503"))
		h := newHarness(t, Deps{Translator: fakeTranslator{err: terr}})
		_, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{WorkerID: "w", SpokenText: "hola", IsSpanishMode: true})
		assert.ErrorIs(t, err, supply.ErrTranslation)
		_, err = h.store.LatestMessage(context.Background())
		assert.ErrorIs(t, err, store.ErrNotFound, "nothing stored")
	})

	t.Run("analysis falls back", func(t *testing.T) {
		h := newHarness(t, Deps{Analyzer: fakeAnalyzer{err: supply.NewError("analyze", supply.ErrAnalysis, errors.New("bad json"))}})
		res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{
			WorkerID: "w", SpokenText: "Peligro, cable suelto", IsSpanishMode: true,
		})
		require.NoError(t, err)
		assert.Equal(t, supply.CategorySafety, res.Category)
		assert.Equal(t, supply.UrgencyHigh, res.Urgency)
		assert.Equal(t, "[en] Peligro, cable suelto", res.EnglishFormatted)
		h.log.AssertLogged(t, zapcore.WarnLevel, "keyword fallback")
	})

	t.Run("delivery failure keeps message", func(t *testing.T) {
		h := newHarness(t, Deps{})
		h.outbox.Err = errors.New("21211 invalid to")
		res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{WorkerID: "w", SpokenText: "hola", IsSpanishMode: true})
		require.NoError(t, err)
		assert.Nil(t, res.DeliveryID)

		latest, err := h.store.LatestMessage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, res.MessageID, latest.ID)
		assert.Nil(t, latest.DeliveryID)
		h.log.AssertLogged(t, zapcore.ErrorLevel, "delivery to supervisor failed")
	})

	t.Run("no supervisor configured", func(t *testing.T) {
		h := newHarness(t, Deps{}, WithSupervisor(""))
		res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{WorkerID: "w", SpokenText: "hola", IsSpanishMode: true})
		require.NoError(t, err)
		assert.Nil(t, res.DeliveryID)
		assert.Empty(t, h.outbox.Messages())
	})
}

func TestHandleWorkerMessage_SupplyRequest(t *testing.T) {
	var got supplyagent.Input
	var deadline bool
	pipeline := pipelineFunc(func(ctx context.Context, in supplyagent.Input) supplyagent.State {
		got = in
		_, deadline = ctx.Deadline()
		return supplyagent.State{
			IsSupplyRequest:   true,
			SupervisorMessage: "🟠 SUPPLY REQUEST [REQ-0001]",
			SupplyRequestID:   supply.Ptr("00000000-0000-0000-0000-000000000001"),
		}
	})
	h := newHarness(t, Deps{
		Pipeline: pipeline,
		Analyzer: fakeAnalyzer{analysis: llm.Analysis{Category: supply.CategoryMaterialNeed, Formatted: "Needs rebar."}},
	}, WithPipelineTimeout(time.Second))

	res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{
		WorkerID: "worker-01", SpokenText: "Necesitamos varilla", IsSpanishMode: true,
	})
	require.NoError(t, err)

	assert.True(t, deadline, "pipeline run is bounded")
	assert.Equal(t, "Necesitamos varilla", got.SpanishText)
	assert.Equal(t, "[en] Necesitamos varilla", got.EnglishText)
	require.NotNil(t, got.MessageID)
	assert.Equal(t, res.MessageID, *got.MessageID)

	require.NotNil(t, res.SupplyRequestID)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", *res.SupplyRequestID)
	sent := h.outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "🟠 SUPPLY REQUEST [REQ-0001]", sent[0].Body)
}

func TestHandleWorkerMessage_SafetyMessageSkipsPipeline(t *testing.T) {
	ran := false
	pipeline := pipelineFunc(func(context.Context, supplyagent.Input) supplyagent.State {
		ran = true
		return supplyagent.State{SupervisorMessage: "🟢 SUPPLY REQUEST [REQ-abcd]"}
	})
	h := newHarness(t, Deps{
		Pipeline: pipeline,
		Analyzer: fakeAnalyzer{analysis: llm.Analysis{
			Category:  supply.CategorySafety,
			Urgency:   supply.UrgencyHigh,
			Formatted: "SAFETY: scaffold collapsed, lumber needed.",
		}},
	})

	res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{
		WorkerID: "w", SpokenText: "Accidente, el andamio se cayó, necesitamos madera", IsSpanishMode: true,
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, supply.CategorySafety, res.Category)
	assert.Nil(t, res.SupplyMessage)
	assert.Nil(t, res.SupplyRequestID)
	sent := h.outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "SAFETY: scaffold collapsed, lumber needed.", sent[0].Body)
}

func TestHandleWorkerMessage_PipelineWithoutMessageFallsBack(t *testing.T) {
	pipeline := pipelineFunc(func(context.Context, supplyagent.Input) supplyagent.State {
		return supplyagent.State{Err: supply.NewError("supplyagent.extract", supply.ErrStage, errors.New("boom"))}
	})
	h := newHarness(t, Deps{
		Pipeline: pipeline,
		Analyzer: fakeAnalyzer{analysis: llm.Analysis{Category: supply.CategoryMaterialNeed, Formatted: "Needs rebar."}},
	})
	res, err := h.relay.HandleWorkerMessage(context.Background(), WorkerMessage{WorkerID: "w", SpokenText: "Necesitamos varilla", IsSpanishMode: true})
	require.NoError(t, err)
	assert.Nil(t, res.SupplyRequestID)
	assert.Equal(t, "Needs rebar.", h.outbox.Messages()[0].Body)
}

func seedMessage(t *testing.T, s *memory.Store, worker string, created time.Time, deliveryID string) *supply.Message {
	t.Helper()
	m := &supply.Message{WorkerID: worker, SpanishRaw: "hola", EnglishRaw: "hello", CreatedAt: created}
	require.NoError(t, s.CreateMessage(context.Background(), m))
	if deliveryID != "" {
		require.NoError(t, s.AttachDeliveryID(context.Background(), m.ID, deliveryID))
	}
	return m
}

func TestHandleSupervisorReply_FreeText(t *testing.T) {
	h := newHarness(t, Deps{Analyzer: fakeAnalyzer{summary: "- Traer casco"}})
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	older := seedMessage(t, h.store, "worker-01", base, "SMaaa")
	seedMessage(t, h.store, "worker-02", base.Add(time.Hour), "SMbbb")

	res, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{
		From: supervisor, Body: "  Bring your helmet  ", MessageSid: "SMaaa",
	})
	require.NoError(t, err)
	assert.Equal(t, ReplyFreeText, res.Kind)
	require.NotNil(t, res.Reply)
	assert.Equal(t, older.ID, res.Reply.MessageID, "correlated by delivery id")

	replies, err := h.store.ListSupervisorReplies(context.Background(), older.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "Bring your helmet", replies[0].EnglishRaw)
	assert.Equal(t, "[es] Bring your helmet", replies[0].SpanishTrans)
	assert.Equal(t, "- Traer casco", replies[0].ActionSummary)

	events := h.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.ChannelKey("worker-01"), events[0].ChannelKey)
	assert.Equal(t, notify.Event{
		Type: notify.EventSupervisorReply,
		Payload: notify.SupervisorReply{
			MessageID:     older.ID,
			EnglishRaw:    "Bring your helmet",
			SpanishTrans:  "[es] Bring your helmet",
			ActionSummary: "- Traer casco",
		},
	}, events[0].Event)
}

func TestHandleSupervisorReply_CorrelatesLatest(t *testing.T) {
	h := newHarness(t, Deps{})
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	seedMessage(t, h.store, "worker-01", base, "")
	latest := seedMessage(t, h.store, "worker-02", base.Add(time.Minute), "")

	res, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SMnew"})
	require.NoError(t, err)
	assert.Equal(t, latest.ID, res.Reply.MessageID)
	assert.Equal(t, llm.ActionSummaryFallback, res.Reply.ActionSummary)
}

func TestHandleSupervisorReply_Failures(t *testing.T) {
	t.Run("no messages", func(t *testing.T) {
		h := newHarness(t, Deps{})
		_, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SM1"})
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run("translation", func(t *testing.T) {
		h := newHarness(t, Deps{Translator: fakeTranslator{err: supply.NewError("translate", supply.ErrTranslation, errors.New("429"))}})
		m := seedMessage(t, h.store, "w", time.Now(), "")
		_, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SM1"})
		assert.ErrorIs(t, err, supply.ErrTranslation)
		replies, _ := h.store.ListSupervisorReplies(context.Background(), m.ID)
		assert.Empty(t, replies)
		assert.Empty(t, h.pub.Events())
	})

	t.Run("publish failure keeps reply", func(t *testing.T) {
		h := newHarness(t, Deps{})
		h.pub.Err = errors.New("nats: no servers available")
		m := seedMessage(t, h.store, "w", time.Now(), "")
		res, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SM1"})
		require.NoError(t, err)
		require.NotNil(t, res.Reply)
		replies, _ := h.store.ListSupervisorReplies(context.Background(), m.ID)
		assert.Len(t, replies, 1)
		h.log.AssertLogged(t, zapcore.WarnLevel, "supervisor reply not published")
	})

	t.Run("empty body", func(t *testing.T) {
		h := newHarness(t, Deps{})
		res, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "  ", MessageSid: "SM1"})
		require.NoError(t, err)
		assert.Equal(t, ReplyEmpty, res.Kind)
	})
}

func TestHandleSupervisorReply_Duplicate(t *testing.T) {
	h := newHarness(t, Deps{Deduper: dedupe.NewMemory(time.Hour)})
	m := seedMessage(t, h.store, "w", time.Now(), "")

	for i := 0; i < 3; i++ {
		_, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SMdup"})
		require.NoError(t, err)
	}
	replies, _ := h.store.ListSupervisorReplies(context.Background(), m.ID)
	assert.Len(t, replies, 1)
	assert.Len(t, h.pub.Events(), 1)
}

type brokenDeduper struct{}

func (brokenDeduper) Claim(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (brokenDeduper) Release(context.Context, string) error {
	return errors.New("redis down")
}

// flakyTranslator fails its first n calls.
type flakyTranslator struct {
	mu    sync.Mutex
	fails int
}

func (f *flakyTranslator) Translate(ctx context.Context, text string, from, to llm.Language) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return "", supply.NewError("translate", supply.ErrTranslation, errors.New("429"))
	}
	return fakeTranslator{}.Translate(ctx, text, from, to)
}

func TestHandleSupervisorReply_RetryAfterFailureIsProcessed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Deps{Translator: &flakyTranslator{fails: 1}, Deduper: dedupe.NewMemory(time.Hour)})
	m := seedMessage(t, h.store, "w", time.Now(), "SMorig")
	in := SupervisorMessage{Body: "Use the north gate", MessageSid: "SMretry"}

	_, err := h.relay.HandleSupervisorReply(ctx, in)
	require.ErrorIs(t, err, supply.ErrTranslation)

	res, err := h.relay.HandleSupervisorReply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, ReplyFreeText, res.Kind)
	require.NotNil(t, res.Reply)
	assert.Equal(t, "[es] Use the north gate", res.Reply.SpanishTrans)

	replies, err := h.store.ListSupervisorReplies(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, replies, 1)
	assert.Len(t, h.pub.Events(), 1)

	res, err = h.relay.HandleSupervisorReply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, ReplyDuplicate, res.Kind, "successful delivery stays claimed")
}

func TestHandleSupervisorReply_ReleaseFailureLogged(t *testing.T) {
	h := newHarness(t, Deps{Deduper: releaseFails{dedupe.NewMemory(time.Hour)}})
	_, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SM1"})
	assert.ErrorIs(t, err, ErrMessageNotFound)
	h.log.AssertLogged(t, zapcore.WarnLevel, "dedupe claim not released")
}

type releaseFails struct{ *dedupe.Memory }

func (releaseFails) Release(context.Context, string) error { return errors.New("redis down") }

func TestHandleSupervisorReply_DedupeErrorProcesses(t *testing.T) {
	h := newHarness(t, Deps{Deduper: brokenDeduper{}})
	seedMessage(t, h.store, "w", time.Now(), "")
	res, err := h.relay.HandleSupervisorReply(context.Background(), SupervisorMessage{Body: "ok", MessageSid: "SM1"})
	require.NoError(t, err)
	assert.Equal(t, ReplyFreeText, res.Kind)
	h.log.AssertLogged(t, zapcore.WarnLevel, "dedupe unavailable")
}

// A supply request made by a worker is approved by the supervisor's
// WhatsApp reply, and the worker is told in Spanish.
func TestRelay_SupplyRequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	pub := &notify.Recorder{}
	tt := telemetry.NewTestTelemetry()

	model := llm.CompleterFunc(func(context.Context, string, string, ...llm.Option) (string, error) {
		return `{"item": "rebar", "quantity": 500, "unit": "pcs", "urgency": "high"}`, nil
	})
	agent := supplyagent.New(model, st, st, supplyagent.WithTracer(tt.Tracer("supplyagent")))
	machine := approval.NewMachine(st, fakeTranslator{}, pub)
	outbox := &messaging.Outbox{}

	r := New(Deps{
		Store:      st,
		Translator: fakeTranslator{},
		Analyzer:   fakeAnalyzer{analysis: llm.Analysis{Category: supply.CategoryMaterialNeed, Formatted: "Needs rebar."}},
		Pipeline:   agent,
		Commands:   machine,
		Sender:     outbox,
		Publisher:  pub,
		Deduper:    dedupe.NewMemory(time.Hour),
	}, WithSupervisor(supervisor), WithTracer(tt.Tracer("relay")))

	res, err := r.HandleWorkerMessage(ctx, WorkerMessage{
		WorkerID: "worker-01", SpokenText: "Necesitamos 500 varillas urgente", IsSpanishMode: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.SupplyRequestID)
	ref := supply.ShortRef(*res.SupplyRequestID)
	sent := outbox.Messages()
	require.Len(t, sent, 1)
	assert.True(t, strings.Contains(sent[0].Body, "[REQ-"+ref+"]"), sent[0].Body)

	req, err := st.GetSupplyRequest(ctx, *res.SupplyRequestID)
	require.NoError(t, err)
	require.NotNil(t, req.OriginalMessageID)
	assert.Equal(t, res.MessageID, *req.OriginalMessageID)

	reply, err := r.HandleSupervisorReply(ctx, SupervisorMessage{From: supervisor, Body: "APPROVE REQ-" + ref, MessageSid: "SMreply"})
	require.NoError(t, err)
	assert.Equal(t, ReplyCommand, reply.Kind)
	assert.True(t, strings.HasPrefix(reply.Response, "Approved: rebar (500 "), reply.Response)

	req, err = st.GetSupplyRequest(ctx, *res.SupplyRequestID)
	require.NoError(t, err)
	assert.Equal(t, supply.StatusApproved, req.Status)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventSupplyRequestUpdate, events[0].Event.Type)
	assert.Equal(t, notify.ChannelKey("worker-01"), events[0].ChannelKey)

	replies, err := st.ListSupervisorReplies(ctx, res.MessageID)
	require.NoError(t, err)
	assert.Empty(t, replies, "commands are not stored as free-text replies")

	assert.Contains(t, tt.SpanNames(), "relay.worker_message")
	assert.Contains(t, tt.SpanNames(), "relay.supervisor_reply")
}
