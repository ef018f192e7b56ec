package supplyagent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store/memory"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/jthomaschappell/echolingo-resurgence/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const rebarReply = `{"item": "rebar", "quantity": 500, "unit": "pcs", "urgency": "high"}`

func countingModel(reply string) (llm.CompleterFunc, *int) {
	var mu sync.Mutex
	calls := 0
	return func(context.Context, string, string, ...llm.Option) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return reply, nil
	}, &calls
}

func TestRun_CreatesRequest(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.CreateSupplyOrder(ctx, &supply.SupplyOrder{
		CrewID: "worker-01", Item: "rebar", NormalizedItem: "rebar",
		Quantity: supply.Ptr(450.0), Cost: supply.Ptr(870.0), Supplier: supply.Ptr("SteelMax Distributors"),
		OrderedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}))

	tt := telemetry.NewTestTelemetry()
	model, _ := countingModel(rebarReply)
	a := New(model, st, st, WithTracer(tt.Tracer("supplyagent")))

	s := a.Run(ctx, Input{
		SpanishText: "Necesitamos 500 varillas urgente",
		EnglishText: "We need 500 rebar urgently",
		WorkerID:    "worker-01",
	})
	require.NoError(t, s.Err)
	assert.True(t, s.IsSupplyRequest)
	require.NotNil(t, s.Entities)
	assert.Equal(t, "rebar", s.Entities.NormalizedItem)
	require.NotNil(t, s.History)
	assert.Equal(t, 1, s.History.OrderCount)
	require.NotNil(t, s.SupplyRequestID)
	assert.Contains(t, s.SupervisorMessage, "[REQ-"+supply.ShortRef(*s.SupplyRequestID)+"]")
	assert.Contains(t, s.SupervisorMessage, "📊 History (1 prior orders):")

	// Earlier fields survive later stages.
	assert.Equal(t, "worker-01", s.WorkerID)
	assert.Equal(t, "We need 500 rebar urgently", s.EnglishText)

	assert.Equal(t, []string{
		"supplyagent.detect", "supplyagent.extract", "supplyagent.history", "supplyagent.format", "supplyagent.run",
	}, tt.SpanNames())
}

func TestRun_UsesHistoryAverageWhenQuantityMissing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	for _, q := range []float64{500, 450, 600} {
		require.NoError(t, st.CreateSupplyOrder(ctx, &supply.SupplyOrder{
			CrewID: "worker-02", NormalizedItem: "concrete", Item: "concrete", Quantity: supply.Ptr(q),
		}))
	}
	model, _ := countingModel(`{"item": "concreto"}`)
	s := New(model, st, st).Run(ctx, Input{
		SpanishText: "Se nos acabó el concreto", EnglishText: "We ran out of concrete", WorkerID: "worker-02",
	})
	require.NoError(t, s.Err)
	assert.Contains(t, s.SupervisorMessage, "Quantity: 517 pieces")
}

func TestRun_NotSupplyStopsAfterDetect(t *testing.T) {
	model, calls := countingModel(rebarReply)
	st := memory.New()
	s := New(model, st, st).Run(context.Background(), Input{
		SpanishText: "La pared se ve bien", EnglishText: "The wall looks great", WorkerID: "worker-01",
	})
	assert.NoError(t, s.Err)
	assert.False(t, s.IsSupplyRequest)
	assert.Nil(t, s.Entities)
	assert.Empty(t, s.SupervisorMessage)
	assert.Zero(t, *calls)
}

func TestRun_Validation(t *testing.T) {
	model, calls := countingModel(rebarReply)
	st := memory.New()
	a := New(model, st, st)

	for name, in := range map[string]Input{
		"no spanish": {EnglishText: "We need rebar", WorkerID: "w"},
		"no english": {SpanishText: "Necesitamos varilla", WorkerID: "w"},
		"no worker":  {SpanishText: "Necesitamos varilla", EnglishText: "We need rebar", WorkerID: "  "},
	} {
		t.Run(name, func(t *testing.T) {
			s := a.Run(context.Background(), in)
			assert.ErrorIs(t, s.Err, supply.ErrValidation)
			assert.False(t, s.IsSupplyRequest, "no stage ran")
		})
	}
	assert.Zero(t, *calls)

	reqs, err := st.ListSupplyRequests(context.Background(), store.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestRun_ExtractionFailureStops(t *testing.T) {
	st := memory.New()
	s := New(modelReply("no idea", nil), st, st).Run(context.Background(), Input{
		SpanishText: "Necesitamos varilla", EnglishText: "We need rebar", WorkerID: "worker-01",
	})
	assert.ErrorIs(t, s.Err, supply.ErrStage)
	assert.True(t, s.IsSupplyRequest)
	assert.Nil(t, s.Entities)
	assert.Nil(t, s.History)
	assert.Empty(t, s.SupervisorMessage)
}

func TestRun_HistoryFailureContinues(t *testing.T) {
	st := memory.New()
	model, _ := countingModel(rebarReply)
	s := New(model, failingOrders{st}, st).Run(context.Background(), Input{
		SpanishText: "Necesitamos varilla", EnglishText: "We need rebar", WorkerID: "worker-01",
	})
	require.NoError(t, s.Err)
	assert.Nil(t, s.History)
	assert.NotNil(t, s.SupplyRequestID)
	assert.False(t, strings.Contains(s.SupervisorMessage, "History"))
}

func TestRun_Timeout(t *testing.T) {
	st := memory.New()
	slow := llm.CompleterFunc(func(ctx context.Context, _, _ string, _ ...llm.Option) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := New(slow, st, st).Run(ctx, Input{
		SpanishText: "Necesitamos varilla", EnglishText: "We need rebar", WorkerID: "worker-01",
	})
	assert.ErrorIs(t, s.Err, supply.ErrAgentTimeout)
	assert.True(t, supply.IsStageFailure(s.Err))
	assert.Nil(t, s.SupplyRequestID)

	reqs, err := st.ListSupplyRequests(context.Background(), store.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs, "no partial request written")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	st := memory.New()
	model, calls := countingModel(rebarReply)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(model, st, st).Run(ctx, Input{
		SpanishText: "Necesitamos varilla", EnglishText: "We need rebar", WorkerID: "worker-01",
	})
	assert.ErrorIs(t, s.Err, supply.ErrAgentTimeout)
	assert.ErrorIs(t, s.Err, context.Canceled)
	assert.Zero(t, *calls)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	st := memory.New()
	model, _ := countingModel(rebarReply)
	a := New(model, st, st)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		worker := "worker-" + string(rune('a'+i))
		g.Go(func() error {
			s := a.Run(context.Background(), Input{
				SpanishText: "Necesitamos varilla", EnglishText: "We need rebar", WorkerID: worker,
			})
			if s.Err != nil {
				return s.Err
			}
			if s.WorkerID != worker || !strings.Contains(s.SupervisorMessage, "Worker: "+worker) {
				return errors.New("state leaked between runs")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	reqs, err := st.ListSupplyRequests(context.Background(), store.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, reqs, 16)
}
