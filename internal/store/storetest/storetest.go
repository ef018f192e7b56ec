// Package storetest is a behavioral suite every store.Store backend
// must pass.
package storetest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

// Run executes the suite against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetSupplyRequest", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("FindOpenSupplyRequest", func(t *testing.T) { testFindOpen(t, newStore(t)) })
	t.Run("TransitionSupplyRequest", func(t *testing.T) { testTransition(t, newStore(t)) })
	t.Run("ConcurrentTransitions", func(t *testing.T) { testConcurrentTransitions(t, newStore(t)) })
	t.Run("ListSupplyRequests", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("RecentSupplyOrders", func(t *testing.T) { testRecentOrders(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("SupervisorReplies", func(t *testing.T) { testReplies(t, newStore(t)) })
}

// NewRequest builds a pending request for worker created at created.
func NewRequest(worker, item string, created time.Time) *supply.SupplyRequest {
	return &supply.SupplyRequest{
		CrewID:            worker,
		WorkerID:          worker,
		Item:              item,
		NormalizedItem:    supply.NormalizeItem(item),
		Quantity:          supply.Ptr(500.0),
		Unit:              supply.Ptr("pieces"),
		Urgency:           supply.UrgencyHigh,
		Status:            supply.StatusPending,
		SuggestedSupplier: supply.Ptr("FastenAll Supply Co."),
		EstimatedTotal:    supply.Ptr(245.0),
		CreatedAt:         created,
	}
}

func transition(ctx context.Context, s store.Store, id string, to supply.Status, minutes int) (*supply.SupplyRequest, error) {
	return s.TransitionSupplyRequest(ctx, id, supply.Transition{
		To:                  to,
		At:                  base.Add(time.Duration(minutes) * time.Minute),
		ResponseTimeMinutes: minutes,
	})
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRequest("worker-01", "anchor bolts", base)
	r.Status = ""
	require.NoError(t, s.CreateSupplyRequest(ctx, r))
	require.NotEmpty(t, r.ID)

	got, err := s.GetSupplyRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, supply.StatusPending, got.Status)
	assert.Equal(t, "anchor_bolt", got.NormalizedItem)
	assert.Equal(t, supply.UrgencyHigh, got.Urgency)
	require.NotNil(t, got.Quantity)
	assert.Equal(t, 500.0, *got.Quantity)
	require.NotNil(t, got.EstimatedTotal)
	assert.Equal(t, 245.0, *got.EstimatedTotal)
	assert.Nil(t, got.SuggestedQuantity)
	assert.Nil(t, got.ResponseTimeMinutes)
	assert.Nil(t, got.OriginalMessageID)
	assert.True(t, base.Equal(got.CreatedAt), "created at %v", got.CreatedAt)

	_, err = s.GetSupplyRequest(ctx, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testFindOpen(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.FindOpenSupplyRequest(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	older := NewRequest("worker-01", "rebar", base)
	newer := NewRequest("worker-02", "nails", base.Add(time.Minute))
	closed := NewRequest("worker-03", "sand", base.Add(2*time.Minute))
	closed.Status = supply.StatusRejected
	for _, r := range []*supply.SupplyRequest{older, newer, closed} {
		require.NoError(t, s.CreateSupplyRequest(ctx, r))
	}

	got, err := s.FindOpenSupplyRequest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID, "most recent open request, terminal ones skipped")

	got, err = s.FindOpenSupplyRequest(ctx, older.Ref())
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	got, err = s.FindOpenSupplyRequest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = transition(ctx, s, newer.ID, supply.StatusQuestioned, 3)
	require.NoError(t, err)
	got, err = s.FindOpenSupplyRequest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID, "questioned requests stay open")
	assert.Equal(t, supply.StatusQuestioned, got.Status)

	_, err = transition(ctx, s, newer.ID, supply.StatusApproved, 9)
	require.NoError(t, err)
	_, err = transition(ctx, s, older.ID, supply.StatusRejected, 9)
	require.NoError(t, err)
	_, err = s.FindOpenSupplyRequest(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTransition(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRequest("worker-01", "rebar", base)
	require.NoError(t, s.CreateSupplyRequest(ctx, r))

	got, err := transition(ctx, s, r.ID, supply.StatusQuestioned, 4)
	require.NoError(t, err)
	assert.Equal(t, supply.StatusQuestioned, got.Status)
	require.NotNil(t, got.ResponseTimeMinutes)
	assert.Equal(t, 4, *got.ResponseTimeMinutes)

	approvedAt := base.Add(30 * time.Minute)
	got, err = s.TransitionSupplyRequest(ctx, r.ID, supply.Transition{
		To:                  supply.StatusModified,
		At:                  approvedAt,
		ResponseTimeMinutes: 30,
		ApprovedBy:          supply.Ptr("supervisor"),
		ApprovedAt:          &approvedAt,
		ModifiedQuantity:    supply.Ptr(300),
	})
	require.NoError(t, err)
	assert.Equal(t, supply.StatusModified, got.Status)
	assert.Equal(t, 4, *got.ResponseTimeMinutes, "response time is set once")
	assert.Equal(t, "supervisor", *got.ApprovedBy)
	assert.True(t, approvedAt.Equal(*got.ApprovedAt))
	assert.Equal(t, 300, *got.ModifiedQuantity)

	reread, err := s.GetSupplyRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, supply.StatusModified, reread.Status)
	assert.Equal(t, 300, *reread.ModifiedQuantity)

	_, err = s.TransitionSupplyRequest(ctx, r.ID, supply.Transition{
		To:              supply.StatusRejected,
		RejectionReason: supply.Ptr("too late"),
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = transition(ctx, s, "00000000-0000-4000-8000-000000000000", supply.StatusApproved, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testConcurrentTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRequest("worker-01", "rebar", base)
	require.NoError(t, s.CreateSupplyRequest(ctx, r))

	var won, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		to := supply.StatusApproved
		if i%2 == 1 {
			to = supply.StatusRejected
		}
		g.Go(func() error {
			_, err := transition(ctx, s, r.ID, to, 5)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, store.ErrConflict):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), won.Load(), "exactly one terminal transition wins")
	assert.Equal(t, int32(7), lost.Load())
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := NewRequest("worker-01", "rebar", base)
	b := NewRequest("worker-01", "nails", base.Add(time.Minute))
	c := NewRequest("worker-02", "sand", base.Add(2*time.Minute))
	c.Status = supply.StatusApproved
	for _, r := range []*supply.SupplyRequest{a, b, c} {
		require.NoError(t, s.CreateSupplyRequest(ctx, r))
	}

	all, err := s.ListSupplyRequests(ctx, store.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, c.ID, all[0].ID)

	mine, err := s.ListSupplyRequests(ctx, store.RequestFilter{WorkerID: "worker-01"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ID)

	approved, err := s.ListSupplyRequests(ctx, store.RequestFilter{Status: supply.StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)

	limited, err := s.ListSupplyRequests(ctx, store.RequestFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testRecentOrders(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		o := &supply.SupplyOrder{
			CrewID:         "worker-01",
			Item:           "Rebar #4",
			NormalizedItem: "rebar",
			Quantity:       supply.Ptr(float64(100 + i)),
			Supplier:       supply.Ptr("SteelMax Distributors"),
			OrderedAt:      base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.CreateSupplyOrder(ctx, o))
	}
	require.NoError(t, s.CreateSupplyOrder(ctx, &supply.SupplyOrder{
		CrewID: "worker-02", Item: "Rebar", NormalizedItem: "rebar", OrderedAt: base,
	}))
	require.NoError(t, s.CreateSupplyOrder(ctx, &supply.SupplyOrder{
		CrewID: "worker-01", Item: "Sand", NormalizedItem: "sand", OrderedAt: base,
	}))

	orders, err := s.RecentSupplyOrders(ctx, "worker-01", "rebar", store.HistoryLimit)
	require.NoError(t, err)
	require.Len(t, orders, store.HistoryLimit)
	assert.Equal(t, 111.0, *orders[0].Quantity, "newest first")
	assert.Equal(t, 102.0, *orders[9].Quantity)
	assert.Nil(t, orders[0].Cost)

	none, err := s.RecentSupplyOrders(ctx, "worker-09", "rebar", store.HistoryLimit)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testMessages(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.LatestMessage(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	first := &supply.Message{
		WorkerID:         "worker-01",
		SpanishRaw:       "Necesitamos más concreto en la zona norte.",
		EnglishRaw:       "We need more concrete in the north area.",
		EnglishFormatted: "Requesting additional concrete for the north zone.",
		Category:         supply.CategoryMaterialNeed,
		Urgency:          supply.UrgencyHigh,
		CreatedAt:        base,
	}
	second := &supply.Message{
		WorkerID:         "worker-02",
		SpanishRaw:       "Terminamos la losa.",
		EnglishRaw:       "We finished the slab.",
		EnglishFormatted: "Slab complete.",
		Category:         supply.CategoryCompletion,
		Urgency:          supply.UrgencyNormal,
		CreatedAt:        base.Add(time.Minute),
	}
	require.NoError(t, s.CreateMessage(ctx, first))
	require.NoError(t, s.CreateMessage(ctx, second))
	require.NotEmpty(t, first.ID)

	require.NoError(t, s.AttachDeliveryID(ctx, first.ID, "SM0001"))

	got, err := s.FindMessageByDeliveryID(ctx, "SM0001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "SM0001", *got.DeliveryID)
	assert.Equal(t, first.SpanishRaw, got.SpanishRaw)

	_, err = s.FindMessageByDeliveryID(ctx, "SM9999")
	assert.ErrorIs(t, err, store.ErrNotFound)

	latest, err := s.LatestMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	assert.ErrorIs(t, s.AttachDeliveryID(ctx, "00000000-0000-4000-8000-000000000000", "SM1"), store.ErrNotFound)
}

func testReplies(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := &supply.Message{WorkerID: "worker-01", SpanishRaw: "hola", EnglishRaw: "hello", EnglishFormatted: "Hello.", Category: supply.CategoryClarification, Urgency: supply.UrgencyNormal}
	require.NoError(t, s.CreateMessage(ctx, m))

	r := &supply.SupervisorReply{
		MessageID:     m.ID,
		EnglishRaw:    "Take photos and send to supplier.",
		SpanishTrans:  "Tomen fotos y envíenlas al proveedor.",
		ActionSummary: "Tomar fotos y avisar al proveedor.",
	}
	require.NoError(t, s.CreateSupervisorReply(ctx, r))
	require.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	replies, err := s.ListSupervisorReplies(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, r.SpanishTrans, replies[0].SpanishTrans)
}
