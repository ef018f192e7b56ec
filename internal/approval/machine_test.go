package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store/memory"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var created = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type translatorFunc func(ctx context.Context, text string, from, to llm.Language) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text string, from, to llm.Language) (string, error) {
	return f(ctx, text, from, to)
}

func toSpanish(_ context.Context, text string, from, to llm.Language) (string, error) {
	if from != llm.English || to != llm.Spanish {
		return "", errors.New("unexpected direction")
	}
	return "ES: " + text, nil
}

type fixture struct {
	store *memory.Store
	pub   *notify.Recorder
	log   *logging.TestLogger
	m     *Machine
}

func newFixture(t *testing.T, tr Translator) *fixture {
	t.Helper()
	if tr == nil {
		tr = translatorFunc(toSpanish)
	}
	f := &fixture{store: memory.New(), pub: &notify.Recorder{}, log: logging.NewTestLogger()}
	f.m = NewMachine(f.store, tr, f.pub,
		WithClock(func() time.Time { return created.Add(42*time.Minute + 20*time.Second) }),
		WithLogger(f.log.Logger),
	)
	return f
}

func (f *fixture) addRequest(t *testing.T, id, worker, item string, createdAt time.Time, mutate ...func(*supply.SupplyRequest)) *supply.SupplyRequest {
	t.Helper()
	r := &supply.SupplyRequest{
		ID: id, CrewID: worker, WorkerID: worker, Item: item, NormalizedItem: supply.NormalizeItem(item),
		Urgency: supply.UrgencyNormal, Status: supply.StatusPending, CreatedAt: createdAt,
	}
	for _, fn := range mutate {
		fn(r)
	}
	require.NoError(t, f.store.CreateSupplyRequest(context.Background(), r))
	return r
}

func (f *fixture) get(t *testing.T, id string) *supply.SupplyRequest {
	t.Helper()
	r, err := f.store.GetSupplyRequest(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestHandle_Approve(t *testing.T) {
	f := newFixture(t, nil)
	f.addRequest(t, "cccccccc-cccc-cccc-cccc-cccccccc0001", "worker-03", "gloves", created, func(r *supply.SupplyRequest) {
		r.Quantity = supply.Ptr(50.0)
		r.Unit = supply.Ptr("pairs")
		r.SuggestedSupplier = supply.Ptr("Safety Supply")
	})

	res, err := f.m.Handle(context.Background(), "APPROVE")
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "Approved: gloves (50 pairs) from Safety Supply. Order placed.", res.Response)

	got := f.get(t, "cccccccc-cccc-cccc-cccc-cccccccc0001")
	assert.Equal(t, supply.StatusApproved, got.Status)
	assert.Equal(t, "supervisor", *got.ApprovedBy)
	assert.Equal(t, created.Add(42*time.Minute+20*time.Second), *got.ApprovedAt)
	assert.Equal(t, 42, *got.ResponseTimeMinutes)

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "workers.worker-03", events[0].ChannelKey)
	assert.Equal(t, notify.EventSupplyRequestUpdate, events[0].Event.Type)
	assert.Equal(t, notify.SupplyRequestUpdate{
		RequestID:         "cccccccc-cccc-cccc-cccc-cccccccc0001",
		Status:            supply.StatusApproved,
		Message:           res.Response,
		TranslatedMessage: "ES: " + res.Response,
	}, events[0].Event.Payload)
}

func TestHandle_ApproveFallbacks(t *testing.T) {
	f := newFixture(t, nil)
	f.addRequest(t, "", "worker-01", "rebar", created, func(r *supply.SupplyRequest) {
		r.SuggestedQuantity = supply.Ptr(480.0)
	})
	res, err := f.m.Handle(context.Background(), "approve")
	require.NoError(t, err)
	assert.Equal(t, "Approved: rebar (480 pcs) from supplier. Order placed.", res.Response)

	f.addRequest(t, "", "worker-01", "rebar", created)
	res, err = f.m.Handle(context.Background(), "approve")
	require.NoError(t, err)
	assert.Equal(t, "Approved: rebar (? pcs) from supplier. Order placed.", res.Response)
}

func TestHandle_Modify(t *testing.T) {
	f := newFixture(t, nil)
	r := f.addRequest(t, "", "worker-01", "anchor bolts", created, func(r *supply.SupplyRequest) {
		r.Quantity = supply.Ptr(200.0)
		r.Unit = supply.Ptr("pieces")
	})

	res, err := f.m.Handle(context.Background(), "MODIFY 300")
	require.NoError(t, err)
	assert.Equal(t, "Modified: anchor bolts quantity changed to 300 pieces. Order placed.", res.Response)

	got := f.get(t, r.ID)
	assert.Equal(t, supply.StatusModified, got.Status)
	assert.Equal(t, 300, *got.ModifiedQuantity)
	assert.Equal(t, 200.0, *got.Quantity, "original quantity kept")
	assert.NotNil(t, got.ApprovedBy)
}

func TestHandle_ModifyInvalidDoesNotMutate(t *testing.T) {
	f := newFixture(t, nil)
	r := f.addRequest(t, "", "worker-01", "rebar", created)

	res, err := f.m.Handle(context.Background(), "MODIFY abc")
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, ModifyUsage, res.Response)
	assert.Nil(t, res.Request)

	got := f.get(t, r.ID)
	assert.Equal(t, supply.StatusPending, got.Status)
	assert.Nil(t, got.ResponseTimeMinutes)
	assert.Empty(t, f.pub.Events())
}

func TestHandle_Reject(t *testing.T) {
	f := newFixture(t, nil)
	r := f.addRequest(t, "", "worker-01", "lumber 2x4", created)

	res, err := f.m.Handle(context.Background(), "REJECT Already over budget.")
	require.NoError(t, err)
	assert.Equal(t, "Rejected: lumber 2x4 request denied. Reason: Already over budget.", res.Response)
	got := f.get(t, r.ID)
	assert.Equal(t, supply.StatusRejected, got.Status)
	assert.Equal(t, "Already over budget.", *got.RejectionReason)
	assert.Nil(t, got.ApprovedBy, "rejections record no approver")

	f.addRequest(t, "", "worker-01", "sand", created)
	res, err = f.m.Handle(context.Background(), "reject")
	require.NoError(t, err)
	assert.Equal(t, "Rejected: sand request denied. Reason: No reason provided", res.Response)
}

func TestHandle_AskThenDecide(t *testing.T) {
	f := newFixture(t, nil)
	r := f.addRequest(t, "", "worker-02", "plywood", created)

	res, err := f.m.Handle(context.Background(), "ASK what thickness?")
	require.NoError(t, err)
	assert.Equal(t, `Question sent to worker about: plywood. "what thickness?"`, res.Response)
	got := f.get(t, r.ID)
	assert.Equal(t, supply.StatusQuestioned, got.Status)
	assert.Equal(t, 42, *got.ResponseTimeMinutes)

	res, err = f.m.Handle(context.Background(), "ask")
	require.NoError(t, err)
	assert.Equal(t, `Question sent to worker about: plywood. "Please clarify."`, res.Response)

	// Response time is fixed at the first transition.
	later := NewMachine(f.store, translatorFunc(toSpanish), f.pub,
		WithClock(func() time.Time { return created.Add(3 * time.Hour) }),
		WithApprover("maria"))
	res, err = later.Handle(context.Background(), "APPROVE")
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	got = f.get(t, r.ID)
	assert.Equal(t, supply.StatusApproved, got.Status)
	assert.Equal(t, 42, *got.ResponseTimeMinutes)
	assert.Equal(t, "maria", *got.ApprovedBy)
}

func TestHandle_TerminalRequestsAreNotFound(t *testing.T) {
	f := newFixture(t, nil)
	r := f.addRequest(t, "cccccccc-cccc-cccc-cccc-ccccccccab12", "worker-01", "rebar", created)

	_, err := f.m.Handle(context.Background(), "APPROVE")
	require.NoError(t, err)

	for _, body := range []string{"APPROVE", "REJECT no", "MODIFY 5", "ASK why"} {
		res, err := f.m.Handle(context.Background(), body)
		require.NoError(t, err)
		assert.Equal(t, NotFoundResponse, res.Response, body)
		assert.Nil(t, res.Request)
	}
	res, err := f.m.Handle(context.Background(), "APPROVE REQ-ab12")
	require.NoError(t, err)
	assert.Equal(t, "No pending request found matching REQ-ab12.", res.Response)

	assert.Equal(t, supply.StatusApproved, f.get(t, r.ID).Status)
	assert.Len(t, f.pub.Events(), 1)
}

func TestHandle_ReferenceSelection(t *testing.T) {
	f := newFixture(t, nil)
	older := f.addRequest(t, "aaaaaaaa-0000-0000-0000-00000000a1b2", "worker-01", "rebar", created)
	newer := f.addRequest(t, "aaaaaaaa-0000-0000-0000-00000000c3d4", "worker-02", "sand", created.Add(time.Minute))

	res, err := f.m.Handle(context.Background(), "REJECT REQ-A1B2 wrong size")
	require.NoError(t, err)
	assert.Equal(t, "Rejected: rebar request denied. Reason: wrong size", res.Response)
	assert.Equal(t, supply.StatusRejected, f.get(t, older.ID).Status)
	assert.Equal(t, supply.StatusPending, f.get(t, newer.ID).Status)

	res, err = f.m.Handle(context.Background(), "APPROVE REQ-ffff")
	require.NoError(t, err)
	assert.Equal(t, "No pending request found matching REQ-ffff.", res.Response)
	assert.Equal(t, supply.StatusPending, f.get(t, newer.ID).Status)

	f.addRequest(t, "aaaaaaaa-0000-0000-0000-00000000e5f6", "worker-03", "gravel", created.Add(-time.Hour))
	_, err = f.m.Handle(context.Background(), "APPROVE")
	require.NoError(t, err)
	assert.Equal(t, supply.StatusApproved, f.get(t, newer.ID).Status, "most recent open request")
}

func TestHandle_NotACommand(t *testing.T) {
	f := newFixture(t, nil)
	f.addRequest(t, "", "worker-01", "rebar", created)

	res, err := f.m.Handle(context.Background(), "Thanks, I'll check tomorrow")
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Empty(t, res.Response)
}

func TestHandle_NoOpenRequests(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.m.Handle(context.Background(), "APPROVE")
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, NotFoundResponse, res.Response)
}

type brokenTransitions struct{ *memory.Store }

func (brokenTransitions) TransitionSupplyRequest(context.Context, string, supply.Transition) (*supply.SupplyRequest, error) {
	return nil, errors.New("deadlock detected")
}

func TestHandle_PersistenceFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.addRequest(t, "", "worker-01", "rebar", created)
	m := NewMachine(brokenTransitions{f.store}, translatorFunc(toSpanish), f.pub, WithLogger(f.log.Logger))

	res, err := m.Handle(context.Background(), "APPROVE")
	require.Error(t, err)
	assert.ErrorIs(t, err, supply.ErrPersistence)
	assert.Equal(t, UpdateErrorResponse, res.Response)
	assert.Empty(t, f.pub.Events(), "no notification without a committed transition")
	f.log.AssertLogged(t, zapcore.ErrorLevel, "supply request update failed")
}

func TestHandle_NotificationFailuresKeepTransition(t *testing.T) {
	t.Run("translation", func(t *testing.T) {
		f := newFixture(t, translatorFunc(func(context.Context, string, llm.Language, llm.Language) (string, error) {
			return "", supply.NewError("translate", supply.ErrTranslation, errors.New("429"))
		}))
		r := f.addRequest(t, "", "worker-01", "rebar", created)

		res, err := f.m.Handle(context.Background(), "APPROVE")
		require.NoError(t, err)
		assert.Contains(t, res.Response, "Approved: rebar")
		assert.Equal(t, supply.StatusApproved, f.get(t, r.ID).Status)
		assert.Empty(t, f.pub.Events())
		f.log.AssertLogged(t, zapcore.WarnLevel, "translation failed")
	})

	t.Run("publish", func(t *testing.T) {
		f := newFixture(t, nil)
		f.pub.Err = errors.New("nats: connection closed")
		r := f.addRequest(t, "", "worker-01", "rebar", created)

		res, err := f.m.Handle(context.Background(), "REJECT no budget")
		require.NoError(t, err)
		assert.Contains(t, res.Response, "Rejected: rebar")
		assert.Equal(t, supply.StatusRejected, f.get(t, r.ID).Status)
		f.log.AssertLogged(t, zapcore.WarnLevel, "publish failed")
	})
}

func TestHandle_ConcurrentRepliesTransitionOnce(t *testing.T) {
	f := newFixture(t, nil)
	r := f.addRequest(t, "", "worker-01", "rebar", created)

	bodies := []string{"APPROVE", "REJECT too late", "MODIFY 10", "APPROVE", "REJECT", "MODIFY 20", "APPROVE", "REJECT"}
	var (
		mu      sync.Mutex
		applied []*supply.SupplyRequest
	)
	var g errgroup.Group
	for _, body := range bodies {
		body := body
		g.Go(func() error {
			res, err := f.m.Handle(context.Background(), body)
			if err != nil {
				return err
			}
			if res.Request != nil {
				mu.Lock()
				applied = append(applied, res.Request)
				mu.Unlock()
			} else if res.Response != NotFoundResponse {
				return errors.New("unexpected response: " + res.Response)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, applied, 1, "exactly one reply wins")
	got := f.get(t, r.ID)
	assert.Equal(t, applied[0].Status, got.Status)
	assert.True(t, got.Status.IsTerminal())
	assert.Len(t, f.pub.Events(), 1)
}

var _ store.SupplyRequests = brokenTransitions{}
