// Package memory is an in-process store.Store used by tests and by the
// "memory" driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
)

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	requests map[string]*supply.SupplyRequest
	orders   []supply.SupplyOrder
	messages map[string]*supply.Message
	replies  []supply.SupervisorReply
	seq      map[string]int // insertion order, breaks createdAt ties
	nextSeq  int
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:      time.Now,
		requests: make(map[string]*supply.SupplyRequest),
		messages: make(map[string]*supply.Message),
		seq:      make(map[string]int),
	}
}

// WithClock overrides the timestamp source for records created without one.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = s.now().UTC()
	}
	s.nextSeq++
	s.seq[*id] = s.nextSeq
}

// newer orders by createdAt, then insertion order.
func (s *Store) newer(aID string, a time.Time, bID string, b time.Time) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return s.seq[aID] > s.seq[bID]
}

func (s *Store) CreateSupplyRequest(_ context.Context, r *supply.SupplyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&r.ID, &r.CreatedAt)
	if r.Status == "" {
		r.Status = supply.StatusPending
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) GetSupplyRequest(_ context.Context, id string) (*supply.SupplyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) FindOpenSupplyRequest(_ context.Context, ref string) (*supply.SupplyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref = strings.ToLower(ref)

	var best *supply.SupplyRequest
	for _, r := range s.requests {
		if !r.Status.IsOpen() {
			continue
		}
		if ref != "" && !strings.HasSuffix(strings.ToLower(r.ID), ref) {
			continue
		}
		if best == nil || s.newer(r.ID, r.CreatedAt, best.ID, best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *Store) TransitionSupplyRequest(_ context.Context, id string, t supply.Transition) (*supply.SupplyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !r.Status.IsOpen() {
		return nil, store.ErrConflict
	}
	t.Apply(r)
	cp := *r
	return &cp, nil
}

func (s *Store) ListSupplyRequests(_ context.Context, f store.RequestFilter) ([]supply.SupplyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]supply.SupplyRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if f.WorkerID != "" && r.WorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) RecentSupplyOrders(_ context.Context, crewID, normalizedItem string, limit int) ([]supply.SupplyOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []supply.SupplyOrder
	for _, o := range s.orders {
		if o.CrewID == crewID && o.NormalizedItem == normalizedItem {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderedAt.After(out[j].OrderedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateSupplyOrder(_ context.Context, o *supply.SupplyOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderedAt.IsZero() {
		o.OrderedAt = s.now().UTC()
	}
	s.orders = append(s.orders, *o)
	return nil
}

func (s *Store) CreateMessage(_ context.Context, m *supply.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&m.ID, &m.CreatedAt)
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *Store) AttachDeliveryID(_ context.Context, messageID, deliveryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return store.ErrNotFound
	}
	m.DeliveryID = &deliveryID
	return nil
}

func (s *Store) FindMessageByDeliveryID(_ context.Context, deliveryID string) (*supply.Message, error) {
	return s.latestMessage(func(m *supply.Message) bool {
		return m.DeliveryID != nil && *m.DeliveryID == deliveryID
	})
}

func (s *Store) LatestMessage(_ context.Context) (*supply.Message, error) {
	return s.latestMessage(func(*supply.Message) bool { return true })
}

func (s *Store) latestMessage(match func(*supply.Message) bool) (*supply.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *supply.Message
	for _, m := range s.messages {
		if !match(m) {
			continue
		}
		if best == nil || s.newer(m.ID, m.CreatedAt, best.ID, best.CreatedAt) {
			best = m
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *Store) CreateSupervisorReply(_ context.Context, r *supply.SupervisorReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[r.MessageID]; !ok {
		return store.ErrNotFound
	}
	s.stamp(&r.ID, &r.CreatedAt)
	s.replies = append(s.replies, *r)
	return nil
}

func (s *Store) ListSupervisorReplies(_ context.Context, messageID string) ([]supply.SupervisorReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []supply.SupervisorReply
	for _, r := range s.replies {
		if r.MessageID == messageID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
