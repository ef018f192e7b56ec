// Package store defines the repositories behind the relay and the
// supply pipeline. Backends live in subpackages: memory, sqlite and
// postgres.
package store

import (
	"context"
	"errors"

	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional transition finds the
	// request no longer open.
	ErrConflict = errors.New("supply request is no longer open")
)

// HistoryLimit bounds the orders considered for history context.
const HistoryLimit = 10

// RequestFilter narrows ListSupplyRequests. Zero values match all.
type RequestFilter struct {
	WorkerID string
	Status   supply.Status
	Limit    int
}

// SupplyRequests persists supply requests.
type SupplyRequests interface {
	// CreateSupplyRequest inserts r in a single statement, filling ID and
	// CreatedAt when empty.
	CreateSupplyRequest(ctx context.Context, r *supply.SupplyRequest) error
	GetSupplyRequest(ctx context.Context, id string) (*supply.SupplyRequest, error)
	// FindOpenSupplyRequest returns the most recent open request whose id
	// ends with ref, or the most recent open request when ref is empty.
	FindOpenSupplyRequest(ctx context.Context, ref string) (*supply.SupplyRequest, error)
	// TransitionSupplyRequest applies t only if the request is still
	// open, atomically. Returns ErrConflict otherwise.
	TransitionSupplyRequest(ctx context.Context, id string, t supply.Transition) (*supply.SupplyRequest, error)
	ListSupplyRequests(ctx context.Context, f RequestFilter) ([]supply.SupplyRequest, error)
}

// SupplyOrders reads and records historical orders.
type SupplyOrders interface {
	// RecentSupplyOrders returns up to limit orders for the crew and item,
	// newest first.
	RecentSupplyOrders(ctx context.Context, crewID, normalizedItem string, limit int) ([]supply.SupplyOrder, error)
	CreateSupplyOrder(ctx context.Context, o *supply.SupplyOrder) error
}

// Messages persists relayed worker messages.
type Messages interface {
	CreateMessage(ctx context.Context, m *supply.Message) error
	AttachDeliveryID(ctx context.Context, messageID, deliveryID string) error
	FindMessageByDeliveryID(ctx context.Context, deliveryID string) (*supply.Message, error)
	LatestMessage(ctx context.Context) (*supply.Message, error)
}

// SupervisorReplies persists free-text supervisor answers.
type SupervisorReplies interface {
	CreateSupervisorReply(ctx context.Context, r *supply.SupervisorReply) error
	ListSupervisorReplies(ctx context.Context, messageID string) ([]supply.SupervisorReply, error)
}

// Store is implemented by every backend.
type Store interface {
	SupplyRequests
	SupplyOrders
	Messages
	SupervisorReplies
	Close() error
}
