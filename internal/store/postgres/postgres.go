// Package postgres is the production store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
)

// pgQuerier is the subset of *pgxpool.Pool the store uses.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db    pgQuerier
	close func()
}

var _ store.Store = (*Store)(nil)

// Open connects a pool to dsn and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// New wraps an existing querier (a pool, a connection or a stub).
func New(db pgQuerier) *Store {
	return &Store{db: db}
}

// Close releases the pool when Store owns it.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Migrate creates tables and indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

const requestColumns = `id::text, original_message_id::text, crew_id, worker_id, item, normalized_item,
	quantity, unit, urgency, status, suggested_quantity, suggested_supplier, estimated_total,
	response_time_minutes, approved_by, approved_at, modified_quantity, rejection_reason, created_at`

func scanRequest(row pgx.Row) (*supply.SupplyRequest, error) {
	var r supply.SupplyRequest
	err := row.Scan(&r.ID, &r.OriginalMessageID, &r.CrewID, &r.WorkerID, &r.Item, &r.NormalizedItem,
		&r.Quantity, &r.Unit, &r.Urgency, &r.Status, &r.SuggestedQuantity, &r.SuggestedSupplier, &r.EstimatedTotal,
		&r.ResponseTimeMinutes, &r.ApprovedBy, &r.ApprovedAt, &r.ModifiedQuantity, &r.RejectionReason, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan supply request: %w", err)
	}
	return &r, nil
}

func nullableUUID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Store) CreateSupplyRequest(ctx context.Context, r *supply.SupplyRequest) error {
	if r.Status == "" {
		r.Status = supply.StatusPending
	}
	err := s.db.QueryRow(ctx, `INSERT INTO supply_requests (
			id, original_message_id, crew_id, worker_id, item, normalized_item, quantity, unit, urgency, status,
			suggested_quantity, suggested_supplier, estimated_total, response_time_minutes,
			approved_by, approved_at, modified_quantity, rejection_reason, created_at)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, COALESCE($19, now()))
		RETURNING id::text, created_at`,
		nullableUUID(r.ID), r.OriginalMessageID, r.CrewID, r.WorkerID, r.Item, r.NormalizedItem,
		r.Quantity, r.Unit, string(r.Urgency), string(r.Status),
		r.SuggestedQuantity, r.SuggestedSupplier, r.EstimatedTotal, r.ResponseTimeMinutes,
		r.ApprovedBy, r.ApprovedAt, r.ModifiedQuantity, r.RejectionReason, nullableTime(r.CreatedAt),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert supply request: %w", err)
	}
	return nil
}

func (s *Store) GetSupplyRequest(ctx context.Context, id string) (*supply.SupplyRequest, error) {
	return scanRequest(s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM supply_requests WHERE id::text = $1`, id))
}

func (s *Store) FindOpenSupplyRequest(ctx context.Context, ref string) (*supply.SupplyRequest, error) {
	return scanRequest(s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM supply_requests
		WHERE status IN ('PENDING', 'QUESTIONED')
		  AND ($1::text = '' OR right(id::text, length($1::text)) = $1::text)
		ORDER BY created_at DESC
		LIMIT 1`, strings.ToLower(ref)))
}

func (s *Store) TransitionSupplyRequest(ctx context.Context, id string, t supply.Transition) (*supply.SupplyRequest, error) {
	r, err := scanRequest(s.db.QueryRow(ctx, `UPDATE supply_requests SET
			status = $2,
			response_time_minutes = COALESCE(response_time_minutes, $3),
			approved_by = COALESCE($4, approved_by),
			approved_at = COALESCE($5, approved_at),
			modified_quantity = COALESCE($6, modified_quantity),
			rejection_reason = COALESCE($7, rejection_reason)
		WHERE id::text = $1 AND status IN ('PENDING', 'QUESTIONED')
		RETURNING `+requestColumns,
		id, string(t.To), t.ResponseTimeMinutes, t.ApprovedBy, t.ApprovedAt, t.ModifiedQuantity, t.RejectionReason))
	if errors.Is(err, store.ErrNotFound) {
		if _, gerr := s.GetSupplyRequest(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update supply request: %w", err)
	}
	return r, nil
}

func (s *Store) ListSupplyRequests(ctx context.Context, f store.RequestFilter) ([]supply.SupplyRequest, error) {
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := s.db.Query(ctx, `SELECT `+requestColumns+` FROM supply_requests
		WHERE ($1::text = '' OR worker_id = $1) AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`, f.WorkerID, string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list supply requests: %w", err)
	}
	defer rows.Close()

	var out []supply.SupplyRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) RecentSupplyOrders(ctx context.Context, crewID, normalizedItem string, limit int) ([]supply.SupplyOrder, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, crew_id, item, normalized_item, quantity, unit,
			supplier, cost, ordered_at, delivered_at, notes
		FROM supply_orders
		WHERE crew_id = $1 AND normalized_item = $2
		ORDER BY ordered_at DESC
		LIMIT $3`, crewID, normalizedItem, limit)
	if err != nil {
		return nil, fmt.Errorf("query supply orders: %w", err)
	}
	defer rows.Close()

	var out []supply.SupplyOrder
	for rows.Next() {
		var o supply.SupplyOrder
		if err := rows.Scan(&o.ID, &o.CrewID, &o.Item, &o.NormalizedItem, &o.Quantity, &o.Unit,
			&o.Supplier, &o.Cost, &o.OrderedAt, &o.DeliveredAt, &o.Notes); err != nil {
			return nil, fmt.Errorf("scan supply order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) CreateSupplyOrder(ctx context.Context, o *supply.SupplyOrder) error {
	err := s.db.QueryRow(ctx, `INSERT INTO supply_orders
			(id, crew_id, item, normalized_item, quantity, unit, supplier, cost, ordered_at, delivered_at, notes)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), $10, $11)
		RETURNING id::text, ordered_at`,
		nullableUUID(o.ID), o.CrewID, o.Item, o.NormalizedItem, o.Quantity, o.Unit, o.Supplier, o.Cost,
		nullableTime(o.OrderedAt), o.DeliveredAt, o.Notes,
	).Scan(&o.ID, &o.OrderedAt)
	if err != nil {
		return fmt.Errorf("insert supply order: %w", err)
	}
	return nil
}

const messageColumns = `id::text, worker_id, spanish_raw, english_raw, english_formatted, category, urgency, delivery_id, created_at`

func scanMessage(row pgx.Row) (*supply.Message, error) {
	var m supply.Message
	err := row.Scan(&m.ID, &m.WorkerID, &m.SpanishRaw, &m.EnglishRaw, &m.EnglishFormatted,
		&m.Category, &m.Urgency, &m.DeliveryID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *supply.Message) error {
	err := s.db.QueryRow(ctx, `INSERT INTO messages
			(id, worker_id, spanish_raw, english_raw, english_formatted, category, urgency, delivery_id, created_at)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
		RETURNING id::text, created_at`,
		nullableUUID(m.ID), m.WorkerID, m.SpanishRaw, m.EnglishRaw, m.EnglishFormatted, m.Category,
		string(m.Urgency), m.DeliveryID, nullableTime(m.CreatedAt),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) AttachDeliveryID(ctx context.Context, messageID, deliveryID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE messages SET delivery_id = $2 WHERE id::text = $1`, messageID, deliveryID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindMessageByDeliveryID(ctx context.Context, deliveryID string) (*supply.Message, error) {
	return scanMessage(s.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE delivery_id = $1 ORDER BY created_at DESC LIMIT 1`, deliveryID))
}

func (s *Store) LatestMessage(ctx context.Context) (*supply.Message, error) {
	return scanMessage(s.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages
		ORDER BY created_at DESC LIMIT 1`))
}

func (s *Store) CreateSupervisorReply(ctx context.Context, r *supply.SupervisorReply) error {
	err := s.db.QueryRow(ctx, `INSERT INTO supervisor_replies
			(id, message_id, english_raw, spanish_trans, action_summary, created_at)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2::uuid, $3, $4, $5, COALESCE($6, now()))
		RETURNING id::text, created_at`,
		nullableUUID(r.ID), r.MessageID, r.EnglishRaw, r.SpanishTrans, r.ActionSummary, nullableTime(r.CreatedAt),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert supervisor reply: %w", err)
	}
	return nil
}

func (s *Store) ListSupervisorReplies(ctx context.Context, messageID string) ([]supply.SupervisorReply, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, message_id::text, english_raw, spanish_trans, action_summary, created_at
		FROM supervisor_replies WHERE message_id::text = $1 ORDER BY created_at`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list supervisor replies: %w", err)
	}
	defer rows.Close()

	var out []supply.SupervisorReply
	for rows.Next() {
		var r supply.SupervisorReply
		if err := rows.Scan(&r.ID, &r.MessageID, &r.EnglishRaw, &r.SpanishTrans, &r.ActionSummary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supervisor reply: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
