// Package sqlite is an embedded store.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates tables and indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nanosPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := nanos(*t)
	return &n
}

func fromNanosPtr(n *int64) *time.Time {
	if n == nil {
		return nil
	}
	t := fromNanos(*n)
	return &t
}

const requestColumns = `id, original_message_id, crew_id, worker_id, item, normalized_item,
	quantity, unit, urgency, status, suggested_quantity, suggested_supplier, estimated_total,
	response_time_minutes, approved_by, approved_at, modified_quantity, rejection_reason, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*supply.SupplyRequest, error) {
	var (
		r          supply.SupplyRequest
		approvedAt *int64
		createdAt  int64
	)
	err := row.Scan(&r.ID, &r.OriginalMessageID, &r.CrewID, &r.WorkerID, &r.Item, &r.NormalizedItem,
		&r.Quantity, &r.Unit, &r.Urgency, &r.Status, &r.SuggestedQuantity, &r.SuggestedSupplier, &r.EstimatedTotal,
		&r.ResponseTimeMinutes, &r.ApprovedBy, &approvedAt, &r.ModifiedQuantity, &r.RejectionReason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan supply request: %w", err)
	}
	r.ApprovedAt = fromNanosPtr(approvedAt)
	r.CreatedAt = fromNanos(createdAt)
	return &r, nil
}

func (s *Store) CreateSupplyRequest(ctx context.Context, r *supply.SupplyRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if r.Status == "" {
		r.Status = supply.StatusPending
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO supply_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OriginalMessageID, r.CrewID, r.WorkerID, r.Item, r.NormalizedItem,
		r.Quantity, r.Unit, string(r.Urgency), string(r.Status), r.SuggestedQuantity, r.SuggestedSupplier, r.EstimatedTotal,
		r.ResponseTimeMinutes, r.ApprovedBy, nanosPtr(r.ApprovedAt), r.ModifiedQuantity, r.RejectionReason, nanos(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert supply request: %w", err)
	}
	return nil
}

func (s *Store) GetSupplyRequest(ctx context.Context, id string) (*supply.SupplyRequest, error) {
	return scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM supply_requests WHERE id = ?`, id))
}

func (s *Store) FindOpenSupplyRequest(ctx context.Context, ref string) (*supply.SupplyRequest, error) {
	ref = strings.ToLower(ref)
	return scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM supply_requests
		WHERE status IN ('PENDING', 'QUESTIONED')
		  AND (? = '' OR substr(lower(id), -length(?)) = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, ref, ref, ref))
}

func (s *Store) TransitionSupplyRequest(ctx context.Context, id string, t supply.Transition) (*supply.SupplyRequest, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE supply_requests SET
			status = ?,
			response_time_minutes = COALESCE(response_time_minutes, ?),
			approved_by = COALESCE(?, approved_by),
			approved_at = COALESCE(?, approved_at),
			modified_quantity = COALESCE(?, modified_quantity),
			rejection_reason = COALESCE(?, rejection_reason)
		WHERE id = ? AND status IN ('PENDING', 'QUESTIONED')`,
		string(t.To), t.ResponseTimeMinutes, t.ApprovedBy, nanosPtr(t.ApprovedAt), t.ModifiedQuantity, t.RejectionReason, id)
	if err != nil {
		return nil, fmt.Errorf("update supply request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update supply request: %w", err)
	}
	if n == 0 {
		if _, err := s.GetSupplyRequest(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrConflict
	}
	return s.GetSupplyRequest(ctx, id)
}

func (s *Store) ListSupplyRequests(ctx context.Context, f store.RequestFilter) ([]supply.SupplyRequest, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM supply_requests
		WHERE (? = '' OR worker_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, f.WorkerID, f.WorkerID, string(f.Status), string(f.Status), limit)
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
	rows, err := s.db.QueryContext(ctx, `SELECT id, crew_id, item, normalized_item, quantity, unit,
			supplier, cost, ordered_at, delivered_at, notes
		FROM supply_orders
		WHERE crew_id = ? AND normalized_item = ?
		ORDER BY ordered_at DESC, rowid DESC
		LIMIT ?`, crewID, normalizedItem, limit)
	if err != nil {
		return nil, fmt.Errorf("query supply orders: %w", err)
	}
	defer rows.Close()

	var out []supply.SupplyOrder
	for rows.Next() {
		var (
			o           supply.SupplyOrder
			orderedAt   int64
			deliveredAt *int64
		)
		if err := rows.Scan(&o.ID, &o.CrewID, &o.Item, &o.NormalizedItem, &o.Quantity, &o.Unit,
			&o.Supplier, &o.Cost, &orderedAt, &deliveredAt, &o.Notes); err != nil {
			return nil, fmt.Errorf("scan supply order: %w", err)
		}
		o.OrderedAt = fromNanos(orderedAt)
		o.DeliveredAt = fromNanosPtr(deliveredAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) CreateSupplyOrder(ctx context.Context, o *supply.SupplyOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderedAt.IsZero() {
		o.OrderedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO supply_orders
			(id, crew_id, item, normalized_item, quantity, unit, supplier, cost, ordered_at, delivered_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CrewID, o.Item, o.NormalizedItem, o.Quantity, o.Unit, o.Supplier, o.Cost,
		nanos(o.OrderedAt), nanosPtr(o.DeliveredAt), o.Notes)
	if err != nil {
		return fmt.Errorf("insert supply order: %w", err)
	}
	return nil
}

const messageColumns = `id, worker_id, spanish_raw, english_raw, english_formatted, category, urgency, delivery_id, created_at`

func scanMessage(row scanner) (*supply.Message, error) {
	var (
		m         supply.Message
		createdAt int64
	)
	err := row.Scan(&m.ID, &m.WorkerID, &m.SpanishRaw, &m.EnglishRaw, &m.EnglishFormatted,
		&m.Category, &m.Urgency, &m.DeliveryID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.CreatedAt = fromNanos(createdAt)
	return &m, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *supply.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.WorkerID, m.SpanishRaw, m.EnglishRaw, m.EnglishFormatted, m.Category,
		string(m.Urgency), m.DeliveryID, nanos(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) AttachDeliveryID(ctx context.Context, messageID, deliveryID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET delivery_id = ? WHERE id = ?`, deliveryID, messageID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindMessageByDeliveryID(ctx context.Context, deliveryID string) (*supply.Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE delivery_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, deliveryID))
}

func (s *Store) LatestMessage(ctx context.Context) (*supply.Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages
		ORDER BY created_at DESC, rowid DESC LIMIT 1`))
}

func (s *Store) CreateSupervisorReply(ctx context.Context, r *supply.SupervisorReply) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO supervisor_replies
			(id, message_id, english_raw, spanish_trans, action_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.MessageID, r.EnglishRaw, r.SpanishTrans, r.ActionSummary, nanos(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert supervisor reply: %w", err)
	}
	return nil
}

func (s *Store) ListSupervisorReplies(ctx context.Context, messageID string) ([]supply.SupervisorReply, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, message_id, english_raw, spanish_trans, action_summary, created_at
		FROM supervisor_replies WHERE message_id = ? ORDER BY created_at, rowid`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list supervisor replies: %w", err)
	}
	defer rows.Close()

	var out []supply.SupervisorReply
	for rows.Next() {
		var (
			r         supply.SupervisorReply
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.MessageID, &r.EnglishRaw, &r.SpanishTrans, &r.ActionSummary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan supervisor reply: %w", err)
		}
		r.CreatedAt = fromNanos(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
