package approval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"go.uber.org/zap"
)

// Supervisor-facing responses.
const (
	NotFoundResponse    = "No pending supply request found."
	UpdateErrorResponse = "Error updating supply request."
	DefaultApprover     = "supervisor"
	NoReasonProvided    = "No reason provided"
	DefaultQuestion     = "Please clarify."
)

// Translator renders the confirmation in the worker's language.
type Translator interface {
	Translate(ctx context.Context, text string, from, to llm.Language) (string, error)
}

// Result is the outcome of one supervisor reply.
type Result struct {
	// Handled is false when the reply was not a command; the caller
	// should treat it as a free-text reply.
	Handled bool
	// Response is the text for the supervisor.
	Response string
	// Request is the transitioned request, nil unless a transition
	// was committed.
	Request *supply.SupplyRequest
}

// Machine selects open requests and applies commands to them.
type Machine struct {
	requests   store.SupplyRequests
	translator Translator
	publisher  notify.Publisher

	approver string
	now      func() time.Time
	logger   *logging.Logger
	metrics  *Metrics
}

// Option configures a Machine.
type Option func(*Machine)

// WithApprover sets the identity recorded on approvals.
func WithApprover(name string) Option {
	return func(m *Machine) {
		if name != "" {
			m.approver = name
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// NewMachine returns a Machine.
func NewMachine(requests store.SupplyRequests, translator Translator, publisher notify.Publisher, opts ...Option) *Machine {
	m := &Machine{
		requests:   requests,
		translator: translator,
		publisher:  publisher,
		approver:   DefaultApprover,
		now:        time.Now,
		logger:     logging.NewNop(),
		metrics:    NewMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle parses body and, for a command, applies it to the selected open
// request. The returned error is non-nil only when persistence failed;
// Response then carries UpdateErrorResponse.
func (m *Machine) Handle(ctx context.Context, body string) (Result, error) {
	p, err := Parse(body)
	if errors.Is(err, ErrNoCommand) {
		return Result{}, nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		m.metrics.observe(verr.Command, OutcomeInvalid)
		return Result{Handled: true, Response: verr.Message}, nil
	}

	req, err := m.requests.FindOpenSupplyRequest(ctx, p.Ref)
	if errors.Is(err, store.ErrNotFound) {
		m.metrics.observe(p.Command, OutcomeNotFound)
		return Result{Handled: true, Response: notFound(p.Ref)}, nil
	}
	if err != nil {
		m.metrics.observe(p.Command, OutcomeError)
		return Result{Handled: true, Response: UpdateErrorResponse},
			supply.NewError("approval.select", supply.ErrPersistence, err)
	}
	ctx = logging.WithSupplyRequestID(ctx, req.ID)

	t, response := m.plan(p, req)
	updated, err := m.requests.TransitionSupplyRequest(ctx, req.ID, t)
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		// Another reply decided this request first.
		m.metrics.observe(p.Command, OutcomeNotFound)
		m.logger.Info(ctx, "supply request no longer open", zap.String("command", string(p.Command)))
		return Result{Handled: true, Response: notFound(p.Ref)}, nil
	}
	if err != nil {
		m.metrics.observe(p.Command, OutcomeError)
		err = supply.NewError("approval.transition", supply.ErrPersistence, err)
		m.logger.Error(ctx, "supply request update failed", zap.Error(err))
		return Result{Handled: true, Response: UpdateErrorResponse}, err
	}

	m.metrics.observe(p.Command, OutcomeApplied)
	m.logger.Info(ctx, "supply request updated",
		zap.String("status", string(updated.Status)),
		zap.Intp("response_time_minutes", updated.ResponseTimeMinutes))

	m.notify(ctx, updated, response)
	return Result{Handled: true, Response: response, Request: updated}, nil
}

func notFound(ref string) string {
	if ref == "" {
		return NotFoundResponse
	}
	return fmt.Sprintf("No pending request found matching REQ-%s.", ref)
}

// plan builds the transition and the confirmation for p against r.
func (m *Machine) plan(p Parsed, r *supply.SupplyRequest) (supply.Transition, string) {
	now := m.now()
	minutes := int(math.Round(now.Sub(r.CreatedAt).Minutes()))
	if minutes < 0 {
		minutes = 0
	}
	t := supply.Transition{At: now, ResponseTimeMinutes: minutes}

	unit := "pcs"
	if r.Unit != nil {
		unit = *r.Unit
	}

	switch p.Command {
	case Approve:
		t.To = supply.StatusApproved
		t.ApprovedBy = supply.Ptr(m.approver)
		t.ApprovedAt = supply.Ptr(now)
		qty := "?"
		if r.Quantity != nil {
			qty = formatNumber(*r.Quantity)
		} else if r.SuggestedQuantity != nil {
			qty = formatNumber(*r.SuggestedQuantity)
		}
		supplier := "supplier"
		if r.SuggestedSupplier != nil {
			supplier = *r.SuggestedSupplier
		}
		return t, fmt.Sprintf("Approved: %s (%s %s) from %s. Order placed.", r.Item, qty, unit, supplier)

	case Modify:
		t.To = supply.StatusModified
		t.ModifiedQuantity = supply.Ptr(p.Quantity)
		t.ApprovedBy = supply.Ptr(m.approver)
		t.ApprovedAt = supply.Ptr(now)
		return t, fmt.Sprintf("Modified: %s quantity changed to %d %s. Order placed.", r.Item, p.Quantity, unit)

	case Reject:
		reason := p.Args
		if reason == "" {
			reason = NoReasonProvided
		}
		t.To = supply.StatusRejected
		t.RejectionReason = supply.Ptr(reason)
		return t, fmt.Sprintf("Rejected: %s request denied. Reason: %s", r.Item, reason)

	default:
		question := p.Args
		if question == "" {
			question = DefaultQuestion
		}
		t.To = supply.StatusQuestioned
		return t, fmt.Sprintf("Question sent to worker about: %s. \"%s\"", r.Item, question)
	}
}

// notify translates the confirmation and publishes it to the worker.
// Failures are logged; the transition stays committed.
func (m *Machine) notify(ctx context.Context, r *supply.SupplyRequest, message string) {
	translated, err := m.translator.Translate(ctx, message, llm.English, llm.Spanish)
	if err != nil {
		m.metrics.NotificationFailuresTotal.Inc()
		m.logger.Warn(ctx, "worker not notified: translation failed",
			zap.Error(supply.NewError("approval.notify", supply.ErrNotification, err)))
		return
	}

	err = m.publisher.Publish(ctx, notify.ChannelKey(r.WorkerID), notify.Event{
		Type: notify.EventSupplyRequestUpdate,
		Payload: notify.SupplyRequestUpdate{
			RequestID:         r.ID,
			Status:            r.Status,
			Message:           message,
			TranslatedMessage: translated,
		},
	})
	if err != nil {
		m.metrics.NotificationFailuresTotal.Inc()
		m.logger.Warn(ctx, "worker not notified: publish failed",
			zap.Error(supply.NewError("approval.notify", supply.ErrNotification, err)))
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
