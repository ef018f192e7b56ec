package supplyagent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"go.uber.org/zap"
)

// DefaultUnit is used when the worker named no unit.
const DefaultUnit = "pieces"

// ReplyHint tells the supervisor which commands are understood.
const ReplyHint = "Reply: APPROVE / MODIFY [qty] / REJECT [reason] / ASK [question]"

// Formatter recommends a supplier, persists the request and composes
// the supervisor message.
type Formatter struct {
	requests store.SupplyRequests
	logger   *logging.Logger
	metrics  *Metrics
}

// NewFormatter returns a Formatter persisting into requests.
func NewFormatter(requests store.SupplyRequests, logger *logging.Logger) *Formatter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Formatter{requests: requests, logger: logger, metrics: NewMetrics()}
}

// Recommendation is the resolved order proposal for one request.
type Recommendation struct {
	Supplier     supply.SupplierRecommendation
	Quantity     *float64
	Unit         string
	SupplierName string
}

// Recommend resolves supplier, quantity, unit and supplier name. Past
// behavior (history) wins over the directory for the supplier name, and
// the extracted quantity wins over the historical average.
func Recommend(e supply.Entities, h *supply.HistoryContext) Recommendation {
	sup, _ := supply.LookupSupplier(e.NormalizedItem)
	r := Recommendation{Supplier: sup, Quantity: e.Quantity, Unit: DefaultUnit, SupplierName: sup.Name}
	if r.Quantity == nil && h != nil {
		r.Quantity = h.AverageQuantity
	}
	if e.Unit != nil {
		r.Unit = *e.Unit
	}
	if h != nil && h.LastSupplier != nil {
		r.SupplierName = *h.LastSupplier
	}
	return r
}

// Format builds and persists the supply request. Persistence failure is
// logged and the message is returned without a request id.
func (f *Formatter) Format(ctx context.Context, s State) FormatResult {
	if s.Entities == nil {
		return FormatResult{Err: supply.NewError("supplyagent.format", supply.ErrStage, errors.New("no entities extracted"))}
	}
	e := *s.Entities
	rec := Recommend(e, s.History)

	req := &supply.SupplyRequest{
		OriginalMessageID: s.MessageID,
		CrewID:            s.WorkerID,
		WorkerID:          s.WorkerID,
		Item:              e.Item,
		NormalizedItem:    e.NormalizedItem,
		Quantity:          rec.Quantity,
		Unit:              supply.Ptr(rec.Unit),
		Urgency:           e.Urgency,
		Status:            supply.StatusPending,
		SuggestedSupplier: supply.Ptr(rec.SupplierName),
		EstimatedTotal:    rec.Supplier.EstimatedTotal,
	}
	if s.History != nil {
		req.SuggestedQuantity = s.History.AverageQuantity
	}

	var id *string
	ref := ""
	if err := f.requests.CreateSupplyRequest(ctx, req); err != nil {
		f.metrics.PersistFailuresTotal.Inc()
		f.logger.Error(ctx, "supply request not persisted; sending message without reference",
			zap.String("item", e.NormalizedItem),
			zap.Error(supply.NewError("supplyagent.format", supply.ErrPersistence, err)))
	} else {
		id = supply.Ptr(req.ID)
		ref = req.Ref()
		f.logger.Info(logging.WithSupplyRequestID(ctx, req.ID), "supply request persisted",
			zap.String("ref", ref))
	}

	sup := rec.Supplier
	return FormatResult{
		Supplier:          &sup,
		SupervisorMessage: ComposeMessage(s.WorkerID, e, s.History, rec, ref),
		SupplyRequestID:   id,
	}
}

// UrgencyMarker is the colored marker for an urgency tier.
func UrgencyMarker(u supply.Urgency) string {
	switch u {
	case supply.UrgencyCritical:
		return "🔴"
	case supply.UrgencyHigh:
		return "🟡"
	default:
		return "🟢"
	}
}

// ComposeMessage renders the supervisor message. ref is the short
// request reference; empty when the request was not persisted.
func ComposeMessage(workerID string, e supply.Entities, h *supply.HistoryContext, rec Recommendation, ref string) string {
	header := UrgencyMarker(e.Urgency) + " SUPPLY REQUEST"
	if ref != "" {
		header += " [REQ-" + ref + "]"
	}

	lines := []string{
		header,
		"",
		fmt.Sprintf("Item: %s (%s)", e.Item, e.NormalizedItem),
	}
	if rec.Quantity != nil {
		lines = append(lines, fmt.Sprintf("Quantity: %s %s", FormatNumber(*rec.Quantity), rec.Unit))
	}
	lines = append(lines,
		"Urgency: "+strings.ToUpper(string(e.Urgency)),
		"Worker: "+workerID,
		"",
	)

	if h != nil && h.OrderCount > 0 {
		lines = append(lines, fmt.Sprintf("📊 History (%d prior orders):", h.OrderCount))
		if h.AverageQuantity != nil {
			lines = append(lines, "  Avg qty: "+FormatNumber(*h.AverageQuantity))
		}
		if h.LastSupplier != nil {
			lines = append(lines, "  Last supplier: "+*h.LastSupplier)
		}
		if h.AverageCost != nil {
			lines = append(lines, "  Avg cost: $"+FormatNumber(*h.AverageCost))
		}
		lines = append(lines, "")
	}

	lines = append(lines, "🏪 Suggested supplier: "+rec.SupplierName)
	if rec.Supplier.EstimatedTotal != nil {
		lines = append(lines, "  Est. total: $"+FormatNumber(*rec.Supplier.EstimatedTotal))
	}
	if rec.Supplier.DeliveryDays != nil {
		lines = append(lines, fmt.Sprintf("  Delivery: ~%d days", *rec.Supplier.DeliveryDays))
	}
	lines = append(lines, "", ReplyHint)

	return strings.Join(lines, "\n")
}

// FormatNumber prints f without trailing zeros (20, 2.5, 245).
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
