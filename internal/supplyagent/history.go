package supplyagent

import (
	"context"
	"math"

	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"go.uber.org/zap"
)

// HistoryLookup summarizes a crew's past orders of the requested item.
type HistoryLookup struct {
	orders  store.SupplyOrders
	logger  *logging.Logger
	metrics *Metrics
}

// NewHistoryLookup returns a HistoryLookup over orders.
func NewHistoryLookup(orders store.SupplyOrders, logger *logging.Logger) *HistoryLookup {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HistoryLookup{orders: orders, logger: logger, metrics: NewMetrics()}
}

// Lookup queries the newest orders for crew = worker and the extracted
// item. Missing entities or a failed query yield a nil History.
func (h *HistoryLookup) Lookup(ctx context.Context, s State) HistoryResult {
	if s.Entities == nil {
		return HistoryResult{}
	}
	orders, err := h.orders.RecentSupplyOrders(ctx, s.WorkerID, s.Entities.NormalizedItem, store.HistoryLimit)
	if err != nil {
		h.metrics.HistoryFailuresTotal.Inc()
		h.logger.Warn(ctx, "history lookup failed",
			zap.String("item", s.Entities.NormalizedItem),
			zap.Error(supply.NewError("supplyagent.history", supply.ErrEnrichment, err)))
		return HistoryResult{}
	}
	hc := ComputeHistory(orders)
	return HistoryResult{History: &hc}
}

// ComputeHistory aggregates orders, newest first. Averages skip absent
// values and are absent when nothing remains. Quantity rounds to a whole
// number, cost to cents.
func ComputeHistory(orders []supply.SupplyOrder) supply.HistoryContext {
	hc := supply.HistoryContext{OrderCount: len(orders)}
	if len(orders) == 0 {
		return hc
	}

	var qtySum, costSum float64
	var qtyN, costN int
	for _, o := range orders {
		if o.Quantity != nil {
			qtySum += *o.Quantity
			qtyN++
		}
		if o.Cost != nil {
			costSum += *o.Cost
			costN++
		}
	}
	if qtyN > 0 {
		hc.AverageQuantity = supply.Ptr(math.Round(qtySum / float64(qtyN)))
	}
	if costN > 0 {
		hc.AverageCost = supply.Ptr(math.Round(costSum/float64(costN)*100) / 100)
	}
	if last := orders[0].Supplier; last != nil && *last != "" {
		hc.LastSupplier = supply.Ptr(*last)
	}
	return hc
}
