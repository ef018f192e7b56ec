package supplyagent

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Run outcomes.
const (
	OutcomeNotSupply  = "not_supply"
	OutcomeCreated    = "created"
	OutcomeUnsaved    = "unsaved"
	OutcomeValidation = "validation_error"
	OutcomeStageError = "stage_error"
	OutcomeTimeout    = "timeout"
)

// Metrics holds Prometheus metrics for the supply agent.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	HistoryFailuresTotal prometheus.Counter
	PersistFailuresTotal prometheus.Counter
}

// NewMetrics registers the supply agent metrics once per process.
//
// Metrics:
//   - supplyagent_runs_total{outcome}
//   - supplyagent_stage_duration_seconds{stage}
//   - supplyagent_history_failures_total
//   - supplyagent_persist_failures_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "supplyagent_runs_total",
					Help: "Total number of supply agent runs by outcome",
				},
				[]string{"outcome"},
			),
			StageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "supplyagent_stage_duration_seconds",
					Help:    "Duration of supply agent stages in seconds",
					Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
				},
				[]string{"stage"},
			),
			HistoryFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "supplyagent_history_failures_total",
				Help: "Total number of failed order history lookups",
			}),
			PersistFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "supplyagent_persist_failures_total",
				Help: "Total number of supply requests that could not be persisted",
			}),
		}
	})
	return globalMetrics
}
