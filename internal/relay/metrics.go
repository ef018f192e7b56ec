package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Delivery outcomes.
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Metrics holds Prometheus metrics for the relay flows.
type Metrics struct {
	WorkerMessagesTotal    *prometheus.CounterVec
	DeliveriesTotal        *prometheus.CounterVec
	SupervisorRepliesTotal *prometheus.CounterVec
}

// NewMetrics registers the relay metrics once per process.
//
// Metrics:
//   - relay_worker_messages_total{category}
//   - relay_deliveries_total{outcome}
//   - relay_supervisor_replies_total{kind}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			WorkerMessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_worker_messages_total",
					Help: "Total number of worker messages relayed by category",
				},
				[]string{"category"},
			),
			DeliveriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_deliveries_total",
					Help: "Total number of supervisor deliveries by outcome",
				},
				[]string{"outcome"},
			),
			SupervisorRepliesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_supervisor_replies_total",
					Help: "Total number of inbound supervisor messages by kind",
				},
				[]string{"kind"},
			),
		}
	})
	return globalMetrics
}
