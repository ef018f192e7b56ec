package approval

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Command outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics holds Prometheus metrics for supervisor commands.
type Metrics struct {
	CommandsTotal             *prometheus.CounterVec
	NotificationFailuresTotal prometheus.Counter
}

// NewMetrics registers the approval metrics once per process.
//
// Metrics:
//   - approval_commands_total{command,outcome}
//   - approval_notification_failures_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			CommandsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "approval_commands_total",
					Help: "Total number of supervisor commands by command and outcome",
				},
				[]string{"command", "outcome"},
			),
			NotificationFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "approval_notification_failures_total",
				Help: "Total number of committed transitions whose worker notification failed",
			}),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(cmd Command, outcome string) {
	m.CommandsTotal.WithLabelValues(string(cmd), outcome).Inc()
}
