// Package metrics exposes ledger activity as Prometheus counters.
package metrics

import (
	"net/http"
	"sync"

	"safecase/backend/internal/ledger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "safecase"

// Metrics implements ledger.Recorder.
type Metrics struct {
	// Operations counts ledger operations.
	// Labels: op, result (ok or an error kind)
	Operations *prometheus.CounterVec

	// MessagesAppended counts appended messages.
	// Labels: role (citizen, police)
	MessagesAppended *prometheus.CounterVec

	// CasesOpened counts successfully opened cases.
	CasesOpened prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the metrics registered with the default Prometheus
// registry. Registration happens once per process.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total number of ledger operations by outcome",
			},
			[]string{"op", "result"},
		),
		MessagesAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_appended_total",
				Help:      "Total number of case messages appended",
			},
			[]string{"role"},
		),
		CasesOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cases_opened_total",
				Help:      "Total number of cases opened",
			},
		),
	}
}

func (m *Metrics) ObserveOperation(op string, err error) {
	m.Operations.WithLabelValues(op, ledger.ErrorKind(err)).Inc()
	if op == ledger.OpOpenCase && err == nil {
		m.CasesOpened.Inc()
	}
}

func (m *Metrics) ObserveMessage(role ledger.Role) {
	m.MessagesAppended.WithLabelValues(role.String()).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
