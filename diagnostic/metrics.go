package diagnostic

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts diagnostics by kind before passing them on to next.
type Metrics struct {
	next    Sink
	counter *prometheus.CounterVec
}

// NewMetrics registers a "<namespace>_diagnostics_total" counter with reg.
// If an identical collector is already registered it is reused. next may be
// nil.
func NewMetrics(reg prometheus.Registerer, namespace string, next Sink) (*Metrics, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnostics_total",
		Help:      "Failed requests by diagnostic kind.",
	}, []string{"kind"})

	if err := reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}
	return &Metrics{next: next, counter: counter}, nil
}

func (m *Metrics) Record(d Diagnostic) {
	m.counter.WithLabelValues(string(d.Kind)).Inc()
	if m.next != nil {
		m.next.Record(d)
	}
}
