package auth

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts auth outcomes by operation.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics registers the auth collectors with reg, reusing an existing
// collector when one is already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kinder",
		Subsystem: "auth",
		Name:      "outcomes_total",
		Help:      "Auth operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	if err := reg.Register(outcomes); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register auth outcomes collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing auth outcomes collector has unexpected type %T", already.ExistingCollector)
		}
		outcomes = existing
	}
	return &Metrics{outcomes: outcomes}, nil
}

func (m *Metrics) record(operation, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
}
