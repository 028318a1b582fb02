package txn

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transaction attempts and retries. A nil *Metrics is a no-op.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  prometheus.Counter
	duration *prometheus.HistogramVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "ticketing"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "attempts_total",
			Help:      "Transaction attempts by mode and outcome.",
		}, []string{"read_only", "outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "retries_total",
			Help:      "Transaction attempts that were retried.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of a single transaction attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"read_only"}),
	}
	for _, c := range []prometheus.Collector{m.attempts, m.retries, m.duration} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register txn metric: %w", err)
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				m.attempts = existing
			case prometheus.Counter:
				m.retries = existing
			case *prometheus.HistogramVec:
				m.duration = existing
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(readOnly bool, d time.Duration, err error) {
	if m == nil {
		return
	}
	ro := strconv.FormatBool(readOnly)
	outcome := "committed"
	if err != nil {
		outcome = "failed"
	}
	m.attempts.WithLabelValues(ro, outcome).Inc()
	m.duration.WithLabelValues(ro).Observe(d.Seconds())
}

func (m *Metrics) retried() {
	if m != nil {
		m.retries.Inc()
	}
}
