package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports cache counters. A nil *Metrics records nothing.
type Metrics struct {
	lookups      *prometheus.CounterVec
	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	evictions    *prometheus.CounterVec
}

// NewMetrics registers the cache collectors on reg, reusing collectors that
// are already registered under the same names.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "ticketing"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "loads_total",
			Help:      "Loader invocations by outcome.",
		}, []string{"outcome"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "load_duration_seconds",
			Help:      "Latency of cache loaders.",
			Buckets:   prometheus.DefBuckets,
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries dropped by reason.",
		}, []string{"reason"}),
	}
	if err := register(reg, &m.lookups, &m.loads, &m.evictions); err != nil {
		return nil, err
	}
	if err := reg.Register(m.loadDuration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register cache metric: %w", err)
		}
		m.loadDuration = are.ExistingCollector.(prometheus.Histogram)
	}
	return m, nil
}

func register(reg prometheus.Registerer, vecs ...**prometheus.CounterVec) error {
	for _, vec := range vecs {
		if err := reg.Register(*vec); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return fmt.Errorf("register cache metric: %w", err)
			}
			*vec = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return nil
}

func (m *Metrics) hit() {
	if m != nil {
		m.lookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.lookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) loaded(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.loadDuration.Observe(d.Seconds())
	if err != nil {
		m.loads.WithLabelValues("error").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
}

func (m *Metrics) evicted(reason string, n int) {
	if m != nil {
		m.evictions.WithLabelValues(reason).Add(float64(n))
	}
}
