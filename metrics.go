package wire

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation for the copy manager (C11),
// the domain-stack wiring named in SPEC_FULL.md's copy manager detail
// section. A single Metrics instance is safe to share across connections.
type Metrics struct {
	copyRows  *prometheus.CounterVec
	copyBytes *prometheus.CounterVec
}

// NewMetrics constructs and registers the copy manager counters against reg.
// Pass prometheus.DefaultRegisterer to expose them on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		copyRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pg_copy_rows_total",
			Help: "Total number of rows transferred through the copy manager, by direction.",
		}, []string{"direction"}),
		copyBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pg_copy_bytes_total",
			Help: "Total number of bytes transferred through the copy manager, by direction.",
		}, []string{"direction"}),
	}

	if reg != nil {
		reg.MustRegister(m.copyRows, m.copyBytes)
	}

	return m
}

func (m *Metrics) observeCopy(direction string, rows int, bytes int) {
	if m == nil {
		return
	}
	m.copyRows.WithLabelValues(direction).Add(float64(rows))
	m.copyBytes.WithLabelValues(direction).Add(float64(bytes))
}
