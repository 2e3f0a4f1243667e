// Package metric holds the gateway's Prometheus collectors.
package metric

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metrics contains the gateway metrics. A nil *Metrics records nothing.
type Metrics struct {
	QueriesTotal     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
	CacheBuilds      *prometheus.CounterVec
	CacheElements    *prometheus.GaugeVec
	SessionEvictions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sparqlgw",
				Name:      "queries_total",
				Help:      "Total number of queries executed, by backend kind, query type and outcome",
			},
			[]string{"kind", "query_type", "status"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sparqlgw",
				Name:      "query_duration_seconds",
				Help:      "Query execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		CacheBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sparqlgw",
				Subsystem: "cache",
				Name:      "builds_total",
				Help:      "Total number of ontology cache builds, by outcome",
			},
			[]string{"status"},
		),

		CacheElements: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sparqlgw",
				Subsystem: "cache",
				Name:      "elements",
				Help:      "Number of elements in the most recently built cache",
			},
			[]string{"backend"},
		),

		SessionEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sparqlgw",
				Subsystem: "session",
				Name:      "evictions_total",
				Help:      "Total number of cached sessions dropped when a backend was forgotten",
			},
			[]string{"backend"},
		),
	}

	for _, c := range []prometheus.Collector{m.QueriesTotal, m.QueryDuration, m.CacheBuilds, m.CacheElements, m.SessionEvictions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return m, nil
}

// RecordQuery counts one query and observes its duration.
func (m *Metrics) RecordQuery(kind, queryType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, queryType, status).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordCacheBuild counts one cache build. elements is only recorded for
// successful builds.
func (m *Metrics) RecordCacheBuild(backendID, status string, elements int) {
	if m == nil {
		return
	}
	m.CacheBuilds.WithLabelValues(status).Inc()
	if status == "ok" {
		m.CacheElements.WithLabelValues(backendID).Set(float64(elements))
	}
}

// ForgetBackend drops per-backend series and counts evicted sessions.
func (m *Metrics) ForgetBackend(backendID string, evicted int) {
	if m == nil {
		return
	}
	m.CacheElements.DeleteLabelValues(backendID)
	if evicted > 0 {
		m.SessionEvictions.WithLabelValues(backendID).Add(float64(evicted))
	}
}

// WriteText writes every metric family gathered from g in the text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Totals gathers g and sums each counter or gauge family across its labels,
// keyed by family name.
func Totals(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		switch mf.GetType() {
		case dto.MetricType_COUNTER, dto.MetricType_GAUGE:
			out[mf.GetName()] = count(mf)
		}
	}
	return out, nil
}

func count(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.GetCounter() != nil:
			total += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			total += m.GetGauge().GetValue()
		}
	}
	return total
}
