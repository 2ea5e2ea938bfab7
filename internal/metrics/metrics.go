// Package metrics exposes Prometheus collectors for the AIRAC service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zapponejosh/airac-api/internal/airac"
)

const metricPrefix = "airac_"

// Metrics holds the service collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lookups      *prometheus.CounterVec
	rollovers    prometheus.Counter
	currentSeq   prometheus.Gauge
	currentStart prometheus.Gauge
	currentEnd   prometheus.Gauge
	currentIdent *prometheus.GaugeVec

	mu            sync.Mutex
	lastIdentSeen string
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "cycle_lookups_total",
			Help: "Cycle computations by kind (current, date, next, previous, year, range)",
		}, []string{"kind"}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rollovers_observed_total",
			Help: "Times the scheduler observed a new effective cycle",
		}),
		currentSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "current_cycle_sequence",
			Help: "Sequence number within its year of the effective cycle",
		}),
		currentStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "current_cycle_start_timestamp_seconds",
			Help: "Start of the effective cycle as a Unix timestamp",
		}),
		currentEnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "current_cycle_end_timestamp_seconds",
			Help: "End (exclusive) of the effective cycle as a Unix timestamp",
		}),
		currentIdent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "current_cycle_info",
			Help: "Always 1, labelled with the identifier of the effective cycle",
		}, []string{"ident"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.lookups,
		m.rollovers,
		m.currentSeq,
		m.currentStart,
		m.currentEnd,
		m.currentIdent,
	)

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// CountLookup records a cycle computation of the given kind.
func (m *Metrics) CountLookup(kind string) {
	m.lookups.WithLabelValues(kind).Inc()
}

// SetCurrent publishes c as the effective cycle. It reports whether c
// differs from the cycle published before, counting a rollover when it does
// (the first publication is not a rollover).
func (m *Metrics) SetCurrent(c airac.Cycle) bool {
	ident := c.Ident()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentSeq.Set(float64(c.Sequence()))
	m.currentStart.Set(float64(c.Starts().Unix()))
	m.currentEnd.Set(float64(c.Ends().Unix()))

	if ident == m.lastIdentSeen {
		return false
	}

	m.currentIdent.Reset()
	m.currentIdent.WithLabelValues(ident).Set(1)

	changed := m.lastIdentSeen != ""
	if changed {
		m.rollovers.Inc()
	}
	m.lastIdentSeen = ident
	return changed
}
