package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Eviction reasons.
const (
	ReasonExpired  = "expired"
	ReasonCapacity = "capacity"
)

// Metrics holds the server's Prometheus collectors, registered on a private
// registry so tests can run many servers in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	storeSize      prometheus.Gauge
	evictionsTotal *prometheus.CounterVec
	snapshotWrites prometheus.Counter
}

// New creates and registers the server's collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atomweather_requests_total",
			Help: "Requests handled, by method and response status.",
		}, []string{"method", "status"}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atomweather_store_size",
			Help: "Number of station entries currently held in the store.",
		}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atomweather_evictions_total",
			Help: "Store evictions, by reason (expired or capacity).",
		}, []string{"reason"}),
		snapshotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atomweather_snapshot_writes_total",
			Help: "Completed snapshot flushes to disk.",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.storeSize,
		m.evictionsTotal,
		m.snapshotWrites,
	)
	return m
}

// Handler returns the /metrics handler for the admin listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one handled request.
func (m *Metrics) ObserveRequest(method string, status int) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// SetStoreSize records the current number of store entries.
func (m *Metrics) SetStoreSize(n int) {
	m.storeSize.Set(float64(n))
}

// ObserveEvictions counts n evictions for the given reason.
func (m *Metrics) ObserveEvictions(reason string, n int) {
	if n > 0 {
		m.evictionsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveSnapshotWrite counts one completed snapshot flush.
func (m *Metrics) ObserveSnapshotWrite() {
	m.snapshotWrites.Inc()
}
