// Package metrics exposes the Prometheus collectors for prospector.
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/target/prospector/internal/observability/errors"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNoop     = "noop"
	ResultConflict = "conflict"
)

// Job event label values.
const (
	JobReserved = "reserved"
	JobAcked    = "acked"
	JobRetried  = "retried"
	JobDead     = "dead"
	JobRequeued = "requeued"
	JobDeleted  = "deleted"
)

// Metrics holds every collector the service emits.
type Metrics struct {
	registry *prometheus.Registry

	runsDispatched   *prometheus.CounterVec
	runTransitions   *prometheus.CounterVec
	jobEvents        *prometheus.CounterVec
	changesPublished *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	clients          prometheus.Gauge
	subscriptions    prometheus.Gauge
	clientDrops      *prometheus.CounterVec
	fanoutSeconds    *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	reaperCycles     *prometheus.CounterVec
	reaperSeconds    prometheus.Histogram
	reaperLastOK     prometheus.Gauge
}

// New registers the collectors under namespace on a fresh registry that
// also carries the Go and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		runsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_dispatched_total",
			Help:      "Runs created with their job, labeled by result.",
		}, []string{"result"}),
		runTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_transitions_total",
			Help:      "Worker status reports, labeled by target status and result.",
		}, []string{"status", "result"}),
		jobEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Queue lifecycle events, labeled by event.",
		}, []string{"event"}),
		changesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_published_total",
			Help:      "Change events handed to the feed, labeled by table and operation.",
		}, []string{"table", "operation"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_publish_failures_total",
			Help:      "Change events the feed failed to publish after the write committed.",
		}, []string{"table", "error_class"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_clients",
			Help:      "Connected realtime clients.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscriptions",
			Help:      "Active table subscriptions.",
		}),
		clientDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_client_drops_total",
			Help:      "Clients closed by the server, labeled by reason.",
		}, []string{"reason"}),
		fanoutSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "realtime_fanout_seconds",
			Help:      "Time to fan one event out to every matching client.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"table"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, labeled by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies, labeled by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		}, []string{"method", "route"}),
		reaperCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_cycles_total",
			Help:      "Reaper passes, labeled by result.",
		}, []string{"result"}),
		reaperSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaper_cycle_duration_seconds",
			Help:      "Duration of one reaper pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		reaperLastOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reaper_last_success_timestamp_seconds",
			Help:      "Unix time of the last reaper pass without errors.",
		}),
	}
	reg.MustRegister(
		m.runsDispatched, m.runTransitions, m.jobEvents, m.changesPublished, m.publishFailures,
		m.clients, m.subscriptions, m.clientDrops, m.fanoutSeconds, m.httpRequests, m.httpDuration,
		m.reaperCycles, m.reaperSeconds, m.reaperLastOK,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RunDispatched counts one StartRun outcome.
func (m *Metrics) RunDispatched(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.runsDispatched.WithLabelValues(result).Inc()
}

// RunTransition counts one worker status report.
func (m *Metrics) RunTransition(status, result string) {
	if m == nil {
		return
	}
	m.runTransitions.WithLabelValues(status, result).Inc()
}

// JobEvent counts n queue events of one kind.
func (m *Metrics) JobEvent(event string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.jobEvents.WithLabelValues(event).Add(float64(n))
}

// ChangePublished counts a change event handed to the feed.
func (m *Metrics) ChangePublished(table, operation string) {
	if m == nil {
		return
	}
	m.changesPublished.WithLabelValues(table, operation).Inc()
}

// PublishFailed counts a change event that could not be published.
func (m *Metrics) PublishFailed(table string, err error) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(table, obserrors.Classify(err)).Inc()
}

// ClientConnected adjusts the connected client gauge by delta.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.clients.Add(float64(delta))
}

// SubscriptionsChanged adjusts the subscription gauge by delta.
func (m *Metrics) SubscriptionsChanged(delta int) {
	if m == nil {
		return
	}
	m.subscriptions.Add(float64(delta))
}

// ClientDropped counts a server-initiated client close.
func (m *Metrics) ClientDropped(reason string) {
	if m == nil {
		return
	}
	m.clientDrops.WithLabelValues(reason).Inc()
}

// ObserveFanout records how long one event took to fan out.
func (m *Metrics) ObserveFanout(table string, d time.Duration) {
	if m == nil {
		return
	}
	m.fanoutSeconds.WithLabelValues(table).Observe(d.Seconds())
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ReaperCycle records one reaper pass.
func (m *Metrics) ReaperCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.reaperCycles.WithLabelValues(result).Inc()
	m.reaperSeconds.Observe(d.Seconds())
	if result != ResultError {
		m.reaperLastOK.SetToCurrentTime()
	}
}
