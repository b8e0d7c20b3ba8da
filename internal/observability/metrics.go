package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service's Prometheus collectors. Handlers and workers
// share one instance; a nil receiver is a no-op so tests can skip wiring it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	automationEvents *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	readyFleet       prometheus.Gauge
	openStockout     prometheus.Gauge
	backlogTickets   prometheus.Gauge
	qcPassRate       prometheus.Gauge
}

// NewMetrics builds and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"path", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rmbot_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		httpErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_http_errors_total",
				Help: "Total number of requests that ended in a domain error",
			},
			[]string{"path", "method", "code"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_workflow_transitions_total",
				Help: "Total number of committed ticket workflow transitions",
			},
			[]string{"action"},
		),
		automationEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_automation_events_total",
				Help: "Total number of automation events recorded",
			},
			[]string{"rule", "kind"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmbot_escalation_deliveries_total",
				Help: "Total number of escalation delivery attempts",
			},
			[]string{"channel", "outcome"},
		),
		readyFleet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmbot_ready_fleet_count",
			Help: "Inventory items currently in READY state",
		}),
		openStockout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmbot_open_stockout",
			Help: "1 while a stockout incident is open, else 0",
		}),
		backlogTickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmbot_backlog_tickets",
			Help: "Open tickets not yet DONE",
		}),
		qcPassRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmbot_qc_pass_rate",
			Help: "Rolling QC pass rate over the evaluation window",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.httpErrors,
		m.transitions,
		m.automationEvents,
		m.deliveries,
		m.readyFleet,
		m.openStockout,
		m.backlogTickets,
		m.qcPassRate,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts one committed workflow action.
func (m *Metrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

// RecordAutomationEvent counts one evaluator event.
func (m *Metrics) RecordAutomationEvent(rule, kind string) {
	if m == nil {
		return
	}
	m.automationEvents.WithLabelValues(rule, kind).Inc()
}

// RecordDelivery counts one escalation delivery attempt.
func (m *Metrics) RecordDelivery(channel, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
}

// SetReadyFleet publishes the current READY inventory count.
func (m *Metrics) SetReadyFleet(n int) {
	if m == nil {
		return
	}
	m.readyFleet.Set(float64(n))
}

// SetOpenStockout publishes whether a stockout incident is open.
func (m *Metrics) SetOpenStockout(open bool) {
	if m == nil {
		return
	}
	if open {
		m.openStockout.Set(1)
	} else {
		m.openStockout.Set(0)
	}
}

// SetBacklog publishes the open ticket count.
func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.backlogTickets.Set(float64(n))
}

// SetQCPassRate publishes the rolling QC pass rate.
func (m *Metrics) SetQCPassRate(rate float64) {
	if m == nil {
		return
	}
	m.qcPassRate.Set(rate)
}
