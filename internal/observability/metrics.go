// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backtester.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Sweep metrics
	TasksPlanned         prometheus.Gauge
	TasksFinished        *prometheus.CounterVec
	TaskDuration         prometheus.Histogram
	WorkersActive        prometheus.Gauge
	EstimatedSecondsLeft prometheus.Gauge

	// Simulation metrics
	TicksProcessed prometheus.Counter
	TradesClosed   *prometheus.CounterVec
	OrdersRejected *prometheus.CounterVec

	// History metrics
	BarsLoaded  prometheus.Gauge
	HistoryGaps *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "fx_backtester"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Sweep metrics
		TasksPlanned: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "tasks_planned",
			Help:      "Number of parameter assignments planned for the current sweep (0 if unknown)",
		}),
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "tasks_finished_total",
			Help:      "Total number of finished simulation tasks by result",
		}, []string{"result"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "task_duration_seconds",
			Help:      "Duration of one simulation task",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		WorkersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "workers_active",
			Help:      "Number of running worker threads",
		}),
		EstimatedSecondsLeft: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "estimated_seconds_left",
			Help:      "Estimated time to finish the sweep",
		}),

		// Simulation metrics
		TicksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "ticks_processed_total",
			Help:      "Total number of synthesized ticks processed",
		}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by close reason",
		}, []string{"reason"}),
		OrdersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "orders_rejected_total",
			Help:      "Total number of strategy orders rejected by the broker",
		}, []string{"order"}),

		// History metrics
		BarsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "bars_loaded",
			Help:      "Number of 1-minute bars in the loaded history",
		}),
		HistoryGaps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "gaps_total",
			Help:      "Number of history gaps by kind (fixed or real)",
		}, []string{"kind"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSweep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of the last finished sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the metrics instance registered with the default registry.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordHistory records the size and gaps of a loaded history.
func (m *Metrics) RecordHistory(bars, fixedGaps, realGaps int) {
	if m == nil {
		return
	}
	m.BarsLoaded.Set(float64(bars))
	m.HistoryGaps.WithLabelValues("fixed").Add(float64(fixedGaps))
	m.HistoryGaps.WithLabelValues("real").Add(float64(realGaps))
}

// RecordSweepStart records the planned task count and worker count.
func (m *Metrics) RecordSweepStart(tasks, workers int) {
	if m == nil {
		return
	}
	m.TasksPlanned.Set(float64(tasks))
	m.WorkersActive.Set(float64(workers))
}

// RecordSweepEnd marks the sweep as finished.
func (m *Metrics) RecordSweepEnd() {
	if m == nil {
		return
	}
	m.WorkersActive.Set(0)
	m.EstimatedSecondsLeft.Set(0)
	m.LastSuccessfulSweep.Set(float64(time.Now().Unix()))
}

// RecordTask records a finished task.
func (m *Metrics) RecordTask(failed bool, duration, left time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if failed {
		result = "failed"
	}
	m.TasksFinished.WithLabelValues(result).Inc()
	m.TaskDuration.Observe(duration.Seconds())
	m.EstimatedSecondsLeft.Set(left.Seconds())
}

// RecordTicks adds processed ticks.
func (m *Metrics) RecordTicks(n int) {
	if m == nil {
		return
	}
	m.TicksProcessed.Add(float64(n))
}

// RecordTradeClosed records a closed trade.
func (m *Metrics) RecordTradeClosed(reason string) {
	if m == nil {
		return
	}
	m.TradesClosed.WithLabelValues(reason).Inc()
}

// RecordOrderRejected records an order rejected by the broker.
func (m *Metrics) RecordOrderRejected(order string) {
	if m == nil {
		return
	}
	m.OrdersRejected.WithLabelValues(order).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
