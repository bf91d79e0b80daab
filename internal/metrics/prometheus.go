package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector for Prometheus.
type PrometheusCollector struct {
	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	syncItems       *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
	statusRefreshes *prometheus.CounterVec
	gatewayCalls    *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_sync_runs_total",
				Help:      "Total number of catalog sync runs by result",
			},
			[]string{"result"},
		),
		syncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_sync_duration_seconds",
				Help:      "Catalog sync run duration",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		syncItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_sync_items_total",
				Help:      "Catalog items processed by outcome",
			},
			[]string{"outcome"},
		),
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkouts_total",
				Help:      "Checkout submissions by result",
			},
			[]string{"result"},
		),
		checkoutLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "checkout_duration_seconds",
				Help:      "Checkout orchestration latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		statusRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_status_refreshes_total",
				Help:      "Transaction status refreshes by resulting status",
			},
			[]string{"status"},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Calls to external gateways",
			},
			[]string{"gateway", "op", "status"},
		),
		gatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "External gateway call latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"gateway", "op"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_circuit_state",
				Help:      "Gateway circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"gateway"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.syncRuns,
		pc.syncDuration,
		pc.syncItems,
		pc.checkouts,
		pc.checkoutLatency,
		pc.statusRefreshes,
		pc.gatewayCalls,
		pc.gatewayLatency,
		pc.circuitState,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordSyncRun records one completed or aborted sync run.
func (pc *PrometheusCollector) RecordSyncRun(success bool, duration time.Duration) {
	pc.syncRuns.WithLabelValues(resultLabel(success)).Inc()
	pc.syncDuration.Observe(duration.Seconds())
}

// RecordSyncItem records the outcome of one catalog item.
func (pc *PrometheusCollector) RecordSyncItem(outcome string) {
	pc.syncItems.WithLabelValues(outcome).Inc()
}

// RecordCheckout records a checkout submission.
func (pc *PrometheusCollector) RecordCheckout(result string, duration time.Duration) {
	pc.checkouts.WithLabelValues(result).Inc()
	pc.checkoutLatency.Observe(duration.Seconds())
}

// RecordStatusRefresh records the status observed by a refresh.
func (pc *PrometheusCollector) RecordStatusRefresh(status string) {
	pc.statusRefreshes.WithLabelValues(status).Inc()
}

// RecordGatewayCall records a call to Digiflazz or TokoPay.
func (pc *PrometheusCollector) RecordGatewayCall(gateway, op string, success bool, duration time.Duration) {
	pc.gatewayCalls.WithLabelValues(gateway, op, resultLabel(success)).Inc()
	pc.gatewayLatency.WithLabelValues(gateway, op).Observe(duration.Seconds())
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(gateway string, state CircuitState) {
	pc.circuitState.WithLabelValues(gateway).Set(float64(state))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
