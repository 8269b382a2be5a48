package lib

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* This file implements dev-ops telemetry for the engine in the form of prometheus metrics */

const metricsPattern = "/metrics"

// Metrics represents a server that exposes Prometheus metrics
// a nil *Metrics is valid and records nothing
type Metrics struct {
	server   *http.Server         // the http prometheus server
	config   MetricsConfig        // the configuration
	registry *prometheus.Registry // the collector registry owned by this server
	log      LoggerI              // the logger

	NodeMetrics // general telemetry about the node
	DexMetrics  // settlement telemetry
}

// NodeMetrics represents general telemetry for the node's health
type NodeMetrics struct {
	NodeStatus          prometheus.Gauge     // is the node alive?
	Height              prometheus.Gauge     // what's the last applied height?
	BlockProcessingTime prometheus.Histogram // how long does it take to apply a block?
}

// DexMetrics represents the telemetry of the settlement engine
type DexMetrics struct {
	BatchDuration     prometheus.Histogram   // how long does it take to settle one pair?
	RouteFillDuration prometheus.Histogram   // how long does it take to fill one route?
	PositionsOpened   prometheus.Counter     // how many positions were opened?
	PositionsClosed   prometheus.Counter     // how many positions were closed?
	ArbSurplus        prometheus.Counter     // how much value was captured by arbitrage?
	VCBBalance        *prometheus.GaugeVec   // what's the circuit breaker balance per asset?
	ActionsRejected   *prometheus.CounterVec // how many actions were rejected, per action type?
}

// NewMetricsServer() creates a new telemetry server
func NewMetricsServer(config MetricsConfig, log LoggerI) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &Metrics{
		server:   &http.Server{Addr: config.PrometheusAddress, Handler: mux},
		config:   config,
		registry: registry,
		log:      log,
		NodeMetrics: NodeMetrics{
			NodeStatus: factory.NewGauge(prometheus.GaugeOpts{
				Name: "batchdex_node_status",
				Help: "The node is alive and processing blocks",
			}),
			Height: factory.NewGauge(prometheus.GaugeOpts{
				Name: "batchdex_height",
				Help: "The last applied block height",
			}),
			BlockProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "batchdex_block_processing_time",
				Help: "Time to apply a block in seconds",
			}),
		},
		DexMetrics: DexMetrics{
			BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "batchdex_batch_duration_seconds",
				Help: "Time to settle the batch of a single trading pair",
			}),
			RouteFillDuration: factory.NewHistogram(prometheus.HistogramOpts{
				Name:    "batchdex_route_fill_duration_seconds",
				Help:    "Time to fill a single route",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			}),
			PositionsOpened: factory.NewCounter(prometheus.CounterOpts{
				Name: "batchdex_positions_opened_total",
				Help: "Number of liquidity positions opened",
			}),
			PositionsClosed: factory.NewCounter(prometheus.CounterOpts{
				Name: "batchdex_positions_closed_total",
				Help: "Number of liquidity positions closed",
			}),
			ArbSurplus: factory.NewCounter(prometheus.CounterOpts{
				Name: "batchdex_arb_surplus_total",
				Help: "Total staking token surplus captured by arbitrage",
			}),
			VCBBalance: factory.NewGaugeVec(prometheus.GaugeOpts{
				Name: "batchdex_vcb_balance",
				Help: "Value circuit breaker balance per asset",
			}, []string{"asset"}),
			ActionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "batchdex_actions_rejected_total",
				Help: "Number of rejected actions per action type",
			}, []string{"action"}),
		},
	}
}

// Start() starts the telemetry server
func (m *Metrics) Start() {
	if m == nil || !m.config.MetricsEnabled {
		return
	}
	m.NodeStatus.Set(1)
	go func() {
		m.log.Infof("Starting metrics server on %s", m.config.PrometheusAddress)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("Metrics server failed with err: %s", err.Error())
		}
	}()
}

// Stop() gracefully stops the telemetry server
func (m *Metrics) Stop() {
	if m == nil || !m.config.MetricsEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.log.Error(err.Error())
	}
}

// UpdateBlockMetrics() records the height and the processing time of an applied block
func (m *Metrics) UpdateBlockMetrics(height uint64, duration time.Duration) {
	if m == nil {
		return
	}
	m.Height.Set(float64(height))
	m.BlockProcessingTime.Observe(duration.Seconds())
}

// ObserveBatch() records the settlement time of a single pair
func (m *Metrics) ObserveBatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(duration.Seconds())
}

// ObserveRouteFill() records the time to fill a single route
func (m *Metrics) ObserveRouteFill(duration time.Duration) {
	if m == nil {
		return
	}
	m.RouteFillDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncPositionsOpened() {
	if m != nil {
		m.PositionsOpened.Inc()
	}
}

func (m *Metrics) IncPositionsClosed() {
	if m != nil {
		m.PositionsClosed.Inc()
	}
}

func (m *Metrics) AddArbSurplus(amount uint64) {
	if m != nil {
		m.ArbSurplus.Add(float64(amount))
	}
}

// SetVCBBalance() records the circuit breaker balance of an asset
func (m *Metrics) SetVCBBalance(asset string, balance uint64) {
	if m != nil {
		m.VCBBalance.WithLabelValues(asset).Set(float64(balance))
	}
}

// IncActionRejected() counts a rejected action by type
func (m *Metrics) IncActionRejected(action string) {
	if m != nil {
		m.ActionsRejected.WithLabelValues(action).Inc()
	}
}
