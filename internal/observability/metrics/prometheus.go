// Package metrics exposes search and run metrics through Prometheus, either
// scraped from an HTTP endpoint or pushed to a gateway at the end of a batch
// run.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/search"
	"github.com/inferloop/tabanon/pkg/constants"
)

// Config configures metrics collection and exposition
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// ListenAddress serves /metrics and /healthz when set, e.g. ":9090"
	ListenAddress string `json:"listen_address" yaml:"listen_address" mapstructure:"listen_address"`
	Path          string `json:"path" yaml:"path" mapstructure:"path"`
	Namespace     string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	Subsystem     string `json:"subsystem" yaml:"subsystem" mapstructure:"subsystem"`
	// PushGateway receives the final metrics of a run when set
	PushGateway string `json:"push_gateway" yaml:"push_gateway" mapstructure:"push_gateway"`
	Job         string `json:"job" yaml:"job" mapstructure:"job"`
}

// Metrics holds the collectors of one process
type Metrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *Config
	server   *http.Server
	mu       sync.Mutex

	nodesTotal        *prometheus.CounterVec
	nodeDuration      prometheus.Histogram
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	bestLoss          prometheus.Gauge
	suppressedRecords prometheus.Gauge
	recordsAtRisk     prometheus.Gauge
	highestRisk       prometheus.Gauge
	averageRisk       prometheus.Gauge
	storageOpsTotal   *prometheus.CounterVec
	storageDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector on a private registry
func NewMetrics(config *Config, logger *logrus.Logger) (*Metrics, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		config.Path = constants.DefaultMetricsPath
	}
	if config.Job == "" {
		config.Job = constants.AppName
	}
	if logger == nil {
		logger = logrus.New()
	}

	m := &Metrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}
	m.initializeMetrics()
	if err := m.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

// DefaultConfig returns an enabled configuration without server or gateway
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Path:      constants.DefaultMetricsPath,
		Namespace: constants.MetricsNamespace,
		Subsystem: constants.MetricsSubsystem,
		Job:       constants.AppName,
	}
}

func (m *Metrics) initializeMetrics() {
	ns, sub := m.config.Namespace, m.config.Subsystem

	m.nodesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "nodes_total",
		Help:      "Lattice nodes visited, by verdict",
	}, []string{"verdict"})

	m.nodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "node_evaluation_duration_seconds",
		Help:      "Time spent classifying and checking one node",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "runs_total",
		Help:      "Anonymization runs, by outcome",
	}, []string{"status"})

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "run_duration_seconds",
		Help:      "Wall time of an anonymization run",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	m.bestLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "result_loss",
		Help:      "Loss of the last released transformation",
	})

	m.suppressedRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: sub,
		Name:      "result_suppressed_records",
		Help:      "Records suppressed in the last release",
	})

	m.recordsAtRisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "risk_records_at_risk",
		Help:      "Released records above the risk threshold",
	})

	m.highestRisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "risk_highest",
		Help:      "Highest re-identification risk of the last release",
	})

	m.averageRisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "risk_average",
		Help:      "Average re-identification risk of the last release",
	})

	m.storageOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "storage_operations_total",
		Help:      "Sink operations, by backend and outcome",
	}, []string{"backend", "operation", "status"})

	m.storageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "storage_operation_duration_seconds",
		Help:      "Sink operation duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "operation"})
}

func (m *Metrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		m.nodesTotal,
		m.nodeDuration,
		m.runsTotal,
		m.runDuration,
		m.bestLoss,
		m.suppressedRecords,
		m.recordsAtRisk,
		m.highestRisk,
		m.averageRisk,
		m.storageOpsTotal,
		m.storageDuration,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NodeEvaluated implements search.Observer
func (m *Metrics) NodeEvaluated(ev search.Evaluation) {
	m.nodesTotal.WithLabelValues(string(ev.Verdict)).Inc()
	if ev.Duration > 0 {
		m.nodeDuration.Observe(ev.Duration.Seconds())
	}
}

// RecordRun records the outcome of one anonymization run
func (m *Metrics) RecordRun(status string, duration time.Duration, loss float64, suppressed int) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	if status == "success" {
		m.bestLoss.Set(loss)
		m.suppressedRecords.Set(float64(suppressed))
	}
}

// RecordRisk publishes a risk summary
func (m *Metrics) RecordRisk(summary *risk.Summary) {
	m.recordsAtRisk.Set(float64(summary.RecordsAtRisk))
	m.highestRisk.Set(summary.HighestRisk)
	m.averageRisk.Set(summary.AverageRisk)
}

// RecordStorageOperation records one sink write
func (m *Metrics) RecordStorageOperation(backend, operation, status string, duration time.Duration) {
	m.storageOpsTotal.WithLabelValues(backend, operation, status).Inc()
	m.storageDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// Handler routes the metrics and health endpoints
func (m *Metrics) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle(m.config.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})).Methods(http.MethodGet)
	router.HandleFunc(constants.DefaultHealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q,"version":%q}`, constants.AppName, constants.AppVersion)
	}).Methods(http.MethodGet)
	return router
}

// Start serves the endpoints on ListenAddress in the background. It is a
// no-op when metrics are disabled or no address is set.
func (m *Metrics) Start(ctx context.Context) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	m.mu.Lock()
	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := m.server
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"address": m.config.ListenAddress,
		"path":    m.config.Path,
	}).Info("Starting metrics server")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.WithError(err).Error("Metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		_ = m.Stop(shutdownCtx)
	}()
	return nil
}

// Stop shuts the server down
func (m *Metrics) Stop(ctx context.Context) error {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()
	if server == nil {
		return nil
	}
	m.logger.Info("Stopping metrics server")
	return server.Shutdown(ctx)
}

// Push sends every collected metric to the configured gateway
func (m *Metrics) Push(ctx context.Context) error {
	if !m.config.Enabled || m.config.PushGateway == "" {
		return nil
	}
	err := push.New(m.config.PushGateway, m.config.Job).
		Gatherer(m.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", m.config.PushGateway, err)
	}
	m.logger.WithFields(logrus.Fields{
		"gateway": m.config.PushGateway,
		"job":     m.config.Job,
	}).Debug("Pushed metrics")
	return nil
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
