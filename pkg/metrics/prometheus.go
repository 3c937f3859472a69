package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the training and serving metrics.
type Collector struct {
	registry        *prometheus.Registry
	stageDuration   *prometheus.HistogramVec
	datasetRows     *prometheus.GaugeVec
	evaluation      *prometheus.GaugeVec
	predictions     *prometheus.CounterVec
	predictErrors   *prometheus.CounterVec
	predictDuration *prometheus.HistogramVec
	paddedInputs    prometheus.Counter
	logger          *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudml_stage_duration_seconds",
			Help:    "Time taken by each training pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		datasetRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fraudml_dataset_rows",
			Help: "Rows per dataset and class after each stage",
		}, []string{"set", "class"}),
		evaluation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fraudml_evaluation",
			Help: "Holdout evaluation metrics per model family",
		}, []string{"model", "metric"}),
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudml_predictions_total",
			Help: "Scored transactions by model and predicted label",
		}, []string{"model", "label"}),
		predictErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudml_prediction_errors_total",
			Help: "Failed prediction requests by model",
		}, []string{"model"}),
		predictDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudml_prediction_duration_seconds",
			Help:    "Time taken to score one request",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		paddedInputs: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraudml_padded_inputs_total",
			Help: "Transactions zero-padded to the full feature width",
		}),
		logger: logger,
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Collector) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetRows records the class balance of a dataset.
func (m *Collector) SetRows(set string, legit, fraud int) {
	m.datasetRows.WithLabelValues(set, "legit").Set(float64(legit))
	m.datasetRows.WithLabelValues(set, "fraud").Set(float64(fraud))
}

// SetEvaluation publishes the holdout metrics of one model.
func (m *Collector) SetEvaluation(model string, values map[string]float64) {
	for name, v := range values {
		m.evaluation.WithLabelValues(model, name).Set(v)
	}
}

// RecordPrediction counts scored rows and the request latency.
func (m *Collector) RecordPrediction(model string, labels []int, padded int, d time.Duration) {
	for _, l := range labels {
		if l == 1 {
			m.predictions.WithLabelValues(model, "fraud").Inc()
		} else {
			m.predictions.WithLabelValues(model, "legit").Inc()
		}
	}
	m.paddedInputs.Add(float64(padded))
	m.predictDuration.WithLabelValues(model).Observe(d.Seconds())
}

// RecordPredictionError counts a failed prediction request.
func (m *Collector) RecordPredictionError(model string) {
	m.predictErrors.WithLabelValues(model).Inc()
}

func (m *Collector) Registry() *prometheus.Registry { return m.registry }

func (m *Collector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics on addr in the background.
func (m *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

// Shutdown stops a server returned by StartMetricsServer.
func (m *Collector) Shutdown(ctx context.Context, server *http.Server) error {
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
