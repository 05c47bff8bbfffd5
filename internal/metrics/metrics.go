// Package metrics provides Prometheus metrics collection for the valuation
// server. It defines the model, valuation and dashboard metrics exposed on
// the dedicated metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the valuation server.
type Metrics struct {
	// Model metrics
	MLPredictions      prometheus.Counter   // Total number of model predictions made
	MLFailures         prometheus.Counter   // Total number of model prediction failures
	MLModelAge         prometheus.Gauge     // Seconds since the loaded model was trained
	MLLatency          prometheus.Histogram // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram // Distribution of raw estimates in GBP
	ArtifactLoad       prometheus.Histogram // Time taken to load model artifacts
	ModelLoaded        prometheus.Gauge     // 1 when artifacts are loaded, 0 when offline

	// Valuation metrics
	Valuations            *prometheus.CounterVec // Completed valuations by region
	ValuationFailures     *prometheus.CounterVec // Failed valuations by reason
	Verdicts              *prometheus.CounterVec // Comparison verdicts
	ComparisonUnavailable prometheus.Counter     // Valuations without enough comparables

	// Dashboard metrics
	WSClients    prometheus.Gauge       // Connected WebSocket clients
	HTTPRequests *prometheus.CounterVec // Dashboard requests by route and status
	ChartRenders prometheus.Counter     // Distribution charts rendered
	ErrorsTotal  prometheus.Counter     // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of model predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of model prediction failures",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Seconds since the loaded model was trained",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Model prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_gbp",
			Help:    "Distribution of model estimates in GBP",
			Buckets: prometheus.ExponentialBuckets(1000, 1.5, 12),
		}),
		ArtifactLoad: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "artifact_load_seconds",
			Help:    "Time taken to load model artifacts and the reference sample",
			Buckets: prometheus.DefBuckets,
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "1 when model artifacts are loaded, 0 when the server is offline",
		}),
		Valuations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "valuations_total",
			Help: "Total number of completed valuations",
		}, []string{"region"}),
		ValuationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "valuation_failures_total",
			Help: "Total number of failed valuations",
		}, []string{"reason"}),
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "valuation_verdicts_total",
			Help: "Market comparison verdicts",
		}, []string{"verdict"}),
		ComparisonUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "comparison_unavailable_total",
			Help: "Valuations with too few comparable sales for a market comparison",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Connected dashboard WebSocket clients",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Dashboard HTTP requests",
		}, []string{"route", "code"}),
		ChartRenders: factory.NewCounter(prometheus.CounterOpts{
			Name: "chart_renders_total",
			Help: "Distribution charts rendered",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
