package metrics

import (
	"strconv"
	"time"
)

// MetricsWrapper adapts Metrics to the narrow interfaces the predictor,
// the valuation service and the dashboard depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Model

func (w *MetricsWrapper) MLPredictionsInc()                   { w.m.MLPredictions.Inc() }
func (w *MetricsWrapper) MLFailuresInc()                      { w.m.MLFailures.Inc() }
func (w *MetricsWrapper) MLLatencyObserve(v float64)          { w.m.MLLatency.Observe(v) }
func (w *MetricsWrapper) MLModelAgeSet(v float64)             { w.m.MLModelAge.Set(v) }
func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) { w.m.MLPredictionScores.Observe(v) }

func (w *MetricsWrapper) ArtifactLoadObserve(d time.Duration) { w.m.ArtifactLoad.Observe(d.Seconds()) }

func (w *MetricsWrapper) SetModelLoaded(loaded bool) {
	if loaded {
		w.m.ModelLoaded.Set(1)
	} else {
		w.m.ModelLoaded.Set(0)
	}
}

// Valuation

func (w *MetricsWrapper) ValuationsInc(region string) { w.m.Valuations.WithLabelValues(region).Inc() }

func (w *MetricsWrapper) ValuationFailuresInc(reason string) {
	w.m.ValuationFailures.WithLabelValues(reason).Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) VerdictInc(verdict string) { w.m.Verdicts.WithLabelValues(verdict).Inc() }

func (w *MetricsWrapper) ComparisonUnavailableInc() { w.m.ComparisonUnavailable.Inc() }

// Dashboard

func (w *MetricsWrapper) WSClientsSet(n int) { w.m.WSClients.Set(float64(n)) }

func (w *MetricsWrapper) HTTPRequestInc(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (w *MetricsWrapper) ChartRendersInc() { w.m.ChartRenders.Inc() }

func (w *MetricsWrapper) ErrorsInc() { w.m.ErrorsTotal.Inc() }
