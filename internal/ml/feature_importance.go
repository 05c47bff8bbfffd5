package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FeatureImportance is the share of total squared-error reduction a
// feature earned across the forest.
type FeatureImportance struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RankImportance pairs scores with column names, highest first. top <= 0
// returns every feature.
func RankImportance(names []string, scores []float64, top int) []FeatureImportance {
	n := len(names)
	if len(scores) < n {
		n = len(scores)
	}
	out := make([]FeatureImportance, n)
	for i := 0; i < n; i++ {
		out[i] = FeatureImportance{Name: names[i], Score: scores[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if top > 0 && top < len(out) {
		out = out[:top]
	}
	return out
}

// FitMetrics summarises how well predictions track the targets.
type FitMetrics struct {
	R2   float64 `json:"r2"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// Evaluate computes R², MAE and RMSE.
func Evaluate(actual, predicted []float64) FitMetrics {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return FitMetrics{}
	}
	n := float64(len(actual))
	m := FitMetrics{
		MAE:  floats.Distance(actual, predicted, 1) / n,
		RMSE: floats.Distance(actual, predicted, 2) / math.Sqrt(n),
	}
	if stat.Variance(actual, nil) > 0 {
		m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	return m
}
