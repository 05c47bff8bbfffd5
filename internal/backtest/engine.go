// Package backtest replays held-out historical sales through a freshly
// trained model and reports how far the estimates land from the prices
// the cars actually sold for.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"autovaluate/internal/cfg"
	"autovaluate/internal/dataset"
	"autovaluate/internal/ml"
	"autovaluate/internal/valuation"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// ErrSplitTooSmall is returned when the hold-out split leaves either side
// without rows.
var ErrSplitTooSmall = errors.New("dataset too small to split")

// Sample is one held-out sale and its estimate.
type Sample struct {
	Brand            string            `json:"brand"`
	Model            string            `json:"model"`
	Year             int               `json:"year"`
	EngineSize       float64           `json:"engine_size"`
	Mileage          float64           `json:"mileage"`
	Actual           float64           `json:"actual"`
	Predicted        float64           `json:"predicted"`
	Error            float64           `json:"error"`
	AbsPctError      float64           `json:"abs_pct_error"`
	ActualVerdict    valuation.Verdict `json:"actual_verdict,omitempty"`
	PredictedVerdict valuation.Verdict `json:"predicted_verdict,omitempty"`
}

// GroupStats summarises error within one brand or model year.
type GroupStats struct {
	Group string  `json:"group"`
	Count int     `json:"count"`
	MAE   float64 `json:"mae"`
	MAPE  float64 `json:"mape"`
}

// Results holds one hold-out evaluation.
type Results struct {
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	TrainRows   int           `json:"train_rows"`
	TestRows    int           `json:"test_rows"`
	Trees       int           `json:"trees"`
	Seed        int64         `json:"seed"`
	InSample    ml.FitMetrics `json:"in_sample"`
	OutOfSample ml.FitMetrics `json:"out_of_sample"`
	MAPE        float64       `json:"mape"`
	MedianAPE   float64       `json:"median_ape"`
	WithinBand  float64       `json:"within_band"` // share of estimates within the verdict band of the sale price

	// Verdict agreement: for held-out cars with enough comparables in the
	// training split, how often the estimate earns the same verdict the
	// real sale price would.
	VerdictCompared  int     `json:"verdict_compared"`
	VerdictAgreement float64 `json:"verdict_agreement"`

	ByBrand []GroupStats `json:"by_brand"`
	ByYear  []GroupStats `json:"by_year"`
	Samples []Sample     `json:"samples"`
}

// Engine runs hold-out evaluations.
type Engine struct {
	forest     ml.ForestConfig
	comparison cfg.ComparisonSettings
	holdout    float64
}

func NewEngine(forest ml.ForestConfig, comparison cfg.ComparisonSettings, holdout float64) *Engine {
	return &Engine{forest: forest, comparison: comparison, holdout: holdout}
}

// Split shuffles the dataset with seed and moves the holdout share of rows
// into the test set.
func Split(ds *dataset.Dataset, holdout float64, seed int64) (train, test *dataset.Dataset, err error) {
	if holdout <= 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("holdout %.2f outside (0, 1)", holdout)
	}
	shuffled := ds.Sample(len(ds.Records), seed)
	n := len(shuffled.Records)
	nTest := int(math.Round(float64(n) * holdout))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: %d rows at holdout %.2f", ErrSplitTooSmall, n, holdout)
	}

	test = &dataset.Dataset{Columns: shuffled.Columns, Records: shuffled.Records[:nTest]}
	train = &dataset.Dataset{Columns: shuffled.Columns, Records: shuffled.Records[nTest:], Skipped: ds.Skipped}
	return train, test, nil
}

// Run trains on the training split and scores the held-out split.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset) (*Results, error) {
	train, test, err := Split(ds, e.holdout, e.forest.Seed)
	if err != nil {
		return nil, err
	}

	results := &Results{
		StartTime: time.Now(),
		TrainRows: len(train.Records),
		TestRows:  len(test.Records),
		Trees:     e.forest.Trees,
		Seed:      e.forest.Seed,
	}
	log.Info().
		Int("train", results.TrainRows).
		Int("test", results.TestRows).
		Float64("holdout", e.holdout).
		Msg("Starting backtest")

	trained, err := ml.Train(ctx, train, e.forest)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	results.InSample = trained.Fit

	predictor, err := ml.NewPredictor(trained.Forest, trained.Schema, time.Now(), nil)
	if err != nil {
		return nil, err
	}

	actual := make([]float64, 0, len(test.Records))
	predicted := make([]float64, 0, len(test.Records))
	for _, rec := range test.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		est, err := predictor.Predict(rec)
		if err != nil {
			return nil, fmt.Errorf("predict held-out row: %w", err)
		}
		actual = append(actual, rec.Price)
		predicted = append(predicted, est)
		results.Samples = append(results.Samples, e.sample(rec, est, train.Records))
	}

	results.OutOfSample = ml.Evaluate(actual, predicted)
	e.summarise(results)
	results.EndTime = time.Now()

	log.Info().
		Float64("r2", results.OutOfSample.R2).
		Float64("mae", results.OutOfSample.MAE).
		Float64("mape", results.MAPE).
		Float64("verdict_agreement", results.VerdictAgreement).
		Dur("elapsed", results.EndTime.Sub(results.StartTime)).
		Msg("Backtest finished")

	return results, nil
}

func (e *Engine) sample(rec dataset.Record, est float64, reference []dataset.Record) Sample {
	s := Sample{
		Brand:      rec.Brand,
		Model:      rec.Model,
		Year:       int(rec.Year),
		EngineSize: rec.EngineSize,
		Mileage:    rec.Mileage,
		Actual:     rec.Price,
		Predicted:  est,
		Error:      est - rec.Price,
	}
	if rec.Price != 0 {
		s.AbsPctError = math.Abs(s.Error) / rec.Price
	}

	byEstimate := valuation.Compare(reference, s.Year, rec.EngineSize, est, 1, e.comparison)
	if byEstimate.Available {
		byPrice := valuation.Compare(reference, s.Year, rec.EngineSize, rec.Price, 1, e.comparison)
		s.PredictedVerdict = byEstimate.Verdict
		s.ActualVerdict = byPrice.Verdict
	}
	return s
}

func (e *Engine) summarise(r *Results) {
	if len(r.Samples) == 0 {
		return
	}

	apes := make([]float64, len(r.Samples))
	within, agree := 0, 0
	for i, s := range r.Samples {
		apes[i] = s.AbsPctError
		if s.AbsPctError <= e.comparison.VerdictBand {
			within++
		}
		if s.ActualVerdict != "" {
			r.VerdictCompared++
			if s.ActualVerdict == s.PredictedVerdict {
				agree++
			}
		}
	}

	r.MAPE = stat.Mean(apes, nil)
	sort.Float64s(apes)
	r.MedianAPE = stat.Quantile(0.5, stat.Empirical, apes, nil)
	r.WithinBand = float64(within) / float64(len(r.Samples))
	if r.VerdictCompared > 0 {
		r.VerdictAgreement = float64(agree) / float64(r.VerdictCompared)
	}

	r.ByBrand = groupStats(r.Samples, func(s Sample) string { return s.Brand })
	r.ByYear = groupStats(r.Samples, func(s Sample) string { return strconv.Itoa(s.Year) })
}

// groupStats aggregates error by key, sorted by key.
func groupStats(samples []Sample, key func(Sample) string) []GroupStats {
	groups := make(map[string]*GroupStats)
	for _, s := range samples {
		k := key(s)
		g, ok := groups[k]
		if !ok {
			g = &GroupStats{Group: k}
			groups[k] = g
		}
		g.Count++
		g.MAE += math.Abs(s.Error)
		g.MAPE += s.AbsPctError
	}

	out := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		g.MAE /= float64(g.Count)
		g.MAPE /= float64(g.Count)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}
