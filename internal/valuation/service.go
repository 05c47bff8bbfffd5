package valuation

import (
	"errors"
	"fmt"
	"time"

	"autovaluate/internal/cfg"
	"autovaluate/internal/dataset"
	"autovaluate/internal/ml"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MetricsRecorder is the slice of metrics the service reports to.
type MetricsRecorder interface {
	ValuationsInc(region string)
	ValuationFailuresInc(reason string)
	VerdictInc(verdict string)
	ComparisonUnavailableInc()
}

// Report is the outcome of one valuation.
type Report struct {
	RequestID   string     `json:"request_id"`
	CreatedAt   time.Time  `json:"created_at"`
	Query       Query      `json:"query"`
	Region      RegionInfo `json:"region"`
	EstimateGBP float64    `json:"estimate_gbp"`
	Estimate    float64    `json:"estimate"`
	Display     string     `json:"display"`
	Comparison  Comparison `json:"comparison"`
	MeanDisplay string     `json:"mean_display,omitempty"`
}

// Service holds the loaded model and reference sample. It is built once at
// start-up and never mutated, so handlers share it without locking.
type Service struct {
	predictor  ml.PredictorInterface
	reference  []dataset.Record
	market     Market
	comparison cfg.ComparisonSettings
	metrics    MetricsRecorder
}

func NewService(p ml.PredictorInterface, reference []dataset.Record, market cfg.MarketSettings, comparison cfg.ComparisonSettings, metrics MetricsRecorder) (*Service, error) {
	if p == nil {
		return nil, errors.New("valuation service requires a predictor")
	}
	if err := market.Validate(); err != nil {
		return nil, fmt.Errorf("market settings: %w", err)
	}
	return &Service{
		predictor:  p,
		reference:  append([]dataset.Record(nil), reference...),
		market:     NewMarket(market),
		comparison: comparison,
		metrics:    metrics,
	}, nil
}

func (s *Service) Market() Market { return s.market }

func (s *Service) ReferenceSize() int { return len(s.reference) }

// Valuate validates the query, prices it and compares the estimate with
// the reference sample. The outcome is recorded in metrics.
func (s *Service) Valuate(q Query) (*Report, error) {
	r, reason, err := s.valuate(q)
	if err != nil {
		s.fail(reason)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ValuationsInc(string(q.Region))
		if r.Comparison.Available {
			s.metrics.VerdictInc(string(r.Comparison.Verdict))
		} else {
			s.metrics.ComparisonUnavailableInc()
		}
	}

	log.Debug().
		Str("request_id", r.RequestID).
		Str("region", string(q.Region)).
		Str("brand", q.Brand).
		Int("year", q.Year).
		Float64("estimate", r.Estimate).
		Int("comparables", r.Comparison.Comparables).
		Str("verdict", string(r.Comparison.Verdict)).
		Msg("Valuation computed")

	return r, nil
}

// Estimate builds the same report as Valuate without recording it. Used to
// re-render a valuation that was already counted, such as the page chart.
func (s *Service) Estimate(q Query) (*Report, error) {
	r, _, err := s.valuate(q)
	return r, err
}

func (s *Service) valuate(q Query) (*Report, string, error) {
	if err := q.Validate(); err != nil {
		return nil, "invalid_query", err
	}

	gbp, err := s.predictor.Predict(s.market.Record(q))
	if err != nil {
		return nil, "prediction", fmt.Errorf("predict: %w", err)
	}

	info, _ := q.Region.Info()
	estimate := s.market.Convert(gbp, q.Region)
	cmp := Compare(s.reference, q.Year, q.EngineSize, estimate, s.market.Factor(q.Region), s.comparison)

	r := &Report{
		RequestID:   uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Query:       q,
		Region:      info,
		EstimateGBP: gbp,
		Estimate:    estimate,
		Display:     s.market.Format(estimate, q.Region),
		Comparison:  cmp,
	}
	if cmp.Available {
		r.MeanDisplay = s.market.Format(cmp.Mean, q.Region)
	}
	return r, "", nil
}

func (s *Service) fail(reason string) {
	if s.metrics != nil {
		s.metrics.ValuationFailuresInc(reason)
	}
}
