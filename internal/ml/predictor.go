package ml

import (
	"errors"
	"fmt"
	"math"
	"time"

	"autovaluate/internal/common"
	"autovaluate/internal/dataset"
	"autovaluate/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
}

// Predictor pairs a fitted forest with the encoder for its schema.
type Predictor struct {
	forest    *Forest
	encoder   *features.Encoder
	trainedAt time.Time
	metrics   MetricsInterface
}

func NewPredictor(forest *Forest, schema features.Schema, trainedAt time.Time, metrics MetricsInterface) (*Predictor, error) {
	if forest == nil {
		return nil, errors.New("predictor requires a forest")
	}
	enc, err := features.NewEncoder(schema)
	if err != nil {
		return nil, err
	}
	if enc.Width() != forest.Features {
		return nil, fmt.Errorf("%w: schema has %d columns, forest expects %d", ErrFeatureMismatch, enc.Width(), forest.Features)
	}

	p := &Predictor{
		forest:    forest,
		encoder:   enc,
		trainedAt: trainedAt,
		metrics:   metrics,
	}
	p.RefreshModelAge()

	log.Info().
		Int("trees", len(forest.Trees)).
		Int("features", forest.Features).
		Time("trained_at", trainedAt).
		Msg("Predictor ready")

	return p, nil
}

// Predict encodes the record and returns the forest's price estimate.
func (p *Predictor) Predict(rec dataset.Record) (float64, error) {
	if p == nil {
		return 0, errors.New("predictor not initialised")
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	row := p.encoder.Encode(rec)
	for _, attr := range []struct{ name, value string }{
		{common.ColBrand, rec.Brand}, {common.ColTransmission, rec.Transmission}, {common.ColFuelType, rec.FuelType},
	} {
		if attr.value != "" && !p.encoder.Known(attr.name, attr.value) {
			log.Debug().Str("attribute", attr.name).Str("value", attr.value).Msg("Category unseen in training, encoded as absent")
		}
	}

	price, err := p.forest.Predict(row)
	if err == nil && (math.IsNaN(price) || math.IsInf(price, 0)) {
		err = fmt.Errorf("model produced non-finite estimate %v", price)
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return 0, err
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPredictionScoresObserve(price)
	}
	return price, nil
}

// RefreshModelAge publishes the time since training.
func (p *Predictor) RefreshModelAge() {
	if p.metrics != nil && !p.trainedAt.IsZero() {
		p.metrics.MLModelAgeSet(time.Since(p.trainedAt).Seconds())
	}
}

func (p *Predictor) Schema() features.Schema { return p.encoder.Schema() }

func (p *Predictor) TrainedAt() time.Time { return p.trainedAt }

func (p *Predictor) Forest() *Forest { return p.forest }
