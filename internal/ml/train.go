package ml

import (
	"context"
	"fmt"
	"time"

	"autovaluate/internal/dataset"
	"autovaluate/internal/features"

	"github.com/rs/zerolog/log"
)

// TrainingResult is everything the trainer persists.
type TrainingResult struct {
	Forest     *Forest
	Schema     features.Schema
	Fit        FitMetrics
	Importance []FeatureImportance
	Rows       int
	Elapsed    time.Duration
}

// Train one-hot encodes the dataset, fits the forest on every row and
// reports in-sample fit quality.
func Train(ctx context.Context, ds *dataset.Dataset, cfg ForestConfig) (*TrainingResult, error) {
	if ds == nil || len(ds.Records) == 0 {
		return nil, dataset.ErrEmptyDataset
	}

	start := time.Now()
	schema := features.BuildSchema(ds)
	enc, err := features.NewEncoder(schema)
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}

	X, y := enc.EncodeAll(ds.Records)
	log.Info().
		Int("rows", len(X)).
		Int("columns", enc.Width()).
		Msg("Dataset encoded")

	forest, err := FitForest(ctx, X, y, cfg)
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	predicted, err := forest.PredictBatch(X)
	if err != nil {
		return nil, fmt.Errorf("score training set: %w", err)
	}

	return &TrainingResult{
		Forest:     forest,
		Schema:     schema,
		Fit:        Evaluate(y, predicted),
		Importance: RankImportance(schema.Names(), forest.Importance, 0),
		Rows:       len(X),
		Elapsed:    time.Since(start),
	}, nil
}
