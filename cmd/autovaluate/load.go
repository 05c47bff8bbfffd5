package main

import (
	"fmt"
	"time"

	"autovaluate/internal/cfg"
	"autovaluate/internal/dashboard"
	"autovaluate/internal/dataset"
	"autovaluate/internal/metrics"
	"autovaluate/internal/ml"
	"autovaluate/internal/storage"
	"autovaluate/internal/valuation"

	"github.com/rs/zerolog/log"
)

// loaded is the process-wide state built once at start-up.
type loaded struct {
	service   *valuation.Service
	predictor *ml.Predictor
	model     dashboard.ModelInfo
}

// load reads the artifact file and the reference sample. Any error leaves
// the server offline.
func load(c cfg.Settings, mw *metrics.MetricsWrapper) (*loaded, error) {
	start := time.Now()

	store, err := storage.OpenReadOnly(c.ArtifactPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	artifacts, err := store.LoadArtifacts()
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	history, err := store.History(time.Unix(0, 0), time.Now())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read training history")
	}

	reference, err := dataset.Load(c.ReferencePath)
	if err != nil {
		return nil, fmt.Errorf("load reference sample: %w", err)
	}

	var mlMetrics ml.MetricsInterface
	var recorder valuation.MetricsRecorder
	if mw != nil {
		mlMetrics, recorder = mw, mw
	}

	predictor, err := ml.NewPredictor(artifacts.Forest, artifacts.Schema, artifacts.Meta.TrainedAt, mlMetrics)
	if err != nil {
		return nil, fmt.Errorf("build predictor: %w", err)
	}
	service, err := valuation.NewService(predictor, reference.Records, c.Market, c.Comparison, recorder)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	if mw != nil {
		mw.ArtifactLoadObserve(elapsed)
	}

	meta := artifacts.Meta
	log.Info().
		Time("trained_at", meta.TrainedAt).
		Int("trees", len(artifacts.Forest.Trees)).
		Int("features", artifacts.Schema.Len()).
		Int("reference_rows", len(reference.Records)).
		Float64("r2", meta.Fit.R2).
		Dur("elapsed", elapsed).
		Msg("Model loaded")

	return &loaded{
		service:   service,
		predictor: predictor,
		model:     dashboard.ModelInfo{Meta: &meta, History: history},
	}, nil
}
