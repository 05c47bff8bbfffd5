package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autovaluate/internal/cfg"
	"autovaluate/internal/dataset"
	"autovaluate/internal/ml"
	"autovaluate/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const topFeatures = 10

func main() {
	var (
		dataPath      = flag.String("data", "", "Training CSV (overrides DATASET_PATH)")
		artifactPath  = flag.String("out", "", "Artifact file to write (overrides ARTIFACT_PATH)")
		referencePath = flag.String("reference", "", "Reference sample CSV to write (overrides REFERENCE_PATH)")
		trees         = flag.Int("trees", 0, "Number of trees (overrides FOREST_TREES)")
		seed          = flag.Int64("seed", 0, "Random seed (overrides FOREST_SEED)")
		sampleSize    = flag.Int("sample", 0, "Reference sample rows (overrides REFERENCE_SAMPLE_SIZE)")
		workers       = flag.Int("workers", 0, "Trees fitted in parallel, 0 for one per CPU")
		logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(firstNonEmpty(*logLevel, c.LogLevel))

	if *dataPath != "" {
		c.DatasetPath = *dataPath
	}
	if *artifactPath != "" {
		c.ArtifactPath = *artifactPath
	}
	if *referencePath != "" {
		c.ReferencePath = *referencePath
	}
	if *trees > 0 {
		c.Forest.Trees = *trees
	}
	if flagPassed(flag.CommandLine, "seed") {
		c.Forest.Seed = *seed
	}
	if *sampleSize > 0 {
		c.SampleSize = *sampleSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, *workers); err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
}

func run(ctx context.Context, c cfg.Settings, workers int) error {
	log.Info().
		Str("dataset", c.DatasetPath).
		Str("artifacts", c.ArtifactPath).
		Str("reference", c.ReferencePath).
		Int("trees", c.Forest.Trees).
		Int64("seed", c.Forest.Seed).
		Msg("Starting training")

	ds, err := dataset.Load(c.DatasetPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	log.Info().
		Int("rows", len(ds.Records)).
		Int("skipped", ds.Skipped).
		Strs("columns", ds.Columns).
		Msg("Dataset loaded")

	res, err := ml.Train(ctx, ds, ml.ForestConfig{
		Trees:          c.Forest.Trees,
		Seed:           c.Forest.Seed,
		MaxDepth:       c.Forest.MaxDepth,
		MinSamplesLeaf: c.Forest.MinSamplesLeaf,
		Workers:        workers,
	})
	if err != nil {
		return err
	}

	log.Info().
		Float64("r2", res.Fit.R2).
		Float64("mae", res.Fit.MAE).
		Float64("rmse", res.Fit.RMSE).
		Int("nodes", res.Forest.NodeCount()).
		Dur("elapsed", res.Elapsed).
		Msg("Forest trained")

	top := res.Importance
	if len(top) > topFeatures {
		top = top[:topFeatures]
	}
	for i, fi := range top {
		log.Info().Int("rank", i+1).Str("feature", fi.Name).Float64("importance", fi.Score).Msg("Feature importance")
	}

	reference := ds.Sample(c.SampleSize, c.Forest.Seed)

	store, err := storage.Open(c.ArtifactPath)
	if err != nil {
		return err
	}
	defer store.Close()

	meta := storage.Metadata{
		TrainedAt:      time.Now().UTC(),
		DatasetPath:    c.DatasetPath,
		ReferencePath:  c.ReferencePath,
		Rows:           res.Rows,
		Skipped:        ds.Skipped,
		ReferenceRows:  len(reference.Records),
		Features:       res.Schema.Len(),
		Trees:          len(res.Forest.Trees),
		Seed:           c.Forest.Seed,
		MaxDepth:       c.Forest.MaxDepth,
		MinSamplesLeaf: c.Forest.MinSamplesLeaf,
		Fit:            res.Fit,
		TopFeatures:    top,
		Elapsed:        res.Elapsed,
	}
	if err := store.SaveArtifacts(storage.Artifacts{Forest: res.Forest, Schema: res.Schema, Meta: meta}); err != nil {
		return fmt.Errorf("save artifacts: %w", err)
	}

	log.Info().Str("path", c.ArtifactPath).Int("features", meta.Features).Msg("Artifacts saved")

	// The sample must match a committed forest.
	if err := reference.Save(c.ReferencePath); err != nil {
		return fmt.Errorf("save reference sample: %w", err)
	}
	log.Info().Int("rows", len(reference.Records)).Str("path", c.ReferencePath).Msg("Reference sample saved")
	return nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// flagPassed reports whether name was set on the command line, zero
// values included.
func flagPassed(fs *flag.FlagSet, name string) bool {
	passed := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
