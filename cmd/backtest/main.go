package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autovaluate/internal/backtest"
	"autovaluate/internal/cfg"
	"autovaluate/internal/dataset"
	"autovaluate/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "Sales CSV (overrides DATASET_PATH)")
		outputPath = flag.String("output", "", "Output directory for results")
		holdout    = flag.Float64("holdout", 0.2, "Share of rows held out for scoring")
		trees      = flag.Int("trees", 0, "Number of trees (overrides FOREST_TREES)")
		seed       = flag.Int64("seed", 0, "Random seed for the split and the forest (overrides FOREST_SEED)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *dataPath != "" {
		config.DatasetPath = *dataPath
	}
	if *trees > 0 {
		config.Forest.Trees = *trees
	}
	if flagPassed(flag.CommandLine, "seed") {
		config.Forest.Seed = *seed
	}
	if *outputPath == "" {
		*outputPath = fmt.Sprintf("backtest_results_%s", time.Now().Format("20060102_150405"))
	}

	fmt.Println("=== Backtest Configuration ===")
	fmt.Printf("Data Path: %s\n", config.DatasetPath)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Printf("Holdout: %.0f%%\n", *holdout*100)
	fmt.Printf("Trees: %d, Seed: %d\n", config.Forest.Trees, config.Forest.Seed)
	fmt.Printf("Verdict Band: %.0f%%\n", config.Comparison.VerdictBand*100)
	fmt.Println("==============================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := dataset.Load(config.DatasetPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}
	log.Info().Int("rows", len(ds.Records)).Int("skipped", ds.Skipped).Msg("Dataset loaded")

	engine := backtest.NewEngine(ml.ForestConfig{
		Trees:          config.Forest.Trees,
		Seed:           config.Forest.Seed,
		MaxDepth:       config.Forest.MaxDepth,
		MinSamplesLeaf: config.Forest.MinSamplesLeaf,
	}, config.Comparison, *holdout)

	results, err := engine.Run(ctx, ds)
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	reporter := backtest.NewReporter(results, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate report")
	}
	reporter.PrintSummary()

	fmt.Printf("\nBacktest completed. Results saved to: %s\n", *outputPath)
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
