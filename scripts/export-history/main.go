package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"autovaluate/internal/common"
	"autovaluate/internal/storage"
)

// runRecord is one training run flattened for analysis tools.
type runRecord struct {
	TrainedAt int64   `json:"trained_at"`
	Dataset   string  `json:"dataset"`
	Rows      int     `json:"rows"`
	Skipped   int     `json:"skipped"`
	Trees     int     `json:"trees"`
	Seed      int64   `json:"seed"`
	Features  int     `json:"features"`
	R2        float64 `json:"r2"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	TopFeat   string  `json:"top_feature,omitempty"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

func main() {
	var (
		artifactPath = flag.String("artifacts", common.DefaultArtifactPath, "Artifact file path")
		outputPath   = flag.String("output", "scripts/training_runs.jsonl", "Output JSON lines file")
		days         = flag.Int("days", 0, "Number of days to export (0 for all)")
	)
	flag.Parse()

	log.Printf("Exporting training history from %s to %s", *artifactPath, *outputPath)

	store, err := storage.OpenReadOnly(*artifactPath)
	if err != nil {
		log.Fatalf("Failed to open artifacts: %v", err)
	}
	defer store.Close()

	end := time.Now()
	start := time.Unix(0, 0)
	if *days > 0 {
		start = end.AddDate(0, 0, -*days)
		log.Printf("Exporting last %d days", *days)
	}

	runs, err := store.History(start, end)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	if len(runs) == 0 {
		log.Println("Warning: No training runs found matching criteria")
	}

	out, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	for _, r := range runs {
		rec := runRecord{
			TrainedAt: r.TrainedAt.Unix(),
			Dataset:   r.DatasetPath,
			Rows:      r.Rows,
			Skipped:   r.Skipped,
			Trees:     r.Trees,
			Seed:      r.Seed,
			Features:  r.Features,
			R2:        r.Fit.R2,
			MAE:       r.Fit.MAE,
			RMSE:      r.Fit.RMSE,
			ElapsedMS: r.Elapsed.Milliseconds(),
		}
		if len(r.TopFeatures) > 0 {
			rec.TopFeat = r.TopFeatures[0].Name
		}
		if err := enc.Encode(rec); err != nil {
			log.Fatalf("Failed to write JSON record: %v", err)
		}
	}

	log.Printf("Successfully exported %d runs to %s", len(runs), *outputPath)
	if len(runs) > 0 {
		log.Printf("Time range: %s to %s",
			runs[0].TrainedAt.Format("2006-01-02 15:04:05"), runs[len(runs)-1].TrainedAt.Format("2006-01-02 15:04:05"))
	}
}
