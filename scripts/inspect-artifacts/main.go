package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"autovaluate/internal/common"
	"autovaluate/internal/dataset"
	"autovaluate/internal/storage"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func main() {
	var (
		artifactPath  = flag.String("artifacts", common.DefaultArtifactPath, "Artifact file path")
		referencePath = flag.String("reference", common.DefaultReferencePath, "Reference sample CSV")
		days          = flag.Int("days", 30, "Training runs to list from the last N days (0 for all)")
		columns       = flag.Bool("columns", false, "List every schema column")
	)
	flag.Parse()

	fmt.Printf("Inspecting artifacts in: %s\n", *artifactPath)

	store, err := storage.OpenReadOnly(*artifactPath)
	if err != nil {
		log.Fatalf("Failed to open artifacts: %v", err)
	}
	defer store.Close()

	a, err := store.LoadArtifacts()
	if err != nil {
		log.Fatalf("Failed to load artifacts: %v", err)
	}

	meta := a.Meta
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Trained at:    %s (%s ago)\n", meta.TrainedAt.Format("2006-01-02 15:04:05"), time.Since(meta.TrainedAt).Round(time.Minute))
	fmt.Printf("Dataset:       %s (%d rows, %d skipped)\n", meta.DatasetPath, meta.Rows, meta.Skipped)
	fmt.Printf("Forest:        %d trees, %d nodes, seed %d\n", len(a.Forest.Trees), a.Forest.NodeCount(), meta.Seed)
	fmt.Printf("Features:      %d\n", a.Schema.Len())
	fmt.Printf("In-sample fit: R2 %.4f, MAE £%.0f, RMSE £%.0f\n", meta.Fit.R2, meta.Fit.MAE, meta.Fit.RMSE)

	if len(meta.TopFeatures) > 0 {
		fmt.Println("\nTop features:")
		for i, f := range meta.TopFeatures {
			fmt.Printf("  %2d. %-30s %.4f\n", i+1, f.Name, f.Score)
		}
	}

	if *columns {
		fmt.Println("\nSchema columns:")
		for i, c := range a.Schema.Columns {
			fmt.Printf("  %3d %s\n", i, c.Name)
		}
	}

	end := time.Now()
	start := time.Unix(0, 0)
	if *days > 0 {
		start = end.AddDate(0, 0, -*days)
	}
	runs, err := store.History(start, end)
	if err != nil {
		log.Printf("Failed to read history: %v", err)
	}
	fmt.Printf("\nTraining runs since %s: %d\n", start.Format("2006-01-02"), len(runs))
	for _, r := range runs {
		fmt.Printf("  %s  rows=%-6d trees=%-4d R2=%.4f\n", r.TrainedAt.Format("2006-01-02 15:04"), r.Rows, r.Trees, r.Fit.R2)
	}

	inspectReference(*referencePath)
}

// inspectReference summarises the comparison sample by model year.
func inspectReference(path string) {
	ds, err := dataset.Load(path)
	if err != nil {
		log.Printf("Failed to load reference sample: %v", err)
		return
	}

	prices := ds.Prices()
	fmt.Printf("\nReference sample: %d rows, price £%.0f-£%.0f, mean £%.0f\n",
		len(prices), floats.Min(prices), floats.Max(prices), stat.Mean(prices, nil))

	byYear := make(map[int]int)
	for _, r := range ds.Records {
		byYear[int(r.Year)]++
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	fmt.Println("Rows by year:")
	for _, y := range years {
		fmt.Printf("  %d: %d\n", y, byYear[y])
	}
}
