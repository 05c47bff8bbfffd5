package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"autovaluate/internal/cfg"
	"autovaluate/internal/common"
	"autovaluate/internal/ml"
	"autovaluate/internal/storage"
	"autovaluate/internal/valuation"
)

func main() {
	fmt.Println("🧪 Testing Model Artifacts")
	fmt.Println("==========================")

	artifactPath := common.DefaultArtifactPath
	if len(os.Args) > 1 {
		artifactPath = os.Args[1]
	}
	absPath, err := filepath.Abs(artifactPath)
	if err != nil {
		log.Fatalf("❌ Failed to get absolute path: %v", err)
	}
	fmt.Printf("📁 Artifact path: %s\n", absPath)

	fmt.Println("\n🔧 Test 1: Loading artifacts...")
	store, err := storage.OpenReadOnly(absPath)
	if err != nil {
		log.Fatalf("❌ Failed to open artifacts: %v", err)
	}
	a, err := store.LoadArtifacts()
	store.Close()
	if err != nil {
		log.Fatalf("❌ Failed to load artifacts: %v", err)
	}

	mm := &ml.MockMetrics{}
	predictor, err := ml.NewPredictor(a.Forest, a.Schema, a.Meta.TrainedAt, mm)
	if err != nil {
		log.Fatalf("❌ Failed to create predictor: %v", err)
	}
	fmt.Printf("✅ Predictor ready: %d trees, %d features\n", len(a.Forest.Trees), a.Schema.Len())

	market := valuation.NewMarket(cfg.DefaultMarketSettings())
	price := func(q valuation.Query) float64 {
		p, err := predictor.Predict(market.Record(q))
		if err != nil {
			fmt.Printf("    ❌ Prediction failed: %v\n", err)
			return math.NaN()
		}
		return p
	}

	fmt.Println("\n🔧 Test 2: Sample valuations...")
	base := valuation.DefaultQuery(valuation.RegionUK)
	for _, brand := range common.Brands {
		q := base
		q.Brand = brand
		fmt.Printf("  %-11s %d %.1fL: £%.0f\n", brand, q.Year, q.EngineSize, price(q))
	}

	fmt.Println("\n🔧 Test 3: Sanity checks...")
	older, newer := base, base
	older.Year, newer.Year = 2012, 2023
	check("newer car is worth more", price(newer) > price(older))

	low, high := base, base
	low.Distance, high.Distance = 5000, 150000
	check("low mileage is worth more", price(low) > price(high))

	india := base
	india.Region = valuation.RegionIndia
	india.Distance = base.Distance * cfg.DefaultMarketSettings().KmPerMile
	check("India input in km prices like the UK input in miles", math.Abs(price(india)-price(base)) < 1e-6)

	fmt.Println("\n🔧 Test 4: Edge cases...")
	unseen := market.Record(base)
	unseen.Brand = "Lada"
	if p, err := predictor.Predict(unseen); err != nil {
		fmt.Printf("  ❌ Unseen brand failed: %v\n", err)
	} else {
		fmt.Printf("  ✅ Unseen brand encoded as absent: £%.0f\n", p)
	}
	zero := base
	zero.Distance = 0
	fmt.Printf("  ✅ Zero mileage: £%.0f\n", price(zero))

	fmt.Println("\n🎉 All tests completed!")
}

func check(name string, ok bool) {
	if ok {
		fmt.Printf("  ✅ %s\n", name)
		return
	}
	fmt.Printf("  ⚠️  %s: failed\n", name)
}
