package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"autovaluate/internal/common"
	"autovaluate/internal/dataset"
)

// New-car list price in GBP and the models sold under each brand.
var catalogue = map[string]struct {
	base   float64
	models []string
}{
	"Audi":       {32000, []string{"A1", "A3", "A4", "Q3", "Q5"}},
	"BMW":        {34000, []string{"1 Series", "3 Series", "5 Series", "X1", "X3"}},
	"Ford":       {18000, []string{"Fiesta", "Focus", "Kuga", "Puma", "Mondeo"}},
	"Hyundai":    {17000, []string{"i10", "i20", "i30", "Tucson"}},
	"Mercedes":   {36000, []string{"A Class", "C Class", "E Class", "GLA Class"}},
	"Skoda":      {20000, []string{"Fabia", "Octavia", "Superb", "Karoq"}},
	"Toyota":     {22000, []string{"Aygo", "Yaris", "Corolla", "C-HR", "RAV4"}},
	"Volkswagen": {24000, []string{"Polo", "Golf", "Passat", "Tiguan"}},
	"Vauxhall":   {16000, []string{"Corsa", "Astra", "Mokka", "Insignia"}},
}

var (
	transmissionFactor = map[string]float64{"Manual": 1.0, "Automatic": 1.08, "Semi-Auto": 1.05}
	fuelFactor         = map[string]float64{"Petrol": 1.0, "Diesel": 1.02, "Hybrid": 1.12}
	// Small engines dominate the used market.
	engineWeights = []float64{2, 8, 8, 6, 9, 6, 3, 6, 2, 2, 1.5, 0.5, 0.2, 0.1}
)

func main() {
	var (
		outPath  = flag.String("out", common.DefaultDatasetPath, "Output CSV path")
		rows     = flag.Int("rows", 20000, "Number of listings to generate")
		seed     = flag.Int64("seed", 42, "Random seed")
		refYear  = flag.Int("ref-year", 2025, "Year the listings are priced in")
		noise    = flag.Float64("noise", 0.08, "Relative price noise (standard deviation)")
		badRatio = flag.Float64("bad-ratio", 0, "Fraction of rows with an unparsable price, for exercising the loader")
	)
	flag.Parse()

	fmt.Printf("Generating %d used-car listings...\n", *rows)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *outPath)

	start := time.Now()
	ds := generate(rand.New(rand.NewSource(*seed)), *rows, *refYear, *noise)

	if err := ds.Save(*outPath); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}
	if *badRatio > 0 {
		if err := corrupt(*outPath, *badRatio, *seed); err != nil {
			log.Fatalf("Failed to corrupt rows: %v", err)
		}
	}

	prices := ds.Prices()
	var sum float64
	for _, p := range prices {
		sum += p
	}
	fmt.Printf("✓ Generated %d rows in %s, mean price £%.0f\n", len(ds.Records), time.Since(start).Round(time.Millisecond), sum/float64(len(prices)))
}

func generate(rnd *rand.Rand, n, refYear int, noise float64) *dataset.Dataset {
	ds := &dataset.Dataset{
		Columns: []string{
			common.ColModel, common.ColYear, common.ColPrice, common.ColTransmission, common.ColMileage,
			common.ColFuelType, common.ColTax, common.ColMPG, common.ColEngineSize, common.ColBrand,
		},
		Records: make([]dataset.Record, 0, n),
	}

	for i := 0; i < n; i++ {
		brand := common.Brands[rnd.Intn(len(common.Brands))]
		entry := catalogue[brand]
		model := entry.models[rnd.Intn(len(entry.models))]

		// Ages skew young: most listings are under eight years old.
		age := int(math.Min(math.Abs(rnd.NormFloat64())*5, float64(refYear-common.MinYear)))
		year := refYear - age

		transmission := pick(rnd, common.Transmissions, []float64{6, 3, 1})
		fuel := pick(rnd, common.FuelTypes, []float64{5, 4, 1})
		engine := common.EngineSizes[weighted(rnd, engineWeights)]

		mileage := math.Round(float64(age)*8000*(0.5+rnd.Float64()) + rnd.Float64()*3000)

		price := entry.base
		price *= 1 + 0.25*(engine-1.5)
		price *= transmissionFactor[transmission] * fuelFactor[fuel]
		price *= math.Pow(0.85, float64(age))
		price *= math.Exp(-0.35 * mileage / 100000)
		price *= math.Exp(rnd.NormFloat64() * noise)
		price = math.Max(500, math.Round(price/10)*10)

		ds.Records = append(ds.Records, dataset.Record{
			Brand:        brand,
			Model:        model,
			Transmission: transmission,
			FuelType:     fuel,
			Year:         float64(year),
			Mileage:      mileage,
			Tax:          tax(rnd, year, fuel),
			MPG:          mpg(rnd, engine, fuel),
			EngineSize:   engine,
			Price:        price,
		})
	}
	return ds
}

// tax follows the 2017 flat-rate change: newer cars pay the standard rate,
// older ones an emissions band.
func tax(rnd *rand.Rand, year int, fuel string) float64 {
	switch {
	case year >= 2017 && fuel == "Hybrid":
		return 135
	case year >= 2017:
		return 145
	case fuel == "Hybrid":
		return 0
	}
	bands := []float64{20, 30, 125, 150, 160, 200}
	return bands[rnd.Intn(len(bands))]
}

func mpg(rnd *rand.Rand, engine float64, fuel string) float64 {
	v := 68 - 9*engine
	switch fuel {
	case "Diesel":
		v += 8
	case "Hybrid":
		v += 15
	}
	v += rnd.NormFloat64() * 3
	return math.Round(math.Max(15, v)*10) / 10
}

func pick(rnd *rand.Rand, values []string, weights []float64) string {
	return values[weighted(rnd, weights)]
}

func weighted(rnd *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	r := rnd.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

// corrupt rewrites the price of a fraction of rows as "n/a".
func corrupt(path string, ratio float64, seed int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	rows, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		return err
	}

	priceIdx := -1
	for i, col := range rows[0] {
		if col == common.ColPrice {
			priceIdx = i
		}
	}
	if priceIdx < 0 {
		return fmt.Errorf("no %s column", common.ColPrice)
	}

	rnd := rand.New(rand.NewSource(seed + 1))
	bad := 0
	for _, row := range rows[1:] {
		if rnd.Float64() < ratio {
			row[priceIdx] = "n/a"
			bad++
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)
	if err := w.WriteAll(rows); err != nil {
		out.Close()
		return err
	}
	fmt.Printf("  Corrupted %d rows\n", bad)
	return out.Close()
}
