package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"autovaluate/internal/cfg"
	"autovaluate/internal/common"
	"autovaluate/internal/dataset"
	"autovaluate/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSales prices cars mostly by age, with a brand premium.
func syntheticSales(n int) *dataset.Dataset {
	rnd := rand.New(rand.NewSource(1))
	brands := []string{"Ford", "Audi", "Toyota"}
	premium := map[string]float64{"Ford": 0, "Audi": 6000, "Toyota": 2000}

	ds := &dataset.Dataset{Columns: []string{
		common.ColBrand, common.ColModel, common.ColYear, common.ColPrice, common.ColTransmission,
		common.ColMileage, common.ColFuelType, common.ColTax, common.ColMPG, common.ColEngineSize,
	}}
	for i := 0; i < n; i++ {
		brand := brands[i%len(brands)]
		year := 2010 + rnd.Intn(12)
		ds.Records = append(ds.Records, dataset.Record{
			Brand:        brand,
			Model:        brand + " hatch",
			Transmission: "Manual",
			FuelType:     "Petrol",
			Year:         float64(year),
			Mileage:      float64((2022 - year) * 9000),
			Tax:          145,
			MPG:          50,
			EngineSize:   1.5,
			Price:        4000 + 1500*float64(year-2010) + premium[brand] + rnd.NormFloat64()*300,
		})
	}
	return ds
}

func comparison() cfg.ComparisonSettings {
	return cfg.ComparisonSettings{EngineTolerance: 0.2, MinComparables: 6, VerdictBand: 0.1}
}

func TestSplit(t *testing.T) {
	ds := syntheticSales(100)

	train, test, err := Split(ds, 0.2, 7)
	require.NoError(t, err)
	assert.Len(t, test.Records, 20)
	assert.Len(t, train.Records, 80)

	again, _, err := Split(ds, 0.2, 7)
	require.NoError(t, err)
	assert.Equal(t, train.Records, again.Records, "same seed gives the same split")
}

func TestSplitErrors(t *testing.T) {
	_, _, err := Split(syntheticSales(10), 0, 1)
	assert.Error(t, err)
	_, _, err = Split(syntheticSales(10), 1, 1)
	assert.Error(t, err)

	_, _, err = Split(syntheticSales(2), 0.1, 1)
	assert.True(t, errors.Is(err, ErrSplitTooSmall))
}

func TestRun(t *testing.T) {
	e := NewEngine(ml.ForestConfig{Trees: 15, Seed: 3, MinSamplesLeaf: 2}, comparison(), 0.25)

	res, err := e.Run(context.Background(), syntheticSales(240))
	require.NoError(t, err)

	assert.Equal(t, 180, res.TrainRows)
	assert.Equal(t, 60, res.TestRows)
	assert.Len(t, res.Samples, 60)
	assert.Greater(t, res.OutOfSample.R2, 0.8)
	assert.Less(t, res.MAPE, 0.15)
	assert.GreaterOrEqual(t, res.WithinBand, 0.0)
	assert.LessOrEqual(t, res.WithinBand, 1.0)
	assert.Greater(t, res.VerdictCompared, 0)
	assert.Len(t, res.ByBrand, 3)
	assert.Equal(t, "Audi", res.ByBrand[0].Group)

	total := 0
	for _, g := range res.ByYear {
		total += g.Count
	}
	assert.Equal(t, res.TestRows, total)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(ml.ForestConfig{Trees: 5, Seed: 1}, comparison(), 0.2).Run(ctx, syntheticSales(50))
	assert.Error(t, err)
}

func TestGroupStats(t *testing.T) {
	samples := []Sample{
		{Brand: "Ford", Error: 100, AbsPctError: 0.1},
		{Brand: "Ford", Error: -300, AbsPctError: 0.3},
		{Brand: "Audi", Error: 50, AbsPctError: 0.05},
	}
	got := groupStats(samples, func(s Sample) string { return s.Brand })
	require.Len(t, got, 2)
	assert.Equal(t, GroupStats{Group: "Audi", Count: 1, MAE: 50, MAPE: 0.05}, got[0])
	assert.Equal(t, "Ford", got[1].Group)
	assert.InDelta(t, 200.0, got[1].MAE, 1e-9)
	assert.InDelta(t, 0.2, got[1].MAPE, 1e-9)
}

func TestReporter(t *testing.T) {
	res, err := NewEngine(ml.ForestConfig{Trees: 5, Seed: 2}, comparison(), 0.2).Run(context.Background(), syntheticSales(120))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, NewReporter(res, dir).GenerateReport())

	for _, name := range []string{"backtest_summary.txt", "prediction_log.csv", "backtest_results.json", "group_report.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "backtest_results.json"))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "generated_at")
	assert.EqualValues(t, res.TestRows, decoded["test_rows"])
}
