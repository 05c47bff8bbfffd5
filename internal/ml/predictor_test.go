package ml

import (
	"context"
	"strings"
	"testing"
	"time"

	"autovaluate/internal/dataset"
	"autovaluate/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const carsCSV = `brand,model,year,price,transmission,mileage,fuelType,tax,mpg,engineSize
Ford,Fiesta,2019,11000,Manual,12000,Petrol,145,55,1.0
Ford,Fiesta,2018,9800,Manual,22000,Petrol,145,55,1.0
Ford,Focus,2019,13500,Manual,15000,Diesel,145,60,1.5
Audi,A3,2019,21000,Automatic,9000,Diesel,145,58,2.0
Audi,A3,2018,19500,Automatic,18000,Diesel,145,58,2.0
Audi,A1,2017,12500,Manual,30000,Petrol,150,55,1.4
BMW,3 Series,2020,26000,Automatic,5000,Diesel,145,50,2.0
BMW,1 Series,2016,12000,Manual,45000,Petrol,145,50,1.5
`

func trainCars(t *testing.T) *TrainingResult {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(carsCSV))
	require.NoError(t, err)

	res, err := Train(context.Background(), ds, ForestConfig{Trees: 10, Seed: 42, MinSamplesLeaf: 1})
	require.NoError(t, err)
	return res
}

func TestTrain(t *testing.T) {
	res := trainCars(t)

	assert.Equal(t, 8, res.Rows)
	assert.Equal(t, res.Schema.Len(), res.Forest.Features)
	assert.Len(t, res.Importance, res.Schema.Len())
	assert.Greater(t, res.Fit.R2, 0.5, "in-sample fit should explain most variance")
	assert.GreaterOrEqual(t, res.Fit.MAE, 0.0)
	assert.Contains(t, res.Schema.Names(), "brand_BMW")
}

func TestTrain_EmptyDataset(t *testing.T) {
	_, err := Train(context.Background(), &dataset.Dataset{}, DefaultForestConfig())
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)
}

func TestPredictor_Predict(t *testing.T) {
	res := trainCars(t)
	metrics := &MockMetrics{}

	p, err := NewPredictor(res.Forest, res.Schema, time.Now().Add(-time.Hour), metrics)
	require.NoError(t, err)

	rec := dataset.Record{
		Brand: "Audi", Transmission: "Automatic", FuelType: "Diesel",
		Year: 2019, Mileage: 10000, Tax: 145, MPG: 50, EngineSize: 2.0,
	}
	price, err := p.Predict(rec)
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)

	again, err := p.Predict(rec)
	require.NoError(t, err)
	assert.Equal(t, price, again, "prediction must be deterministic")

	assert.Equal(t, 2, metrics.predictions)
	assert.Zero(t, metrics.failures)
	assert.Len(t, metrics.predictionScores, 2)
	assert.GreaterOrEqual(t, metrics.modelAge, 3600.0)
}

func TestPredictor_UnseenCategoryStillPredicts(t *testing.T) {
	res := trainCars(t)
	p, err := NewPredictor(res.Forest, res.Schema, time.Time{}, nil)
	require.NoError(t, err)

	price, err := p.Predict(dataset.Record{
		Brand: "Skoda", Transmission: "Manual", FuelType: "Hybrid",
		Year: 2019, Mileage: 20000, Tax: 145, MPG: 50, EngineSize: 1.5,
	})
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)
}

func TestNewPredictor_SchemaMismatch(t *testing.T) {
	res := trainCars(t)
	short := features.Schema{Columns: res.Schema.Columns[:3]}

	_, err := NewPredictor(res.Forest, short, time.Now(), nil)
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	_, err = NewPredictor(nil, res.Schema, time.Now(), nil)
	assert.Error(t, err)
}

func TestPredictor_NilSafety(t *testing.T) {
	var p *Predictor
	_, err := p.Predict(dataset.Record{})
	assert.Error(t, err)
}

func TestStaticPredictor(t *testing.T) {
	var pi PredictorInterface = StaticPredictor{Price: 15000}
	v, err := pi.Predict(dataset.Record{})
	require.NoError(t, err)
	assert.Equal(t, 15000.0, v)
}
