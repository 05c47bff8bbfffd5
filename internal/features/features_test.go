package features

import (
	"encoding/json"
	"strings"
	"testing"

	"autovaluate/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingCSV = `model,year,price,transmission,mileage,fuelType,tax,mpg,engineSize,brand
A1,2017,12500,Manual,15735,Petrol,150,55.4,1.4,Audi
Fiesta,2019,11000,Manual,4000,Petrol,145,65.7,1.0,Ford
Golf,2018,14000,Automatic,21000,Diesel,145,60.1,1.6,Volkswagen
A3,2020,21000,Semi-Auto,9000,Diesel,145,58.0,2.0,Audi
`

func loadTraining(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(trainingCSV))
	require.NoError(t, err)
	return ds
}

func TestBuildSchema_Order(t *testing.T) {
	s := BuildSchema(loadTraining(t))

	expected := []string{
		"year", "mileage", "tax", "mpg", "engineSize",
		"brand_Audi", "brand_Ford", "brand_Volkswagen",
		"model_A1", "model_A3", "model_Fiesta", "model_Golf",
		"transmission_Automatic", "transmission_Manual", "transmission_Semi-Auto",
		"fuelType_Diesel", "fuelType_Petrol",
	}
	assert.Equal(t, expected, s.Names())
	assert.NoError(t, s.Validate())
}

func TestBuildSchema_MissingColumns(t *testing.T) {
	ds, err := dataset.Read(strings.NewReader("brand,price,year\nAudi,15000,2019\nBMW,18000,2020\n"))
	require.NoError(t, err)

	s := BuildSchema(ds)
	assert.Equal(t, []string{"year", "brand_Audi", "brand_BMW"}, s.Names())
}

func TestSchema_Validate(t *testing.T) {
	assert.Error(t, Schema{}.Validate())

	dup := Schema{Columns: []Column{{Name: "year", Attribute: "year"}, {Name: "year", Attribute: "year"}}}
	assert.Error(t, dup.Validate())

	bad := Schema{Columns: []Column{{Name: "brand_BMW", Attribute: "brand", Value: "Audi"}}}
	assert.Error(t, bad.Validate())
}

func TestSchema_JSONRoundTrip(t *testing.T) {
	s := BuildSchema(loadTraining(t))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back Schema
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestEncoder_Encode(t *testing.T) {
	enc, err := NewEncoder(BuildSchema(loadTraining(t)))
	require.NoError(t, err)

	rec := dataset.Record{
		Brand: "Ford", Transmission: "Manual", FuelType: "Petrol",
		Year: 2019, Mileage: 30000, Tax: 145, MPG: 50, EngineSize: 1.5,
	}
	row := enc.Encode(rec)
	require.Len(t, row, enc.Width())

	names := enc.Schema().Names()
	got := make(map[string]float64, len(row))
	for i, v := range row {
		got[names[i]] = v
	}

	assert.Equal(t, 2019.0, got["year"])
	assert.Equal(t, 30000.0, got["mileage"])
	assert.Equal(t, 1.5, got["engineSize"])
	assert.Equal(t, 1.0, got["brand_Ford"])
	assert.Equal(t, 0.0, got["brand_Audi"])
	assert.Equal(t, 1.0, got["transmission_Manual"])
	assert.Equal(t, 1.0, got["fuelType_Petrol"])

	// no model given: every model indicator stays zero
	for _, m := range []string{"model_A1", "model_A3", "model_Fiesta", "model_Golf"} {
		assert.Zero(t, got[m], m)
	}
}

func TestEncoder_UnseenCategory(t *testing.T) {
	enc, err := NewEncoder(BuildSchema(loadTraining(t)))
	require.NoError(t, err)

	row := enc.Encode(dataset.Record{Brand: "Skoda", Transmission: "Manual", FuelType: "Hybrid", Year: 2020})
	require.Len(t, row, enc.Width())

	var ones float64
	for i, c := range enc.Schema().Columns {
		if c.Indicator() {
			ones += row[i]
		}
	}
	assert.Equal(t, 1.0, ones, "only the transmission indicator should be set")
	assert.False(t, enc.Known("brand", "Skoda"))
	assert.True(t, enc.Known("brand", "Audi"))
}

func TestEncoder_EncodeAll(t *testing.T) {
	ds := loadTraining(t)
	enc, err := NewEncoder(BuildSchema(ds))
	require.NoError(t, err)

	X, y := enc.EncodeAll(ds.Records)
	require.Len(t, X, len(ds.Records))
	assert.Equal(t, ds.Prices(), y)
	for _, row := range X {
		assert.Len(t, row, enc.Width())
	}
}

func TestNewEncoder_RejectsInvalidSchema(t *testing.T) {
	_, err := NewEncoder(Schema{})
	assert.Error(t, err)
}
