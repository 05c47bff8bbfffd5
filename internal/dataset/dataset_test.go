package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `model,year,price,transmission,mileage,fuelType,tax,mpg,engineSize,brand
 A1,2017,12500,Manual,15735,Petrol,150,55.4,1.4,Audi
 A6,2016,16500,Automatic,36203,Diesel,20,64.2,2.0,Audi
 Fiesta,2019,11000,Manual,4000,Petrol,145,65.7,1.0,Ford
 Golf,2018,14000,Semi-Auto,21000,Diesel,145,60.1,1.6,Volkswagen
`

func TestRead(t *testing.T) {
	ds, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Len(t, ds.Records, 4)
	assert.Equal(t, 0, ds.Skipped)
	assert.Equal(t, []string{"model", "year", "price", "transmission", "mileage", "fuelType", "tax", "mpg", "engineSize", "brand"}, ds.Columns)

	first := ds.Records[0]
	assert.Equal(t, "A1", first.Model, "categorical values are trimmed")
	assert.Equal(t, "Audi", first.Brand)
	assert.Equal(t, 2017.0, first.Year)
	assert.Equal(t, 12500.0, first.Price)
	assert.Equal(t, 1.4, first.EngineSize)
	assert.Equal(t, 55.4, first.MPG)
}

func TestRead_MissingPriceColumn(t *testing.T) {
	_, err := Read(strings.NewReader("brand,year\nAudi,2019\n"))
	assert.ErrorIs(t, err, ErrMissingPriceColumn)
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Read(strings.NewReader("brand,price\n"))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestRead_SkipsBadRows(t *testing.T) {
	data := `brand,year,price
Audi,2019,15000
BMW,not-a-year,18000
Ford,2018
Toyota,2020,12000
`
	ds, err := Read(strings.NewReader(data))
	require.NoError(t, err)

	assert.Len(t, ds.Records, 2)
	assert.Equal(t, 2, ds.Skipped)
	assert.Equal(t, "Toyota", ds.Records[1].Brand)
}

func TestRead_SkipsNonFiniteValues(t *testing.T) {
	data := `brand,year,price,mileage
Audi,2019,15000,20000
BMW,2018,NaN,30000
Ford,2017,9000,Inf
Skoda,2016,8000,-inf
Toyota,2020,12000,10000
`
	ds, err := Read(strings.NewReader(data))
	require.NoError(t, err)

	assert.Len(t, ds.Records, 2)
	assert.Equal(t, 3, ds.Skipped)
	assert.Equal(t, []float64{15000, 12000}, ds.Prices())
}

func TestRead_IgnoresUnknownColumns(t *testing.T) {
	data := "brand,colour,price\nAudi,red,15000\n"
	ds, err := Read(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"brand", "price"}, ds.Columns)
	assert.True(t, ds.Has("brand"))
	assert.False(t, ds.Has("colour"))
	assert.False(t, ds.Has("mpg"))
}

func TestRead_DuplicateColumn(t *testing.T) {
	_, err := Read(strings.NewReader("price,price\n1,2\n"))
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	ds, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	s := ds.Sample(2, 42)
	assert.Len(t, s.Records, 2)
	assert.Equal(t, ds.Columns, s.Columns)

	again := ds.Sample(2, 42)
	assert.Equal(t, s.Records, again.Records, "same seed must give the same sample")

	all := ds.Sample(100, 1)
	assert.Len(t, all.Records, 4, "oversized sample returns every row")
	assert.ElementsMatch(t, ds.Records, all.Records)
}

func TestWriteRoundTrip(t *testing.T) {
	ds, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ds.Write(&buf))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "model,year,price,transmission,mileage,fuelType,tax,mpg,engineSize,brand", header)

	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Records, back.Records)
}

func TestSaveAndLoad(t *testing.T) {
	ds, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "reference_data.csv")
	require.NoError(t, ds.Save(path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ds.Records, loaded.Records)
	assert.Equal(t, []float64{12500, 16500, 11000, 14000}, loaded.Prices())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
