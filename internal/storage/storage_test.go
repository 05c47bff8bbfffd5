package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autovaluate/internal/dataset"
	"autovaluate/internal/features"
	"autovaluate/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingCSV = `brand,model,year,price,transmission,mileage,fuelType,tax,mpg,engineSize
Ford,Fiesta,2019,11000,Manual,12000,Petrol,145,55,1.0
Ford,Focus,2019,13500,Manual,15000,Diesel,145,60,1.5
Audi,A3,2019,21000,Automatic,9000,Diesel,145,58,2.0
BMW,1 Series,2016,12000,Manual,45000,Petrol,145,50,1.5
`

func trainedArtifacts(t *testing.T, trainedAt time.Time) Artifacts {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(trainingCSV))
	require.NoError(t, err)

	res, err := ml.Train(context.Background(), ds, ml.ForestConfig{Trees: 4, Seed: 42, MinSamplesLeaf: 1})
	require.NoError(t, err)

	return Artifacts{
		Forest: res.Forest,
		Schema: res.Schema,
		Meta: Metadata{
			TrainedAt:   trainedAt,
			Rows:        res.Rows,
			Features:    res.Schema.Len(),
			Trees:       4,
			Seed:        42,
			Fit:         res.Fit,
			TopFeatures: ml.RankImportance(res.Schema.Names(), res.Forest.Importance, 3),
		},
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "car_price_model.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should be created with its directory")
}

func TestStore_Close(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "closing twice is harmless")

	assert.NoError(t, (&Store{}).Close())
}

func TestSaveAndLoadArtifacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.db")
	trainedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := trainedArtifacts(t, trainedAt)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveArtifacts(want))
	require.NoError(t, store.Close())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	got, err := ro.LoadArtifacts()
	require.NoError(t, err)

	assert.Equal(t, want.Schema, got.Schema)
	assert.True(t, want.Meta.TrainedAt.Equal(got.Meta.TrainedAt))
	assert.Equal(t, want.Meta.Rows, got.Meta.Rows)
	assert.Equal(t, want.Meta.TopFeatures, got.Meta.TopFeatures)
	assert.Equal(t, want.Forest.Trees, got.Forest.Trees)

	enc, err := features.NewEncoder(got.Schema)
	require.NoError(t, err)
	row := enc.Encode(dataset.Record{Brand: "Ford", Year: 2019, EngineSize: 1.0})
	a, err := want.Forest.Predict(row)
	require.NoError(t, err)
	b, err := got.Forest.Predict(row)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOpenReadOnly_Missing(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, ErrArtifactsMissing)
}

func TestLoadArtifacts_EmptyStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadArtifacts()
	assert.ErrorIs(t, err, ErrArtifactsMissing)
}

func TestSaveArtifacts_Rejects(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.SaveArtifacts(Artifacts{}))

	a := trainedArtifacts(t, time.Now())
	a.Schema = features.Schema{Columns: a.Schema.Columns[:2]}
	err = store.SaveArtifacts(a)
	assert.True(t, errors.Is(err, ml.ErrFeatureMismatch))
}

func TestRetrainReplacesAndRecordsHistory(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	defer store.Close()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	require.NoError(t, store.SaveArtifacts(trainedArtifacts(t, first)))
	latest := trainedArtifacts(t, second)
	latest.Meta.Rows = 99
	require.NoError(t, store.SaveArtifacts(latest))

	got, err := store.LoadArtifacts()
	require.NoError(t, err)
	assert.Equal(t, 99, got.Meta.Rows)

	runs, err := store.History(first, second)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].TrainedAt.Equal(first))
	assert.True(t, runs[1].TrainedAt.Equal(second))

	runs, err = store.History(first.Add(time.Hour), second.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
