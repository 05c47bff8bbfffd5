package ml

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData: y is 10 when x0 <= 5 and 20 otherwise; x1 is noise.
func stepData(n int, seed int64) ([][]float64, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		x0 := float64(rnd.Intn(11))
		X[i] = []float64{x0, rnd.Float64()}
		if x0 <= 5 {
			y[i] = 10
		} else {
			y[i] = 20
		}
	}
	return X, y
}

func TestFitTree_LearnsStep(t *testing.T) {
	X, y := stepData(200, 1)
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	imp := make([]float64, 2)

	tree, err := fitTree(X, y, idx, 0, 1, 0, rand.New(rand.NewSource(1)), imp)
	require.NoError(t, err)

	root := tree.Nodes[0]
	require.False(t, root.Leaf)
	assert.Equal(t, 0, root.Feature)
	assert.InDelta(t, 5.5, root.Threshold, 1e-9)
	assert.Equal(t, 1, tree.Depth())

	assert.Equal(t, 10.0, tree.Predict([]float64{3, 0.9}))
	assert.Equal(t, 20.0, tree.Predict([]float64{8, 0.1}))
	assert.Greater(t, imp[0], 0.0)
	assert.Zero(t, imp[1])
}

func TestFitTree_MaxDepthAndLeafSize(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{1, 2, 3, 4}
	idx := []int{0, 1, 2, 3}

	stump, err := fitTree(X, y, idx, 1, 1, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stump.Depth())

	wide, err := fitTree(X, y, idx, 0, 2, 0, nil, nil)
	require.NoError(t, err)
	for _, n := range wide.Nodes {
		if n.Leaf {
			assert.GreaterOrEqual(t, n.Samples, 2)
		}
	}

	_, err = fitTree(X, y, nil, 0, 1, 0, nil, nil)
	assert.Error(t, err)
}

func TestFitTree_ConstantTarget(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []float64{7, 7, 7}

	tree, err := fitTree(X, y, []int{0, 1, 2}, 0, 1, 0, nil, nil)
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, 7.0, tree.Predict([]float64{100}))
}

func TestFitForest_Deterministic(t *testing.T) {
	X, y := stepData(150, 2)
	cfg := ForestConfig{Trees: 12, Seed: 42, MinSamplesLeaf: 1}

	cfg.Workers = 1
	serial, err := FitForest(context.Background(), X, y, cfg)
	require.NoError(t, err)

	cfg.Workers = 6
	parallel, err := FitForest(context.Background(), X, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, serial.Trees, parallel.Trees, "scheduling must not change the fitted forest")
	assert.Equal(t, serial.Importance, parallel.Importance)

	cfg.Seed = 7
	other, err := FitForest(context.Background(), X, y, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, serial.Trees, other.Trees)
}

func TestFitForest_Predict(t *testing.T) {
	X, y := stepData(300, 3)
	f, err := FitForest(context.Background(), X, y, ForestConfig{Trees: 20, Seed: 42, MinSamplesLeaf: 1})
	require.NoError(t, err)

	low, err := f.Predict([]float64{2, 0.5})
	require.NoError(t, err)
	high, err := f.Predict([]float64{9, 0.5})
	require.NoError(t, err)

	assert.InDelta(t, 10, low, 0.5)
	assert.InDelta(t, 20, high, 0.5)

	var total float64
	for _, v := range f.Importance {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, f.Importance[0], f.Importance[1])
	assert.Greater(t, f.NodeCount(), len(f.Trees))
}

func TestFitForest_InvalidInput(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultForestConfig()

	_, err := FitForest(ctx, nil, nil, cfg)
	assert.Error(t, err)

	_, err = FitForest(ctx, [][]float64{{1}, {2}}, []float64{1}, cfg)
	assert.Error(t, err)

	_, err = FitForest(ctx, [][]float64{{1}, {2, 3}}, []float64{1, 2}, cfg)
	assert.Error(t, err)

	cfg.Trees = 0
	_, err = FitForest(ctx, [][]float64{{1}}, []float64{1}, cfg)
	assert.Error(t, err)
}

func TestFitForest_Cancelled(t *testing.T) {
	X, y := stepData(50, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FitForest(ctx, X, y, ForestConfig{Trees: 500, Seed: 1, Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForest_PredictWrongWidth(t *testing.T) {
	X, y := stepData(40, 5)
	f, err := FitForest(context.Background(), X, y, ForestConfig{Trees: 3, Seed: 1})
	require.NoError(t, err)

	_, err = f.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestForest_BinaryRoundTrip(t *testing.T) {
	X, y := stepData(80, 6)
	f, err := FitForest(context.Background(), X, y, ForestConfig{Trees: 5, Seed: 42})
	require.NoError(t, err)

	data, err := f.MarshalBinary()
	require.NoError(t, err)

	var back Forest
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, f.Features, back.Features)
	assert.Equal(t, f.Seed, back.Seed)

	for _, row := range X[:10] {
		want, _ := f.Predict(row)
		got, err := back.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Error(t, back.UnmarshalBinary([]byte("not gob")))
}

func TestEvaluate(t *testing.T) {
	perfect := Evaluate([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.InDelta(t, 1.0, perfect.R2, 1e-12)
	assert.Zero(t, perfect.MAE)
	assert.Zero(t, perfect.RMSE)

	m := Evaluate([]float64{1, 2, 3, 4}, []float64{2, 2, 3, 6})
	assert.InDelta(t, 0.75, m.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/4), m.RMSE, 1e-12)
	assert.InDelta(t, 0, m.R2, 1e-12)

	assert.Equal(t, FitMetrics{}, Evaluate(nil, nil))
}

func TestRankImportance(t *testing.T) {
	ranked := RankImportance([]string{"year", "mileage", "brand_Audi"}, []float64{0.5, 0.2, 0.3}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "year", ranked[0].Name)
	assert.Equal(t, "brand_Audi", ranked[1].Name)

	assert.Len(t, RankImportance([]string{"a", "b"}, []float64{1, 0}, 0), 2)
}
