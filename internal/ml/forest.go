package ml

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrFeatureMismatch = errors.New("feature vector length does not match model")

// ForestConfig controls training. MaxDepth 0 grows trees until leaves are
// pure or hit MinSamplesLeaf. MaxFeatures 0 considers every feature at
// every split.
type ForestConfig struct {
	Trees          int
	Seed           int64
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int
	Workers        int
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, Seed: 42, MinSamplesLeaf: 1}
}

// Forest is a bagged ensemble of regression trees. It is immutable once
// fitted and safe for concurrent Predict calls.
type Forest struct {
	Trees      []Tree
	Features   int
	Seed       int64
	Importance []float64
}

// FitForest trains one tree per bootstrap sample. Tree i draws its sample
// from a source seeded with Seed+i, so the result does not depend on how
// the workers are scheduled.
func FitForest(ctx context.Context, X [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("forest training cancelled: %w", err)
	}
	if len(X) == 0 {
		return nil, errors.New("forest: empty training set")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("forest: %d rows but %d targets", len(X), len(y))
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("forest: tree count must be positive, got %d", cfg.Trees)
	}
	p := len(X[0])
	if p == 0 {
		return nil, errors.New("forest: rows have no features")
	}
	for i, row := range X {
		if len(row) != p {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), p)
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > cfg.Trees {
		workers = cfg.Trees
	}

	start := time.Now()
	n := len(X)
	trees := make([]Tree, cfg.Trees)
	importances := make([][]float64, cfg.Trees)
	errs := make([]error, cfg.Trees)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rnd := rand.New(rand.NewSource(cfg.Seed + int64(idx)))
				sample := make([]int, n)
				for j := range sample {
					sample[j] = rnd.Intn(n)
				}
				imp := make([]float64, p)
				tree, err := fitTree(X, y, sample, cfg.MaxDepth, cfg.MinSamplesLeaf, cfg.MaxFeatures, rnd, imp)
				trees[idx], importances[idx], errs[idx] = tree, imp, err
			}
		}()
	}

	var cancelled error
feed:
	for i := 0; i < cfg.Trees; i++ {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, fmt.Errorf("forest training cancelled: %w", cancelled)
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	f := &Forest{
		Trees:      trees,
		Features:   p,
		Seed:       cfg.Seed,
		Importance: normalizeImportance(importances, p),
	}

	log.Info().
		Int("trees", cfg.Trees).
		Int("rows", n).
		Int("features", p).
		Int("workers", workers).
		Dur("elapsed", time.Since(start)).
		Msg("Forest fitted")

	return f, nil
}

// normalizeImportance averages per-tree importances, each scaled to sum to
// one, and rescales the result to sum to one.
func normalizeImportance(perTree [][]float64, p int) []float64 {
	out := make([]float64, p)
	for _, imp := range perTree {
		var total float64
		for _, v := range imp {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range imp {
			out[j] += v / total
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// Predict averages the tree outputs for one row.
func (f *Forest) Predict(row []float64) (float64, error) {
	if len(row) != f.Features {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(row), f.Features)
	}
	if len(f.Trees) == 0 {
		return 0, errors.New("forest has no trees")
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(row)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictBatch predicts every row.
func (f *Forest) PredictBatch(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		v, err := f.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// NodeCount returns the total node count across trees.
func (f *Forest) NodeCount() int {
	var n int
	for i := range f.Trees {
		n += len(f.Trees[i].Nodes)
	}
	return n
}

// forestData has Forest's layout without its gob methods.
type forestData Forest

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (f *Forest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*forestData)(f)); err != nil {
		return nil, fmt.Errorf("encode forest: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (f *Forest) UnmarshalBinary(data []byte) error {
	var p forestData
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return fmt.Errorf("decode forest: %w", err)
	}
	if p.Features <= 0 || len(p.Trees) == 0 {
		return errors.New("decoded forest is empty")
	}
	*f = Forest(p)
	return nil
}
