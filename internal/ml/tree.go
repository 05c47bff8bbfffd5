package ml

import (
	"errors"
	"math/rand"
	"sort"
)

// Node is one entry of a flattened regression tree. Leaves carry Value;
// internal nodes send rows with x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
	Leaf      bool
}

// Tree is a CART regression tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for one row.
func (t *Tree) Predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

type treeBuilder struct {
	X              [][]float64
	y              []float64
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	rnd            *rand.Rand
	importance     []float64
	nodes          []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// fitTree grows a tree on the rows listed in idx (duplicates allowed, as
// produced by bootstrap sampling). importance accumulates the weighted
// squared-error reduction per feature.
func fitTree(X [][]float64, y []float64, idx []int, maxDepth, minSamplesLeaf, maxFeatures int, rnd *rand.Rand, importance []float64) (Tree, error) {
	if len(idx) == 0 {
		return Tree{}, errors.New("tree: no samples")
	}
	if minSamplesLeaf < 1 {
		minSamplesLeaf = 1
	}
	b := &treeBuilder{
		X:              X,
		y:              y,
		maxDepth:       maxDepth,
		minSamplesLeaf: minSamplesLeaf,
		maxFeatures:    maxFeatures,
		rnd:            rnd,
		importance:     importance,
	}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}, nil
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	pos := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: mean, Samples: len(idx)})

	if len(idx) < 2*b.minSamplesLeaf || sse <= 1e-12 {
		return pos
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return pos
	}

	best, ok := b.bestSplit(idx, sse)
	if !ok {
		return pos
	}

	if b.importance != nil {
		b.importance[best.feature] += best.gain
	}

	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	b.nodes[pos] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
		Value:     mean,
		Samples:   len(idx),
	}
	return pos
}

func (b *treeBuilder) candidateFeatures() []int {
	p := len(b.X[0])
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	if b.maxFeatures > 0 && b.maxFeatures < p {
		b.rnd.Shuffle(p, func(i, j int) { feats[i], feats[j] = feats[j], feats[i] })
		feats = feats[:b.maxFeatures]
		sort.Ints(feats)
	}
	return feats
}

// bestSplit scans every candidate feature with sorted running sums and
// returns the split with the largest squared-error reduction.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	best := split{feature: -1}
	n := len(idx)
	order := make([]int, n)

	for _, f := range b.candidateFeatures() {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		if b.X[order[0]][f] == b.X[order[n-1]][f] {
			continue
		}

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := b.y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			nl := k + 1
			nr := n - nl
			if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
				continue
			}
			cur, next := b.X[order[k]][f], b.X[order[k+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			childSSE := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			gain := parentSSE - childSSE
			if gain > best.gain+1e-12 {
				best.feature = f
				best.threshold = cur + (next-cur)/2
				if best.threshold >= next {
					best.threshold = cur
				}
				best.gain = gain
			}
		}
	}

	if best.feature < 0 {
		return best, false
	}

	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best, true
}
