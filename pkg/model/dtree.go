package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// DecisionTreeClassifier is a binary CART classifier with per-class sample
// weights. Nodes are stored flat so the fitted tree encodes with gob.
type DecisionTreeClassifier struct {
	MaxDepth            int     // root depth = 0; 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => all features, >0 => features sampled per split
	MinImpurityDecrease float64 // minimal weighted impurity decrease to accept a split
	ClassWeight         [2]float64
	RandomState         int64 // seed for feature subsampling

	Nodes    []TreeNode // Nodes[0] is the root
	Features int
}

// TreeNode is either a split (Feature >= 0) or a leaf (Feature == -1).
// Rows with x[Feature] <= Threshold go Left.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Proba is the weighted share of class 1 among the node's samples.
	Proba float64
	N     int
}

// TreeOption configures a DecisionTreeClassifier.
type TreeOption func(*DecisionTreeClassifier)

func WithMaxDepth(d int) TreeOption { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) TreeOption {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) TreeOption {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) TreeOption { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) TreeOption  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) TreeOption {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithTreeClassWeight(w [2]float64) TreeOption {
	return func(t *DecisionTreeClassifier) { t.ClassWeight = w }
}
func WithRandomState(seed int64) TreeOption {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns an unbounded gini tree with unit weights.
func NewDecisionTreeClassifier(opts ...TreeOption) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       "gini",
		ClassWeight:     UnitWeights(),
		RandomState:     42,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (t *DecisionTreeClassifier) Family() Family { return FamilySingleTree }

// Fit trains the tree on every row of X.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.fitIndices(X, y, idx)
}

// fitIndices trains on the rows listed in idx; repeated indices count once
// per occurrence, which is how bootstrap samples are passed in.
func (t *DecisionTreeClassifier) fitIndices(X [][]float64, y []int, idx []int) error {
	if len(X) == 0 || len(idx) == 0 {
		return errors.New("dtree: empty X")
	}
	if len(y) != len(X) {
		return errors.New("dtree: X and y length mismatch")
	}
	p := len(X[0])
	if err := checkRows(X, p); err != nil {
		return fmt.Errorf("dtree: %w", err)
	}
	for _, c := range y {
		if c != 0 && c != 1 {
			return fmt.Errorf("dtree: label %d is not binary", c)
		}
	}
	if t.ClassWeight == [2]float64{} {
		t.ClassWeight = UnitWeights()
	}

	b := &treeBuilder{
		t:   t,
		X:   X,
		y:   y,
		p:   p,
		rnd: rand.New(rand.NewSource(t.RandomState)),
	}
	if t.Criterion == "entropy" {
		b.impurity = entropy
	} else {
		b.impurity = gini
	}
	t.Nodes = t.Nodes[:0]
	t.Features = p
	b.build(append([]int(nil), idx...), 0)
	return nil
}

func (t *DecisionTreeClassifier) NumFeatures() int { return t.Features }

func (t *DecisionTreeClassifier) SupportsProba() bool { return true }

// PredictProba returns the leaf fraud share for each row.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, t.Features); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = t.leaf(X[i]).Proba
		}
	})
	return out, nil
}

func (t *DecisionTreeClassifier) Predict(X [][]float64) ([]int, error) {
	proba, err := t.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return BinaryPredFromProba(proba, Threshold), nil
}

func (t *DecisionTreeClassifier) leaf(x []float64) *TreeNode {
	node := &t.Nodes[0]
	for node.Feature >= 0 {
		if x[node.Feature] <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node
}

// Depth is the length of the longest root-to-leaf path.
func (t *DecisionTreeClassifier) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Leaves counts the leaf nodes.
func (t *DecisionTreeClassifier) Leaves() int {
	c := 0
	for _, n := range t.Nodes {
		if n.Feature < 0 {
			c++
		}
	}
	return c
}

// parallelSplitRows is the node size from which candidate features are
// searched concurrently.
const parallelSplitRows = 1024

type treeBuilder struct {
	t        *DecisionTreeClassifier
	X        [][]float64
	y        []int
	p        int
	rnd      *rand.Rand
	impurity func(w0, w1 float64) float64
}

// splitResult is the best split found on a single feature.
type splitResult struct {
	gain      float64
	feature   int
	threshold float64
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	t := b.t
	var w [2]float64
	var n [2]int
	for _, i := range idx {
		w[b.y[i]] += t.ClassWeight[b.y[i]]
		n[b.y[i]]++
	}
	node := TreeNode{Feature: -1, N: len(idx)}
	if w[0]+w[1] > 0 {
		node.Proba = w[1] / (w[0] + w[1])
	}
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, node)

	if n[0] == 0 || n[1] == 0 ||
		len(idx) < t.MinSamplesSplit ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return self
	}

	best := b.bestSplit(idx, w)
	if best.feature < 0 || best.gain <= t.MinImpurityDecrease {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	t.Nodes[self].Feature = best.feature
	t.Nodes[self].Threshold = best.threshold
	t.Nodes[self].Left = l
	t.Nodes[self].Right = r
	return self
}

// bestSplit searches the candidate features, concurrently for large nodes.
// Ties go to the lowest feature index so fits are reproducible.
func (b *treeBuilder) bestSplit(idx []int, w [2]float64) splitResult {
	features := make([]int, b.p)
	for j := range features {
		features[j] = j
	}
	if k := b.t.MaxFeatures; k > 0 && k < b.p {
		b.rnd.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:k]
	}

	results := make([]splitResult, len(features))
	if len(idx) >= parallelSplitRows {
		var wg sync.WaitGroup
		for k, f := range features {
			wg.Add(1)
			go func(k, f int) {
				defer wg.Done()
				results[k] = b.splitFeature(idx, f, w)
			}(k, f)
		}
		wg.Wait()
	} else {
		for k, f := range features {
			results[k] = b.splitFeature(idx, f, w)
		}
	}

	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature < 0 {
			continue
		}
		if best.feature < 0 || r.gain > best.gain || (r.gain == best.gain && r.feature < best.feature) {
			best = r
		}
	}
	return best
}

// splitFeature scans the sorted values of feature f, moving one row at a
// time from the right partition to the left.
func (b *treeBuilder) splitFeature(idx []int, f int, w [2]float64) splitResult {
	result := splitResult{feature: -1}
	order := append([]int(nil), idx...)
	sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

	total := w[0] + w[1]
	parent := b.impurity(w[0], w[1])
	minLeaf := max(b.t.MinSamplesLeaf, 1)

	var lw [2]float64
	for s := 1; s < len(order); s++ {
		prev := order[s-1]
		c := b.y[prev]
		lw[c] += b.t.ClassWeight[c]

		lo, hi := b.X[prev][f], b.X[order[s]][f]
		if lo == hi || s < minLeaf || len(order)-s < minLeaf {
			continue
		}
		rw0, rw1 := w[0]-lw[0], w[1]-lw[1]
		wl, wr := lw[0]+lw[1], rw0+rw1
		weighted := (wl/total)*b.impurity(lw[0], lw[1]) + (wr/total)*b.impurity(rw0, rw1)
		if gain := parent - weighted; gain > result.gain {
			thr := (lo + hi) / 2
			if thr == hi {
				thr = lo
			}
			result = splitResult{gain: gain, feature: f, threshold: thr}
		}
	}
	return result
}

func gini(w0, w1 float64) float64 {
	n := w0 + w1
	if n == 0 {
		return 0
	}
	p := w1 / n
	return 2 * p * (1 - p)
}

func entropy(w0, w1 float64) float64 {
	n := w0 + w1
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range []float64{w0, w1} {
		if c <= 0 {
			continue
		}
		p := c / n
		res -= p * math.Log2(p)
	}
	return res
}
