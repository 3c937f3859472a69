package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest is a bagged ensemble of decision trees whose fraud
// probability is the mean of the tree probabilities.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int // 0 => floor(sqrt(p))
	Bootstrap       bool
	ClassWeight     [2]float64
	RandomState     int64

	Trees    []*DecisionTreeClassifier
	Features int
}

// RandomForestOption configures a RandomForest.
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = d }
}
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithForestClassWeight(w [2]float64) RandomForestOption {
	return func(rf *RandomForest) { rf.ClassWeight = w }
}
func WithForestSeed(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}

// NewRandomForest returns 100 bootstrapped trees of depth at most 10.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		ClassWeight:     UnitWeights(),
		RandomState:     42,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

func (rf *RandomForest) Family() Family { return FamilyEnsembleTree }

// Fit trains the trees concurrently, at most GOMAXPROCS at a time. Each tree
// draws its bootstrap sample from its own seeded source, so the fitted
// forest does not depend on scheduling.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("randomforest: need at least one tree, got %d", rf.NEstimators)
	}
	p := len(X[0])
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}

	trees := make([]*DecisionTreeClassifier, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < rf.NEstimators; i++ {
		g.Go(func() error {
			seed := rf.RandomState + int64(i)
			treeRand := rand.New(rand.NewSource(seed))

			// Bootstrap sampling: an index slice, not a copy of the data.
			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = treeRand.Intn(n)
				} else {
					sample[j] = j
				}
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMaxFeatures(maxFeatures),
				WithTreeClassWeight(rf.ClassWeight),
				WithRandomState(seed),
			)
			if err := tree.fitIndices(X, y, sample); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}
	rf.Trees = trees
	rf.Features = p
	return nil
}

func (rf *RandomForest) NumFeatures() int { return rf.Features }

func (rf *RandomForest) SupportsProba() bool { return true }

// PredictProba averages the tree probabilities for each row.
func (rf *RandomForest) PredictProba(X [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, rf.Features); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			s := 0.0
			for _, t := range rf.Trees {
				s += t.leaf(X[i]).Proba
			}
			out[i] = s / float64(len(rf.Trees))
		}
	})
	return out, nil
}

func (rf *RandomForest) Predict(X [][]float64) ([]int, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return BinaryPredFromProba(proba, Threshold), nil
}
