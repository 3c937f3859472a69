package model

import (
	"errors"
	"fmt"
	"sync"
)

// KNN classifies a row by a distance-weighted vote of its K nearest training
// rows. Neighbours are found through a kd-tree that is rebuilt lazily, once,
// after the model is decoded.
type KNN struct {
	K int
	X [][]float64
	Y []int
	// VoteProba exposes the weighted vote share as a probability.
	VoteProba bool

	once  sync.Once
	index *Index
}

// KNNOption configures a KNN.
type KNNOption func(*KNN)

// WithVoteProba toggles the probability capability.
func WithVoteProba(on bool) KNNOption { return func(m *KNN) { m.VoteProba = on } }

// NewKNN returns a kNN classifier with probability support enabled.
func NewKNN(k int, opts ...KNNOption) *KNN {
	m := &KNN{K: k, VoteProba: true}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *KNN) Family() Family { return FamilyInstanceBased }

// Fit stores the training rows and indexes them.
func (m *KNN) Fit(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return errors.New("the number of feature vectors must match the number of labels")
	}
	if len(X) == 0 {
		return errors.New("knn: empty training set")
	}
	if m.K < 1 {
		return fmt.Errorf("knn: k must be positive, got %d", m.K)
	}
	if err := checkRows(X, len(X[0])); err != nil {
		return fmt.Errorf("knn: %w", err)
	}
	m.X = make([][]float64, len(X))
	for i, row := range X {
		m.X[i] = append([]float64(nil), row...)
	}
	m.Y = append([]int(nil), y...)
	m.once = sync.Once{}
	m.index = nil
	m.ensureIndex()
	return nil
}

func (m *KNN) ensureIndex() {
	m.once.Do(func() { m.index = NewIndex(m.X) })
}

func (m *KNN) NumFeatures() int {
	if len(m.X) == 0 {
		return 0
	}
	return len(m.X[0])
}

func (m *KNN) SupportsProba() bool { return m.VoteProba }

func (m *KNN) PredictProba(X [][]float64) ([]float64, error) {
	if !m.VoteProba {
		return nil, &UnsupportedOperationError{Family: FamilyInstanceBased, Operation: "PredictProba"}
	}
	return m.vote(X)
}

func (m *KNN) Predict(X [][]float64) ([]int, error) {
	share, err := m.vote(X)
	if err != nil {
		return nil, err
	}
	return BinaryPredFromProba(share, Threshold), nil
}

// vote computes the weighted fraud share of each row's neighbourhood.
func (m *KNN) vote(X [][]float64) ([]float64, error) {
	if len(m.X) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, m.NumFeatures()); err != nil {
		return nil, err
	}
	m.ensureIndex()
	out := make([]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = m.voteSingle(X[i])
		}
	})
	return out, nil
}

// voteSingle weights each neighbour by 1/distance. Exact matches, when
// present, outvote everything else with equal weight.
func (m *KNN) voteSingle(x []float64) float64 {
	nbrs := m.index.Nearest(x, m.K)
	exact, exactFraud := 0, 0
	for _, nb := range nbrs {
		if nb.Dist == 0 {
			exact++
			exactFraud += m.Y[nb.Row]
		}
	}
	if exact > 0 {
		return float64(exactFraud) / float64(exact)
	}

	total, fraud := 0.0, 0.0
	for _, nb := range nbrs {
		w := 1 / nb.Dist
		total += w
		if m.Y[nb.Row] == 1 {
			fraud += w
		}
	}
	if total == 0 {
		// Every neighbour is infinitely far; fall back to an unweighted vote.
		for _, nb := range nbrs {
			fraud += float64(m.Y[nb.Row])
		}
		if len(nbrs) == 0 {
			return 0
		}
		return fraud / float64(len(nbrs))
	}
	return fraud / total
}
