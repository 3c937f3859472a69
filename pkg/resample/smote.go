// Package resample rebalances a training set by synthesising minority-class
// rows with SMOTE.
package resample

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"fraudml/pkg/model"
)

// ErrInsufficientSamples matches every *InsufficientSamplesError.
var ErrInsufficientSamples = errors.New("insufficient minority samples")

// InsufficientSamplesError reports a minority class too small to have k
// neighbours besides each sample.
type InsufficientSamplesError struct {
	Minority  int
	Neighbors int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("smote: minority class has %d samples, need more than k=%d", e.Minority, e.Neighbors)
}

func (e *InsufficientSamplesError) Is(target error) bool { return target == ErrInsufficientSamples }

// SMOTE oversamples the minority class by interpolating between a minority
// sample and one of its nearest minority neighbours.
type SMOTE struct {
	k     int
	ratio float64
	seed  int64
}

// Option configures a SMOTE resampler.
type Option func(*SMOTE)

// WithNeighbors sets the neighbourhood size (default 5).
func WithNeighbors(k int) Option { return func(s *SMOTE) { s.k = k } }

// WithRatio sets the desired minority/majority ratio after resampling
// (default 1.0).
func WithRatio(r float64) Option { return func(s *SMOTE) { s.ratio = r } }

// WithSeed fixes the random source (default 42).
func WithSeed(seed int64) Option { return func(s *SMOTE) { s.seed = seed } }

// New returns a SMOTE resampler.
func New(opts ...Option) *SMOTE {
	s := &SMOTE{k: 5, ratio: 1.0, seed: 42}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Neighbors is the configured neighbourhood size.
func (s *SMOTE) Neighbors() int { return s.k }

// FitResample returns the original rows followed by the synthetic minority
// rows. The inputs are not modified.
func (s *SMOTE) FitResample(X [][]float64, y []int) ([][]float64, []int, error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("smote: %d rows but %d labels", len(X), len(y))
	}
	if s.k < 1 {
		return nil, nil, fmt.Errorf("smote: neighbours must be positive, got %d", s.k)
	}
	if s.ratio <= 0 || s.ratio > 1 {
		return nil, nil, fmt.Errorf("smote: ratio must be in (0, 1], got %v", s.ratio)
	}

	byClass := map[int][]int{}
	for i, c := range y {
		if c != 0 && c != 1 {
			return nil, nil, fmt.Errorf("smote: label %d at row %d is not binary", c, i)
		}
		byClass[c] = append(byClass[c], i)
	}
	minority, majority := 1, 0
	if len(byClass[1]) > len(byClass[0]) {
		minority, majority = 0, 1
	}
	minRows := byClass[minority]
	nMaj := len(byClass[majority])

	outX := make([][]float64, len(X))
	for i, row := range X {
		outX[i] = append([]float64(nil), row...)
	}
	outY := append([]int(nil), y...)

	target := int(math.Ceil(s.ratio * float64(nMaj)))
	need := target - len(minRows)
	if need <= 0 {
		return outX, outY, nil
	}
	if len(minRows) <= s.k {
		return nil, nil, &InsufficientSamplesError{Minority: len(minRows), Neighbors: s.k}
	}

	pts := make([][]float64, len(minRows))
	for i, r := range minRows {
		pts[i] = X[r]
	}
	idx := model.NewIndex(pts)
	neighbors := make([][]model.Neighbor, len(pts))
	for i, p := range pts {
		neighbors[i] = idx.Nearest(p, s.k, i)
	}

	rnd := rand.New(rand.NewSource(s.seed))
	for n := 0; n < need; n++ {
		i := rnd.Intn(len(pts))
		nb := pts[neighbors[i][rnd.Intn(len(neighbors[i]))].Row]
		outX = append(outX, interpolate(pts[i], nb, rnd.Float64()))
		outY = append(outY, minority)
	}
	return outX, outY, nil
}

// interpolate returns x + u*(nb - x).
func interpolate(x, nb []float64, u float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = x[j] + u*(nb[j]-x[j])
	}
	return out
}
