package model

import (
	"errors"
	"fmt"
	"math"
)

// Family identifies one of the supported algorithm families. The value is
// also the artifact key the family is stored under.
type Family string

const (
	FamilyLinear        Family = "logreg"
	FamilyEnsembleTree  Family = "rf"
	FamilyInstanceBased Family = "knn"
	FamilySingleTree    Family = "dt"
)

// Families lists every family in training order.
func Families() []Family {
	return []Family{FamilyLinear, FamilyEnsembleTree, FamilyInstanceBased, FamilySingleTree}
}

// ParseFamily maps an artifact key to its family.
func ParseFamily(s string) (Family, error) {
	for _, f := range Families() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown model family %q", s)
}

// Threshold is the decision threshold applied to the fraud probability.
const Threshold = 0.5

// Classifier is the inference contract of a trained model. Predict is always
// available; PredictProba only when SupportsProba reports true.
type Classifier interface {
	Family() Family
	// NumFeatures is the row width the model was fitted on.
	NumFeatures() int
	Predict(X [][]float64) ([]int, error)
	SupportsProba() bool
	// PredictProba returns P(fraud) per row, or *UnsupportedOperationError.
	PredictProba(X [][]float64) ([]float64, error)
}

// ErrUnsupported matches every *UnsupportedOperationError via errors.Is.
var ErrUnsupported = errors.New("unsupported operation")

// UnsupportedOperationError is returned when a capability the model does not
// declare is requested.
type UnsupportedOperationError struct {
	Family    Family
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("model %s does not support %s", e.Family, e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupported }

// ErrNotFitted is returned by inference on a model that was never trained.
var ErrNotFitted = errors.New("model is not fitted")

// ErrNonFinite is returned for rows holding NaN or infinite values.
var ErrNonFinite = errors.New("non-finite feature value")

// checkRows validates that every row of X has the fitted width and holds
// only finite values.
func checkRows(X [][]float64, want int) error {
	for i, row := range X {
		if len(row) != want {
			return fmt.Errorf("row %d has %d features, model expects %d", i, len(row), want)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d: feature %d is %v: %w", i, j, v, ErrNonFinite)
			}
		}
	}
	return nil
}

// clampTerm bounds one summand of an n-term sum so the total stays finite
// for any finite inputs.
func clampTerm(x float64, n int) float64 {
	limit := math.MaxFloat64 / float64(n+1)
	switch {
	case x > limit:
		return limit
	case x < -limit:
		return -limit
	}
	return x
}

// BinaryPredFromProba thresholds fraud probabilities into labels.
func BinaryPredFromProba(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return out
}

// BalancedWeights returns per-class loss weights n / (2 * n_c), so each class
// contributes equally to the loss regardless of its frequency.
func BalancedWeights(y []int) [2]float64 {
	var counts [2]int
	for _, v := range y {
		counts[v]++
	}
	var w [2]float64
	for c, n := range counts {
		if n > 0 {
			w[c] = float64(len(y)) / (2 * float64(n))
		}
	}
	return w
}

// UnitWeights is the class weighting that leaves the loss untouched.
func UnitWeights() [2]float64 { return [2]float64{1, 1} }
