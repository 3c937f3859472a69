package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects rows onto the leading eigenvectors of their covariance matrix.
// When K is zero the number of components is the smallest count whose
// cumulative explained variance reaches VarianceRatio.
type PCA struct {
	K             int
	VarianceRatio float64

	Means          []float64
	Components     [][]float64 // K x p, each a unit vector
	Explained      []float64   // eigenvalues of the kept components
	ExplainedRatio []float64
}

// NewPCA returns a PCA keeping enough components for the given share of the
// variance, e.g. 0.95.
func NewPCA(varianceRatio float64) *PCA {
	return &PCA{VarianceRatio: varianceRatio}
}

// NewPCAComponents returns a PCA keeping exactly k components.
func NewPCAComponents(k int) *PCA {
	return &PCA{K: k}
}

// Fit computes the means and principal axes of X.
func (pca *PCA) Fit(X [][]float64) error {
	if len(X) < 2 {
		return errors.New("pca: need at least two rows")
	}
	n, d := len(X), len(X[0])
	if err := checkRows(X, d); err != nil {
		return err
	}
	if pca.K <= 0 && (pca.VarianceRatio <= 0 || pca.VarianceRatio > 1) {
		return fmt.Errorf("pca: variance ratio must be in (0, 1], got %v", pca.VarianceRatio)
	}

	dense := mat.NewDense(n, d, nil)
	for i, row := range X {
		dense.SetRow(i, row)
	}
	pca.Means = make([]float64, d)
	for j := 0; j < d; j++ {
		pca.Means[j] = stat.Mean(mat.Col(nil, j, dense), nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, dense, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return errors.New("pca: eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Values come back ascending; order components by decreasing variance.
	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	total := 0.0
	for _, v := range values {
		total += math.Max(v, 0)
	}

	k := pca.K
	if k <= 0 || k > d {
		k = d
		if pca.K <= 0 && total > 0 {
			cum := 0.0
			for i, c := range order {
				cum += math.Max(values[c], 0)
				if cum/total >= pca.VarianceRatio-1e-12 {
					k = i + 1
					break
				}
			}
		}
	}

	pca.Components = make([][]float64, k)
	pca.Explained = make([]float64, k)
	pca.ExplainedRatio = make([]float64, k)
	for i := 0; i < k; i++ {
		c := order[i]
		v := mat.Col(nil, c, &vectors)
		signFlip(v)
		pca.Components[i] = v
		pca.Explained[i] = math.Max(values[c], 0)
		if total > 0 {
			pca.ExplainedRatio[i] = pca.Explained[i] / total
		}
	}
	pca.K = k
	return nil
}

// signFlip makes the largest-magnitude entry positive so the axes are
// reproducible across factorisations.
func signFlip(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}

// NumFeatures is the input width the PCA was fitted on.
func (pca *PCA) NumFeatures() int { return len(pca.Means) }

// Transform projects X onto the principal components.
func (pca *PCA) Transform(X [][]float64) ([][]float64, error) {
	if pca.Means == nil {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, len(pca.Means)); err != nil {
		return nil, err
	}

	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			t := make([]float64, len(pca.Components))
			for k, comp := range pca.Components {
				s := 0.0
				for j, v := range X[i] {
					// Centring can overflow for extreme inputs; |comp[j]| <= 1.
					d := math.Max(-math.MaxFloat64, math.Min(math.MaxFloat64, v-pca.Means[j]))
					s += clampTerm(d*comp[j], len(comp))
				}
				t[k] = s
			}
			out[i] = t
		}
	})
	return out, nil
}
