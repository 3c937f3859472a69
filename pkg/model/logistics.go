package model

import (
	"errors"
	"fmt"
	"math/rand"

	"fraudml/pkg/data"
	"fraudml/pkg/loss"
	"fraudml/pkg/optim"
)

// LogisticRegression is an L2-regularised binary logistic regression trained
// with mini-batch SGD. C is the inverse regularisation strength, as in
// liblinear: smaller values mean a stronger penalty.
type LogisticRegression struct {
	W []float64 // weights
	B float64   // bias

	C           float64
	Lr          float64
	Epochs      int
	BatchSize   int
	ClassWeight [2]float64
	Seed        int64
}

// LogisticOption configures a LogisticRegression.
type LogisticOption func(*LogisticRegression)

func WithC(c float64) LogisticOption { return func(m *LogisticRegression) { m.C = c } }

func WithLearningRate(lr float64) LogisticOption {
	return func(m *LogisticRegression) { m.Lr = lr }
}

func WithEpochs(n int) LogisticOption { return func(m *LogisticRegression) { m.Epochs = n } }

func WithBatchSize(n int) LogisticOption { return func(m *LogisticRegression) { m.BatchSize = n } }

// WithClassWeight sets per-class loss weights, e.g. BalancedWeights(y).
func WithClassWeight(w [2]float64) LogisticOption {
	return func(m *LogisticRegression) { m.ClassWeight = w }
}

func WithLogisticSeed(seed int64) LogisticOption {
	return func(m *LogisticRegression) { m.Seed = seed }
}

// NewLogisticRegression returns an unfitted model with C=1, lr=0.1, 50 epochs
// and batches of 64 rows.
func NewLogisticRegression(opts ...LogisticOption) *LogisticRegression {
	m := &LogisticRegression{
		C:           1.0,
		Lr:          0.1,
		Epochs:      50,
		BatchSize:   64,
		ClassWeight: UnitWeights(),
		Seed:        42,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Fit trains the model. Each epoch streams a fresh permutation of the rows
// through data.Batcher, which attaches the class weight to every sample.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("logistic regression: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("logistic regression: %d rows but %d labels", len(X), len(y))
	}
	if m.C <= 0 {
		return fmt.Errorf("logistic regression: C must be positive, got %v", m.C)
	}
	d := len(X[0])
	if err := checkRows(X, d); err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(m.Seed))
	m.W = make([]float64, d)
	// Small random values to break symmetry.
	for i := range m.W {
		m.W[i] = rnd.NormFloat64() * 0.01
	}
	m.B = 0

	yf := make([]float64, len(y))
	sumW := 0.0
	for i, c := range y {
		yf[i] = float64(c)
		sumW += m.ClassWeight[c]
	}
	weight := func(label float64) float64 { return m.ClassWeight[int(label)] }

	// Dividing liblinear's objective by C*sum(w) turns the penalty into
	// ||w||^2 / (2*C*sum(w)) next to the weighted mean loss.
	opt := optim.NewSGD(m.Lr)
	opt.L2 = 1 / (m.C * sumW)

	batchSize := max(m.BatchSize, 1)
	for ep := 0; ep < m.Epochs; ep++ {
		samples := make(chan data.Sample, batchSize)
		batches := make(chan data.Batch, 1)
		data.Emit(X, yf, rnd.Perm(len(X)), samples)
		data.Batcher(samples, batchSize, weight, batches)

		for batch := range batches {
			// Forward pass.
			p := make([]float64, len(batch.X))
			for i, row := range batch.X {
				p[i] = loss.Sigmoid(m.score(row))
			}

			// dy is the gradient of the weighted loss w.r.t. each score.
			_, dy := loss.WeightedBCE(batch.Y, p, batch.W)

			gW := make([]float64, d)
			gb := 0.0
			for i, row := range batch.X {
				for j, xij := range row {
					gW[j] += dy[i] * xij
				}
				gb += dy[i]
			}

			opt.Step(m.W, gW)
			m.B -= m.Lr * gb
		}
	}
	return nil
}

func (m *LogisticRegression) score(row []float64) float64 {
	n := len(row) + 1
	sum := clampTerm(m.B, n)
	for j, v := range row {
		sum += clampTerm(m.W[j]*v, n)
	}
	return sum
}

func (m *LogisticRegression) NumFeatures() int { return len(m.W) }

// PredictProba returns P(y=1) for each row of X, computed in parallel chunks.
func (m *LogisticRegression) PredictProba(X [][]float64) ([]float64, error) {
	if m.W == nil {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, len(m.W)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = loss.Sigmoid(m.score(X[i]))
		}
	})
	return out, nil
}

// Predict thresholds PredictProba at 0.5.
func (m *LogisticRegression) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return BinaryPredFromProba(proba, Threshold), nil
}
