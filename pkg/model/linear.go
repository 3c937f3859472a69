package model

import "fmt"

// LinearModel chains a variance-preserving PCA projection with a logistic
// regression fitted on the projected rows.
type LinearModel struct {
	PCA   *PCA
	Logit *LogisticRegression
}

// NewLinearModel pairs an unfitted PCA with an unfitted logistic regression.
func NewLinearModel(pca *PCA, logit *LogisticRegression) *LinearModel {
	return &LinearModel{PCA: pca, Logit: logit}
}

func (m *LinearModel) Family() Family { return FamilyLinear }

// Fit fits the PCA on X, then the logistic regression on the projection.
func (m *LinearModel) Fit(X [][]float64, y []int) error {
	if err := m.PCA.Fit(X); err != nil {
		return fmt.Errorf("fit pca: %w", err)
	}
	Z, err := m.PCA.Transform(X)
	if err != nil {
		return err
	}
	if err := m.Logit.Fit(Z, y); err != nil {
		return fmt.Errorf("fit logistic regression: %w", err)
	}
	return nil
}

func (m *LinearModel) NumFeatures() int { return m.PCA.NumFeatures() }

func (m *LinearModel) SupportsProba() bool { return true }

func (m *LinearModel) PredictProba(X [][]float64) ([]float64, error) {
	Z, err := m.PCA.Transform(X)
	if err != nil {
		return nil, err
	}
	return m.Logit.PredictProba(Z)
}

func (m *LinearModel) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return BinaryPredFromProba(proba, Threshold), nil
}
