// Package evaluate scores trained classifiers on a holdout set and renders
// the results.
package evaluate

import (
	"errors"
	"fmt"
	"log/slog"

	"fraudml/pkg/model"
)

// Report holds the holdout metrics of one model. AUC is nil when the model
// has no probability capability.
type Report struct {
	Model     string   `json:"model"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	F1        float64  `json:"f1"`
	Accuracy  float64  `json:"accuracy"`
	AUC       *float64 `json:"auc,omitempty"`
	Support   int      `json:"support"`

	Confusion model.Confusion `json:"confusion"`
	ROC       *Curve          `json:"-"`
}

// Curve is an ROC curve.
type Curve struct {
	FPR []float64
	TPR []float64
}

// Evaluate predicts X with clf and scores the labels against y at the 0.5
// threshold, class 1 positive.
func Evaluate(name string, clf model.Classifier, X [][]float64, y []int) (Report, error) {
	if len(X) != len(y) {
		return Report{}, fmt.Errorf("evaluate %s: %d rows but %d labels", name, len(X), len(y))
	}
	if len(X) == 0 {
		return Report{}, fmt.Errorf("evaluate %s: empty holdout set", name)
	}

	pred, err := clf.Predict(X)
	if err != nil {
		return Report{}, fmt.Errorf("evaluate %s: %w", name, err)
	}
	r := Report{Model: name, Support: len(y)}
	r.Precision, r.Recall, r.F1 = model.PrecisionRecallF1(y, pred)
	r.Accuracy = model.Accuracy(y, pred)
	r.Confusion = model.NewConfusion(y, pred)

	if !clf.SupportsProba() {
		return r, nil
	}
	proba, err := clf.PredictProba(X)
	if errors.Is(err, model.ErrUnsupported) {
		return r, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("evaluate %s: %w", name, err)
	}
	fpr, tpr, err := model.ROC(y, proba)
	if err != nil {
		// A single-class holdout has no ROC curve; AUC stays absent.
		return r, nil
	}
	auc, err := model.ROCAUC(y, proba)
	if err != nil {
		return r, nil
	}
	r.AUC = &auc
	r.ROC = &Curve{FPR: fpr, TPR: tpr}
	return r, nil
}

// Log writes the report as one structured record.
func (r Report) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"model", r.Model,
		"precision", r.Precision,
		"recall", r.Recall,
		"f1", r.F1,
		"accuracy", r.Accuracy,
		"tp", r.Confusion.TP,
		"fp", r.Confusion.FP,
		"tn", r.Confusion.TN,
		"fn", r.Confusion.FN,
	}
	if r.AUC != nil {
		attrs = append(attrs, "auc", *r.AUC)
	}
	logger.Info("evaluation", attrs...)
}

// Metrics flattens the report into named values, e.g. for artifact metadata.
func (r Report) Metrics() map[string]float64 {
	m := map[string]float64{
		"precision": r.Precision,
		"recall":    r.Recall,
		"f1":        r.F1,
		"accuracy":  r.Accuracy,
	}
	if r.AUC != nil {
		m["auc"] = *r.AUC
	}
	return m
}
