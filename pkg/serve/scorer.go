// Package serve exposes stored models over HTTP.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fraudml/pkg/artifact"
	"fraudml/pkg/features"
	"fraudml/pkg/metrics"
	"fraudml/pkg/model"
	"fraudml/pkg/traces"
)

// Prediction is the outcome for one transaction. FraudProbability is nil when
// the model cannot produce probabilities.
type Prediction struct {
	Prediction       int      `json:"prediction"`
	FraudProbability *float64 `json:"fraud_probability"`
	Padded           bool     `json:"padded,omitempty"`
}

var (
	// ErrUnknownModel is returned for names outside the supported families.
	ErrUnknownModel = errors.New("unknown model")
	// ErrInvalidInput wraps failures caused by the submitted transactions.
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(err error) error { return fmt.Errorf("%w: %w", ErrInvalidInput, err) }

// Scorer turns raw transactions into predictions using cached artifacts.
type Scorer struct {
	cache   *artifact.Cache
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewScorer(cache *artifact.Cache, m *metrics.Collector, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cache: cache, metrics: m, logger: logger}
}

// Score predicts every row with the named model. Rows are raw values in
// features.KaggleOrder; short rows are zero-padded and flagged. Output order
// matches input order.
func (s *Scorer) Score(ctx context.Context, name string, rows [][]float64) ([]Prediction, error) {
	ctx, span := traces.StartSpan(ctx, "serve.score", traces.Family(name), traces.Rows(len(rows)))
	defer span.End()

	start := time.Now()
	out, padded, err := s.score(ctx, name, rows)
	if err != nil {
		span.RecordError(err)
	}
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordPredictionError(name)
		} else {
			labels := make([]int, len(out))
			for i, p := range out {
				labels[i] = p.Prediction
			}
			s.metrics.RecordPrediction(name, labels, padded, time.Since(start))
		}
	}
	return out, err
}

func (s *Scorer) score(ctx context.Context, name string, rows [][]float64) ([]Prediction, int, error) {
	if _, err := model.ParseFamily(name); err != nil {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	if len(rows) == 0 {
		return nil, 0, invalid(errors.New("no transactions to score"))
	}
	loaded, err := s.cache.Get(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	layout, err := features.NewLayout(loaded.Artifact.Layout)
	if err != nil {
		return nil, 0, fmt.Errorf("model %s: %w", name, err)
	}

	out := make([]Prediction, len(rows))
	X := make([][]float64, len(rows))
	padded := 0
	for i, raw := range rows {
		aligned, pad, err := features.Align(raw)
		if err != nil {
			return nil, 0, invalid(fmt.Errorf("row %d: %w", i, err))
		}
		if pad {
			padded++
			out[i].Padded = true
		}
		if X[i], err = layout.Transform(aligned); err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i, err)
		}
	}
	if padded > 0 {
		s.logger.Warn("zero-padded short feature vectors", "model", name, "rows", padded, "width", features.Width)
	}

	clf := loaded.Classifier
	labels, err := clf.Predict(X)
	if errors.Is(err, model.ErrNonFinite) {
		return nil, 0, invalid(err)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("model %s: %w", name, err)
	}
	var proba []float64
	if clf.SupportsProba() {
		proba, err = clf.PredictProba(X)
		if err != nil && !errors.Is(err, model.ErrUnsupported) {
			return nil, 0, fmt.Errorf("model %s: %w", name, err)
		}
	}
	for i := range out {
		out[i].Prediction = labels[i]
		if proba != nil {
			p := proba[i]
			out[i].FraudProbability = &p
		}
	}
	return out, padded, nil
}

// Available lists stored models that belong to a supported family.
func (s *Scorer) Available(ctx context.Context) ([]string, error) {
	names, err := s.cache.Available(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if _, err := model.ParseFamily(n); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}
