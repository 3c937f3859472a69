package train

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"fraudml/pkg/loader"
	"fraudml/pkg/model"
	"fraudml/pkg/stats"
)

// Linear trains the PCA + logistic regression family, choosing C by
// stratified k-fold cross-validation on F1.
type Linear struct {
	Grid          []float64
	Folds         int
	VarianceRatio float64
	opts          Options
}

func NewLinear(opts Options) *Linear {
	return &Linear{
		Grid:          []float64{0.01, 0.1, 1, 10},
		Folds:         3,
		VarianceRatio: 0.95,
		opts:          opts,
	}
}

func (l *Linear) Family() model.Family { return model.FamilyLinear }

// CVScore is the mean validation F1 of one grid point.
type CVScore struct {
	C      float64
	MeanF1 float64
	Folds  []float64
}

// SearchResult is the outcome of the grid search.
type SearchResult struct {
	BestC  float64
	Scores []CVScore
}

// Search scores every C in the grid. Each (C, fold) fit runs in its own
// goroutine, at most GOMAXPROCS at once; ties go to the earlier grid point.
func (l *Linear) Search(ctx context.Context, X [][]float64, y []int) (SearchResult, error) {
	if len(l.Grid) == 0 {
		return SearchResult{}, fmt.Errorf("linear: empty C grid")
	}
	folds, err := loader.StratifiedKFold(y, l.Folds, l.opts.Seed)
	if err != nil {
		return SearchResult{}, fmt.Errorf("linear: %w", err)
	}

	scores := make([][]float64, len(l.Grid))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for ci, c := range l.Grid {
		for fi, fold := range folds {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				Xtr, ytr := loader.Take(X, y, fold.Train)
				Xva, yva := loader.Take(X, y, fold.Test)
				m := l.newModel(c, ytr)
				if err := m.Fit(Xtr, ytr); err != nil {
					return fmt.Errorf("C=%v fold %d: %w", c, fi, err)
				}
				pred, err := m.Predict(Xva)
				if err != nil {
					return err
				}
				scores[ci][fi] = model.F1(yva, pred)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return SearchResult{}, fmt.Errorf("linear: grid search: %w", err)
	}

	res := SearchResult{BestC: l.Grid[0]}
	best := -1.0
	for ci, c := range l.Grid {
		mean := stats.Mean(scores[ci])
		res.Scores = append(res.Scores, CVScore{C: c, MeanF1: mean, Folds: scores[ci]})
		if mean > best {
			best, res.BestC = mean, c
		}
	}
	return res, nil
}

// Fit runs the grid search and refits the best C on all rows.
func (l *Linear) Fit(ctx context.Context, X [][]float64, y []int) (model.Classifier, error) {
	res, err := l.Search(ctx, X, y)
	if err != nil {
		return nil, err
	}
	log := l.opts.logger()
	for _, s := range res.Scores {
		log.Debug("cv score", "C", s.C, "mean_f1", s.MeanF1)
	}

	m := l.newModel(res.BestC, y)
	if err := m.Fit(X, y); err != nil {
		return nil, fmt.Errorf("linear: refit: %w", err)
	}
	log.Info("logistic regression trained", "best_C", res.BestC, "components", m.PCA.K)
	return m, nil
}

func (l *Linear) newModel(c float64, y []int) *model.LinearModel {
	return model.NewLinearModel(
		model.NewPCA(l.VarianceRatio),
		model.NewLogisticRegression(
			model.WithC(c),
			model.WithClassWeight(model.BalancedWeights(y)),
			model.WithLogisticSeed(l.opts.Seed),
		),
	)
}
