// Package train turns a resampled training set into one fitted classifier per
// algorithm family.
package train

import (
	"context"
	"fmt"
	"log/slog"

	"fraudml/pkg/model"
)

// Trainer fits one algorithm family.
type Trainer interface {
	Family() model.Family
	Fit(ctx context.Context, X [][]float64, y []int) (model.Classifier, error)
}

// Options are the settings shared by the default trainers.
type Options struct {
	Seed   int64
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Defaults returns the trainer of every family, in training order.
func Defaults(opts Options) []Trainer {
	return []Trainer{
		NewLinear(opts),
		NewForest(opts),
		NewNeighbors(opts),
		NewTree(opts),
	}
}

// Select returns the default trainers of the named families, keeping the
// order of families. An empty list selects all of them.
func Select(opts Options, families []model.Family) ([]Trainer, error) {
	all := Defaults(opts)
	if len(families) == 0 {
		return all, nil
	}
	byFamily := make(map[model.Family]Trainer, len(all))
	for _, t := range all {
		byFamily[t.Family()] = t
	}
	out := make([]Trainer, 0, len(families))
	for _, f := range families {
		t, ok := byFamily[f]
		if !ok {
			return nil, fmt.Errorf("no trainer for family %q", f)
		}
		out = append(out, t)
	}
	return out, nil
}

// Forest trains the ensemble-tree family with balanced class weights.
type Forest struct {
	Trees    int
	MaxDepth int
	opts     Options
}

func NewForest(opts Options) *Forest { return &Forest{Trees: 100, MaxDepth: 10, opts: opts} }

func (f *Forest) Family() model.Family { return model.FamilyEnsembleTree }

func (f *Forest) Fit(ctx context.Context, X [][]float64, y []int) (model.Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rf := model.NewRandomForest(
		model.WithNEstimators(f.Trees),
		model.WithForestMaxDepth(f.MaxDepth),
		model.WithForestClassWeight(model.BalancedWeights(y)),
		model.WithForestSeed(f.opts.Seed),
	)
	if err := rf.Fit(X, y); err != nil {
		return nil, err
	}
	f.opts.logger().Info("random forest trained", "trees", len(rf.Trees), "max_depth", f.MaxDepth)
	return rf, nil
}

// Neighbors trains the instance-based family. No imbalance handling beyond
// the upstream resampling.
type Neighbors struct {
	K    int
	opts Options
}

func NewNeighbors(opts Options) *Neighbors { return &Neighbors{K: 3, opts: opts} }

func (n *Neighbors) Family() model.Family { return model.FamilyInstanceBased }

func (n *Neighbors) Fit(ctx context.Context, X [][]float64, y []int) (model.Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	knn := model.NewKNN(n.K)
	if err := knn.Fit(X, y); err != nil {
		return nil, err
	}
	n.opts.logger().Info("knn indexed", "k", n.K, "rows", len(X))
	return knn, nil
}

// Tree trains the single-tree family: unbounded depth, gini, balanced
// class weights.
type Tree struct {
	opts Options
}

func NewTree(opts Options) *Tree { return &Tree{opts: opts} }

func (t *Tree) Family() model.Family { return model.FamilySingleTree }

func (t *Tree) Fit(ctx context.Context, X [][]float64, y []int) (model.Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dt := model.NewDecisionTreeClassifier(
		model.WithCriterion("gini"),
		model.WithTreeClassWeight(model.BalancedWeights(y)),
		model.WithRandomState(t.opts.Seed),
	)
	if err := dt.Fit(X, y); err != nil {
		return nil, err
	}
	t.opts.logger().Info("decision tree trained", "depth", dt.Depth(), "leaves", dt.Leaves())
	return dt, nil
}
