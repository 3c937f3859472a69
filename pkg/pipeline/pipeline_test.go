package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudml/pkg/artifact"
	"fraudml/pkg/data"
	"fraudml/pkg/dataprep"
	"fraudml/pkg/features"
	"fraudml/pkg/metrics"
	"fraudml/pkg/model"
	"fraudml/pkg/train"
)

// kaggleTable builds a synthetic table in the Kaggle file order
// Time, V1..V28, Amount, Class.
func kaggleTable(nLegit, nFraud int, seed int64) *data.Table {
	rnd := rand.New(rand.NewSource(seed))
	cols := []string{"Time"}
	cols = append(cols, features.KaggleOrder()[:28]...)
	cols = append(cols, "Amount", "Class")

	t := data.NewTable(cols, nil)
	for i := 0; i < nLegit+nFraud; i++ {
		fraud := i >= nLegit
		row := make([]float64, len(cols))
		row[0] = float64(i)
		for j := 1; j <= 28; j++ {
			row[j] = rnd.NormFloat64()
			if fraud && j <= 4 {
				row[j] += 4
			}
		}
		row[29] = rnd.ExpFloat64() * 80
		if fraud {
			row[30] = 1
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func fastTrainers() []train.Trainer {
	forest := train.NewForest(train.Options{Seed: 42})
	forest.Trees = 10
	return []train.Trainer{
		train.NewLinear(train.Options{Seed: 42}),
		forest,
		train.NewNeighbors(train.Options{}),
		train.NewTree(train.Options{Seed: 42}),
	}
}

func TestRunTableStoresEveryFamily(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewFileStore(filepath.Join(t.TempDir(), "models"))
	reports := filepath.Join(t.TempDir(), "reports")

	cfg := DefaultConfig()
	cfg.ReportDir = reports
	p, err := New(cfg, store, WithTrainers(fastTrainers()...), WithMetrics(metrics.NewCollector(nil)))
	require.NoError(t, err)

	table := kaggleTable(400, 20, 1)
	before := table.Clone()
	res, err := p.RunTable(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, before, table, "input table is not modified")

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"logreg", "rf", "knn", "dt"}, res.Saved)
	require.Len(t, res.Reports, 4)
	for _, r := range res.Reports {
		assert.Greater(t, r.Recall, 0.8, r.Model)
	}

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"logreg", "rf", "knn", "dt"}, names)

	a, err := store.Load(ctx, "rf")
	require.NoError(t, err)
	assert.Equal(t, res.RunID, a.Meta.RunID)
	assert.Equal(t, "42", a.Meta.Params["seed"])
	assert.Equal(t, dataprep.ScaledAmount, a.Layout.Columns[0])
	assert.Contains(t, a.Meta.Metrics, "f1")

	_, err = features.NewLayout(a.Layout)
	require.NoError(t, err)

	for _, f := range []string{"summary.txt", "roc.png", "f1.png"} {
		_, err := os.Stat(filepath.Join(reports, f))
		assert.NoError(t, err, f)
	}
}

func TestRunTableMissingAmount(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewFileStore(dir)
	p, err := New(DefaultConfig(), store, WithTrainers(fastTrainers()...))
	require.NoError(t, err)

	table := kaggleTable(50, 10, 2)
	idx := table.Index("Amount")
	table.Columns[idx] = "amount_usd"

	_, err = p.RunTable(context.Background(), table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataprep.ErrSchema))

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names, "a failed run writes no artifacts")
}

func TestRunTableTooFewFraudRows(t *testing.T) {
	p, err := New(DefaultConfig(), artifact.NewFileStore(t.TempDir()), WithTrainers(fastTrainers()...))
	require.NoError(t, err)

	_, err = p.RunTable(context.Background(), kaggleTable(50, 3, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resample")
}

func TestRunMissingDataFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataPath = filepath.Join(t.TempDir(), "missing.csv")
	p, err := New(cfg, artifact.NewFileStore(t.TempDir()), WithTrainers(fastTrainers()...))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load")
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := New(DefaultConfig(), artifact.NewFileStore(t.TempDir()), WithTrainers(fastTrainers()...))
	require.NoError(t, err)

	_, err = p.RunTable(ctx, kaggleTable(50, 10, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSelectsFamilies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Families = []model.Family{model.FamilySingleTree}
	p, err := New(cfg, artifact.NewFileStore(t.TempDir()))
	require.NoError(t, err)
	require.Len(t, p.trainers, 1)
	assert.Equal(t, model.FamilySingleTree, p.trainers[0].Family())

	_, err = New(cfg, nil)
	assert.Error(t, err)
}
