// Package pipeline runs one training batch: load, preprocess, resample,
// split, train every family, evaluate on the holdout and store the models.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fraudml/pkg/artifact"
	"fraudml/pkg/data"
	"fraudml/pkg/dataprep"
	"fraudml/pkg/evaluate"
	"fraudml/pkg/features"
	"fraudml/pkg/loader"
	"fraudml/pkg/logging"
	"fraudml/pkg/metrics"
	"fraudml/pkg/model"
	"fraudml/pkg/resample"
	"fraudml/pkg/traces"
	"fraudml/pkg/train"
)

// Config holds the settings of one training run.
type Config struct {
	DataPath       string
	Preprocess     dataprep.Options
	Seed           int64
	TestSize       float64
	SMOTENeighbors int
	SMOTERatio     float64
	Families       []model.Family // empty => every family
	ReportDir      string         // empty => no report files
}

// DefaultConfig matches the reference training run: seed 42, 20% holdout,
// SMOTE with 5 neighbours to a 1:1 balance.
func DefaultConfig() Config {
	return Config{
		Preprocess:     dataprep.DefaultOptions(),
		Seed:           42,
		TestSize:       0.2,
		SMOTENeighbors: 5,
		SMOTERatio:     1.0,
	}
}

// Pipeline chains the training stages.
type Pipeline struct {
	cfg      Config
	store    artifact.Store
	trainers []train.Trainer
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithMetrics(m *metrics.Collector) Option { return func(p *Pipeline) { p.metrics = m } }

// WithTrainers replaces the default trainers.
func WithTrainers(t ...train.Trainer) Option { return func(p *Pipeline) { p.trainers = t } }

func New(cfg Config, store artifact.Store, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline: nil artifact store")
	}
	p := &Pipeline{cfg: cfg, store: store, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	if p.trainers == nil {
		t, err := train.Select(train.Options{Seed: cfg.Seed, Logger: p.logger}, cfg.Families)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		p.trainers = t
	}
	return p, nil
}

// Result summarises a finished run.
type Result struct {
	RunID   string
	Reports []evaluate.Report
	Saved   []string
}

// Run loads Config.DataPath and trains on it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	var table *data.Table
	err := p.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		table, err = data.LoadCSV(p.cfg.DataPath)
		if err != nil {
			return err
		}
		p.logger.Info("dataset loaded", "path", p.cfg.DataPath, "rows", table.Len(), "columns", len(table.Columns))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.RunTable(ctx, table)
}

// RunTable trains on an already loaded table. The table is not modified.
// Any stage failure aborts the run before later artifacts are written.
func (p *Pipeline) RunTable(ctx context.Context, table *data.Table) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	ctx = logging.WithRunID(logging.WithLogger(ctx, p.logger), res.RunID)
	ctx, span := traces.StartSpan(ctx, "pipeline.run", traces.RunID(res.RunID), traces.Rows(table.Len()))
	defer span.End()
	log := logging.L(ctx)

	var prep *dataprep.Result
	if err := p.stage(ctx, "preprocess", func(context.Context) error {
		var err error
		prep, err = dataprep.Preprocess(table, p.cfg.Preprocess)
		if err != nil {
			return err
		}
		legit, fraud := dataprep.ClassCounts(prep.Y)
		log.Info("preprocessed", "rows", len(prep.Y), "legit", legit, "fraud", fraud, "features", len(prep.Columns))
		p.setRows("clean", prep.Y)
		return nil
	}); err != nil {
		return nil, err
	}

	var Xr [][]float64
	var yr []int
	if err := p.stage(ctx, "resample", func(context.Context) error {
		var err error
		smote := resample.New(
			resample.WithNeighbors(p.cfg.SMOTENeighbors),
			resample.WithRatio(p.cfg.SMOTERatio),
			resample.WithSeed(p.cfg.Seed),
		)
		Xr, yr, err = smote.FitResample(prep.X, prep.Y)
		if err != nil {
			return err
		}
		legit, fraud := dataprep.ClassCounts(yr)
		log.Info("resampled", "legit", legit, "fraud", fraud, "neighbors", smote.Neighbors())
		p.setRows("resampled", yr)
		return nil
	}); err != nil {
		return nil, err
	}

	var Xtr, Xte [][]float64
	var ytr, yte []int
	if err := p.stage(ctx, "split", func(context.Context) error {
		var err error
		Xtr, Xte, ytr, yte, err = loader.TrainTestSplit(Xr, yr, p.cfg.TestSize, p.cfg.Seed)
		if err != nil {
			return err
		}
		log.Info("split", "train", len(ytr), "test", len(yte))
		p.setRows("train", ytr)
		p.setRows("test", yte)
		return nil
	}); err != nil {
		return nil, err
	}

	layout := features.TrainingLayout(prep, p.cfg.Preprocess)
	for _, tr := range p.trainers {
		family := tr.Family()
		var clf model.Classifier
		if err := p.stage(ctx, "train."+string(family), func(ctx context.Context) error {
			traces.Annotate(ctx, traces.Family(string(family)), traces.Rows(len(ytr)))
			var err error
			clf, err = tr.Fit(ctx, Xtr, ytr)
			return err
		}); err != nil {
			return nil, err
		}

		var report evaluate.Report
		if err := p.stage(ctx, "evaluate."+string(family), func(context.Context) error {
			var err error
			report, err = evaluate.Evaluate(string(family), clf, Xte, yte)
			if err != nil {
				return err
			}
			report.Log(log)
			if p.metrics != nil {
				p.metrics.SetEvaluation(string(family), report.Metrics())
			}
			return nil
		}); err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, report)

		if err := p.stage(ctx, "save."+string(family), func(ctx context.Context) error {
			a, err := model.NewArtifact(clf, layout, model.Metadata{
				RunID:     res.RunID,
				TrainedAt: time.Now().UTC(),
				TrainRows: len(ytr),
				Params:    p.params(),
				Metrics:   report.Metrics(),
			})
			if err != nil {
				return err
			}
			return p.store.Save(ctx, string(family), a)
		}); err != nil {
			return nil, err
		}
		res.Saved = append(res.Saved, string(family))
	}

	if p.cfg.ReportDir != "" {
		if err := p.stage(ctx, "report", func(context.Context) error {
			return WriteReports(p.cfg.ReportDir, res.Reports)
		}); err != nil {
			return nil, err
		}
	}
	log.Info("training run complete", "models", res.Saved)
	return res, nil
}

// stage runs one named step inside a span, timing it and wrapping its error
// with the stage name. Cancellation is only observed between stages.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := traces.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.ObserveStage(name, elapsed)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", name, err)
	}
	logging.L(ctx).Debug("stage finished", "stage", name, "elapsed", elapsed)
	return nil
}

func (p *Pipeline) setRows(set string, y []int) {
	if p.metrics == nil {
		return
	}
	legit, fraud := dataprep.ClassCounts(y)
	p.metrics.SetRows(set, legit, fraud)
}

func (p *Pipeline) params() map[string]string {
	return map[string]string{
		"seed":            strconv.FormatInt(p.cfg.Seed, 10),
		"test_size":       strconv.FormatFloat(p.cfg.TestSize, 'g', -1, 64),
		"smote_neighbors": strconv.Itoa(p.cfg.SMOTENeighbors),
		"smote_ratio":     strconv.FormatFloat(p.cfg.SMOTERatio, 'g', -1, 64),
	}
}

// WriteReports writes summary.txt, roc.png and f1.png into dir.
func WriteReports(dir string, reports []evaluate.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	summary, err := os.Create(filepath.Join(dir, "summary.txt"))
	if err != nil {
		return err
	}
	evaluate.WriteSummary(summary, reports)
	if err := summary.Close(); err != nil {
		return err
	}

	hasCurve := false
	for _, r := range reports {
		hasCurve = hasCurve || r.ROC != nil
	}
	if hasCurve {
		if err := evaluate.PlotROC(reports, filepath.Join(dir, "roc.png")); err != nil {
			return fmt.Errorf("roc plot: %w", err)
		}
	}

	chart, err := os.Create(filepath.Join(dir, "f1.png"))
	if err != nil {
		return err
	}
	defer chart.Close()
	if err := evaluate.CompareChart(chart, reports, "f1"); err != nil {
		return fmt.Errorf("comparison chart: %w", err)
	}
	return nil
}
