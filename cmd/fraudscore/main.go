// Command fraudscore scores a transaction CSV against a stored model and
// writes the input columns plus prediction and fraud_probability.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"

	"fraudml/pkg/artifact"
	"fraudml/pkg/config"
	"fraudml/pkg/data"
	"fraudml/pkg/evaluate"
	"fraudml/pkg/features"
	"fraudml/pkg/logging"
	"fraudml/pkg/model"
	"fraudml/pkg/serve"
)

const defaultChunk = 4000

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	in := flag.String("in", "", "transaction CSV to score (required)")
	out := flag.String("out", "", "output CSV (default stdout)")
	name := flag.String("model", cfg.DefaultModel, "model to score with")
	chunk := flag.Int("chunk", defaultChunk, "rows per scoring request")
	flag.StringVar(&cfg.ModelDir, "models", cfg.ModelDir, "artifact directory for the file backend")
	flag.Parse()
	if *in == "" || *chunk < 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	ctx := context.Background()

	table, err := data.LoadCSV(*in)
	if err != nil {
		log.Fatalf("input: %v", err)
	}
	rows, err := features.FromTable(table)
	if err != nil {
		log.Fatalf("input: %v", err)
	}

	store, closeStore, err := artifact.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}
	defer closeStore()
	scorer := serve.NewScorer(artifact.NewCache(store, logger), nil, logger)

	preds := make([]serve.Prediction, 0, len(rows))
	for start := 0; start < len(rows); start += *chunk {
		end := min(start+*chunk, len(rows))
		got, err := scorer.Score(ctx, *name, rows[start:end])
		if err != nil {
			log.Fatalf("rows %d-%d: %v", start, end-1, err)
		}
		preds = append(preds, got...)
		logger.Debug("chunk scored", "from", start, "to", end)
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("output: %v", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeScores(w, table, preds); err != nil {
		log.Fatalf("output: %v", err)
	}
	logger.Info("scored", "model", *name, "rows", len(preds))

	if labels := table.Column("Class"); labels != nil {
		report, err := holdoutReport(*name, labels, preds)
		if err != nil {
			log.Fatalf("metrics: %v", err)
		}
		report.Log(logger)
		evaluate.WriteSummary(os.Stderr, []evaluate.Report{report})
	}
}

func writeScores(w io.Writer, t *data.Table, preds []serve.Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), t.Columns...), "prediction", "fraud_probability")); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns)+2)
	for i, row := range t.Rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		p := preds[i]
		rec[len(row)] = strconv.Itoa(p.Prediction)
		rec[len(row)+1] = ""
		if p.FraudProbability != nil {
			rec[len(row)+1] = strconv.FormatFloat(*p.FraudProbability, 'f', 6, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// holdoutReport scores predictions against the labels carried by the input.
func holdoutReport(name string, labels []float64, preds []serve.Prediction) (evaluate.Report, error) {
	y := make([]int, len(labels))
	pred := make([]int, len(preds))
	proba := make([]float64, 0, len(preds))
	for i, v := range labels {
		if v != 0 && v != 1 {
			return evaluate.Report{}, fmt.Errorf("row %d: label %v is not 0 or 1", i, v)
		}
		y[i] = int(v)
		pred[i] = preds[i].Prediction
		if p := preds[i].FraudProbability; p != nil {
			proba = append(proba, *p)
		}
	}

	r := evaluate.Report{Model: name, Support: len(y), Confusion: model.NewConfusion(y, pred)}
	r.Precision, r.Recall, r.F1 = model.PrecisionRecallF1(y, pred)
	r.Accuracy = model.Accuracy(y, pred)
	if len(proba) == len(y) {
		if auc, err := model.ROCAUC(y, proba); err == nil {
			r.AUC = &auc
		}
	}
	return r, nil
}
