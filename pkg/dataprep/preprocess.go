package dataprep

import (
	"fmt"

	"fraudml/pkg/data"
	"fraudml/pkg/stats"
)

// Names of the robust-scaled columns, which lead the feature ordering.
const (
	ScaledAmount = "scaled_amount"
	ScaledTime   = "scaled_time"
)

// Options names the label and the two scale-sensitive columns.
type Options struct {
	Label  string
	Amount string
	Time   string
}

// DefaultOptions matches the Kaggle credit-card schema.
func DefaultOptions() Options {
	return Options{Label: "Class", Amount: "Amount", Time: "Time"}
}

// Result is the preprocessed feature table and label vector.
type Result struct {
	X       [][]float64
	Y       []int
	Columns []string
	// Scaler holds the median/IQR fitted on (amount, time), in that order.
	Scaler *stats.RobustScaler
	// Passthrough lists the raw column names copied after the scaled pair.
	Passthrough []string
}

// Preprocess deduplicates, median-imputes, robust-scales amount and time,
// moves the scaled pair to the front and splits off the label.
func Preprocess(t *data.Table, opts Options) (*Result, error) {
	for _, name := range []string{opts.Label, opts.Amount, opts.Time} {
		if t.Index(name) < 0 {
			return nil, &SchemaError{Column: name, Reason: "column not found"}
		}
	}

	// Imputation must run before scaling so NaNs never reach the scaler.
	clean, err := Clean(t)
	if err != nil {
		return nil, err
	}
	if clean.Len() == 0 {
		return nil, &SchemaError{Column: opts.Label, Reason: "dataset has no rows"}
	}

	labelIdx := clean.Index(opts.Label)
	amountIdx := clean.Index(opts.Amount)
	timeIdx := clean.Index(opts.Time)

	y := make([]int, clean.Len())
	for i, row := range clean.Rows {
		switch row[labelIdx] {
		case 0:
			y[i] = 0
		case 1:
			y[i] = 1
		default:
			return nil, &SchemaError{Column: opts.Label, Reason: fmt.Sprintf("row %d: label %v is not 0 or 1", i, row[labelIdx])}
		}
	}

	scaler := stats.NewRobustScaler()
	scaled, err := scaler.FitTransform(FeatureSelect(clean.Rows, []int{amountIdx, timeIdx}))
	if err != nil {
		return nil, err
	}

	var rest []int
	var passthrough []string
	for j, name := range clean.Columns {
		if j == labelIdx || j == amountIdx || j == timeIdx {
			continue
		}
		rest = append(rest, j)
		passthrough = append(passthrough, name)
	}
	others := FeatureSelect(clean.Rows, rest)

	X := make([][]float64, clean.Len())
	for i := range X {
		row := make([]float64, 0, 2+len(rest))
		row = append(row, scaled[i]...)
		row = append(row, others[i]...)
		X[i] = row
	}

	columns := append([]string{ScaledAmount, ScaledTime}, passthrough...)
	return &Result{X: X, Y: y, Columns: columns, Scaler: scaler, Passthrough: passthrough}, nil
}

// ClassCounts returns the number of legitimate and fraudulent labels.
func ClassCounts(y []int) (legit, fraud int) {
	for _, v := range y {
		if v == 1 {
			fraud++
		} else {
			legit++
		}
	}
	return legit, fraud
}
