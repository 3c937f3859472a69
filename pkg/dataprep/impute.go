package dataprep

import (
	"math"

	"fraudml/pkg/data"
	"fraudml/pkg/stats"
)

// ImputeMedian replaces NaN cells in place with the median of the column's
// observed values. A column with no observed values is a schema error.
func ImputeMedian(t *data.Table) error {
	for j, name := range t.Columns {
		col := make([]float64, len(t.Rows))
		missing := 0
		for i, row := range t.Rows {
			col[i] = row[j]
			if math.IsNaN(row[j]) {
				missing++
			}
		}
		if missing == 0 {
			continue
		}
		observed := stats.Observed(col)
		if len(observed) == 0 {
			return &SchemaError{Column: name, Reason: "no observed values to impute from"}
		}
		median := stats.Median(observed)
		for _, row := range t.Rows {
			if math.IsNaN(row[j]) {
				row[j] = median
			}
		}
	}
	return nil
}
