package dataprep

import (
	"encoding/binary"
	"math"

	"fraudml/pkg/data"
)

// DropDuplicates removes rows equal in every column, keeping the first occurrence.
// NaN cells compare equal to each other, as do 0 and -0.
func DropDuplicates(X [][]float64) [][]float64 {
	seen := make(map[string]struct{}, len(X))
	out := make([][]float64, 0, len(X))
	for _, row := range X {
		key := rowKey(row)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			out = append(out, row)
		}
	}
	return out
}

// rowKey encodes a row by value: -0 is folded into 0 and every NaN into one
// canonical bit pattern.
func rowKey(row []float64) string {
	buf := make([]byte, 0, 8*len(row))
	for _, v := range row {
		bits := math.Float64bits(v)
		switch {
		case v == 0:
			bits = 0
		case math.IsNaN(v):
			bits = math.Float64bits(math.NaN())
		}
		buf = binary.LittleEndian.AppendUint64(buf, bits)
	}
	return string(buf)
}

// Clean deduplicates rows and fills missing cells with column medians.
// The input table is left untouched.
func Clean(t *data.Table) (*data.Table, error) {
	cp := t.Clone()
	cp.Rows = DropDuplicates(cp.Rows)
	if err := ImputeMedian(cp); err != nil {
		return nil, err
	}
	return cp, nil
}
