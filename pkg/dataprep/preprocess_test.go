package dataprep

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudml/pkg/data"
)

var nan = math.NaN()

func sampleTable() *data.Table {
	return data.NewTable(
		[]string{"Time", "V1", "V2", "Amount", "Class"},
		[][]float64{
			{0, 1.0, -1.0, 10, 0},
			{1, 2.0, -2.0, 20, 0},
			{2, 3.0, -3.0, 30, 1},
			{3, 4.0, -4.0, 40, 0},
			{4, 5.0, -5.0, 50, 0},
		},
	)
}

func TestPreprocess_MissingAmountColumn(t *testing.T) {
	tbl := data.NewTable([]string{"Time", "V1", "Class"}, [][]float64{{0, 1, 0}})

	_, err := Preprocess(tbl, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Amount", se.Column)
}

func TestPreprocess_MissingLabelColumn(t *testing.T) {
	tbl := data.NewTable([]string{"Time", "Amount"}, [][]float64{{0, 1}})
	_, err := Preprocess(tbl, DefaultOptions())
	assert.ErrorIs(t, err, ErrSchema)
}

func TestPreprocess_ImputesMedianOfOtherRows(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows[2][3] = nan // Amount
	tbl.Rows[4][1] = nan // V1

	cleaned, err := Clean(tbl)
	require.NoError(t, err)
	// Median of 10, 20, 40, 50.
	assert.Equal(t, 30.0, cleaned.Rows[2][3])
	// Median of 1, 2, 3, 4.
	assert.Equal(t, 2.5, cleaned.Rows[4][1])

	res, err := Preprocess(tbl, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.X[4][2], "V1 follows the scaled pair")
	assert.InDelta(t, res.Scaler.TransformValue(0, 30), res.X[2][0], 1e-12)
}

func TestPreprocess_ColumnOrderAndScaling(t *testing.T) {
	res, err := Preprocess(sampleTable(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{ScaledAmount, ScaledTime, "V1", "V2"}, res.Columns)
	assert.Equal(t, []int{0, 0, 1, 0, 0}, res.Y)
	require.Len(t, res.X, 5)
	for _, row := range res.X {
		assert.Len(t, row, 4)
	}

	// Amount 10..50: median 30, IQR 20.
	assert.InDelta(t, -1.0, res.X[0][0], 1e-12)
	assert.InDelta(t, 1.0, res.X[4][0], 1e-12)
	// Time 0..4: median 2, IQR 2.
	assert.InDelta(t, -1.0, res.X[0][1], 1e-12)
	assert.Equal(t, []float64{30, 2}, res.Scaler.Center)
	assert.Equal(t, []string{"V1", "V2"}, res.Passthrough)
}

func TestPreprocess_RemovesDuplicates(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows = append(tbl.Rows, append([]float64(nil), tbl.Rows[0]...))

	res, err := Preprocess(tbl, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.X, 5)
}

func TestPreprocess_DoesNotMutateInput(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows[1][1] = nan
	before := tbl.Clone()

	first, err := Preprocess(tbl, DefaultOptions())
	require.NoError(t, err)
	second, err := Preprocess(tbl, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first.X, second.X)
	assert.Equal(t, first.Y, second.Y)
	assert.Equal(t, before.Columns, tbl.Columns)
	assert.True(t, math.IsNaN(tbl.Rows[1][1]))
	assert.Equal(t, before.Rows[0], tbl.Rows[0])
}

func TestClean_Idempotent(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows = append(tbl.Rows, append([]float64(nil), tbl.Rows[3]...))
	tbl.Rows[0][2] = nan

	once, err := Clean(tbl)
	require.NoError(t, err)
	twice, err := Clean(once)
	require.NoError(t, err)

	assert.Equal(t, once.Rows, twice.Rows)
	assert.False(t, twice.HasMissing())
}

func TestPreprocess_RejectsNonBinaryLabel(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows[0][4] = 2
	_, err := Preprocess(tbl, DefaultOptions())
	assert.ErrorIs(t, err, ErrSchema)
}

func TestImputeMedian_AllMissingColumn(t *testing.T) {
	tbl := data.NewTable([]string{"a"}, [][]float64{{nan}, {nan}})
	err := ImputeMedian(tbl)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestDropDuplicates_NaNRowsEqual(t *testing.T) {
	out := DropDuplicates([][]float64{{1, nan}, {1, nan}, {2, 3}})
	assert.Len(t, out, 2)
}

func TestDropDuplicates_SignedZeroRowsEqual(t *testing.T) {
	negZero := math.Copysign(0, -1)
	out := DropDuplicates([][]float64{{0, 1}, {negZero, 1}, {0, -1}})
	require.Len(t, out, 2)
	assert.Equal(t, []float64{0, -1}, out[1])
}

func TestClassCounts(t *testing.T) {
	legit, fraud := ClassCounts([]int{0, 1, 0, 0})
	assert.Equal(t, 3, legit)
	assert.Equal(t, 1, fraud)
}
