package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudml/pkg/data"
	"fraudml/pkg/dataprep"
	"fraudml/pkg/model"
)

func TestKaggleOrder(t *testing.T) {
	order := KaggleOrder()
	require.Len(t, order, Width)
	assert.Equal(t, "V1", order[0])
	assert.Equal(t, "V28", order[27])
	assert.Equal(t, []string{"Amount", "Time"}, order[28:])
}

func TestAlignPadsShortVectors(t *testing.T) {
	out, padded, err := Align([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, padded)
	require.Len(t, out, Width)
	assert.Equal(t, []float64{1, 2, 3, 0}, out[:4])
	assert.Zero(t, out[Width-1])

	full := make([]float64, Width)
	_, padded, err = Align(full)
	require.NoError(t, err)
	assert.False(t, padded)

	_, _, err = Align(make([]float64, Width+1))
	assert.Error(t, err)
}

func TestAlignRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		row := make([]float64, Width)
		row[3] = v
		_, _, err := Align(row)
		assert.ErrorIs(t, err, model.ErrNonFinite)
		assert.ErrorContains(t, err, "V4")
	}
}

func TestFromMap(t *testing.T) {
	m := map[string]float64{}
	for i, n := range KaggleOrder() {
		m[n] = float64(i)
	}
	v, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, 28.0, v[28])

	delete(m, "Time")
	_, err = FromMap(m)
	assert.Error(t, err)
}

// preprocessed builds a tiny Kaggle-shaped table with columns in file order
// Time, V1..V28, Amount, Class.
func preprocessed(t *testing.T) *dataprep.Result {
	t.Helper()
	cols := []string{"Time"}
	for i := 1; i <= 28; i++ {
		cols = append(cols, KaggleOrder()[i-1])
	}
	cols = append(cols, "Amount", "Class")

	tbl := data.NewTable(cols, nil)
	for r := 0; r < 5; r++ {
		row := make([]float64, len(cols))
		row[0] = float64(r * 10) // Time
		for j := 1; j <= 28; j++ {
			row[j] = float64(r) + float64(j)/100
		}
		row[29] = float64(r * 100) // Amount
		row[30] = float64(r % 2)
		tbl.Rows = append(tbl.Rows, row)
	}
	res, err := dataprep.Preprocess(tbl, dataprep.DefaultOptions())
	require.NoError(t, err)
	return res
}

func TestLayoutReproducesTrainingRows(t *testing.T) {
	res := preprocessed(t)
	layout, err := NewLayout(TrainingLayout(res, dataprep.DefaultOptions()))
	require.NoError(t, err)
	assert.Equal(t, res.Columns, layout.Columns())

	for r := 0; r < 5; r++ {
		raw := make([]float64, Width)
		for j := 0; j < 28; j++ {
			raw[j] = float64(r) + float64(j+1)/100
		}
		raw[28] = float64(r * 100)
		raw[29] = float64(r * 10)

		row, err := layout.Transform(raw)
		require.NoError(t, err)
		assert.InDeltaSlice(t, res.X[r], row, 1e-12)
	}
}

func TestLayoutValidation(t *testing.T) {
	_, err := NewLayout(model.InputLayout{Columns: []string{"x"}, Sources: []string{"nope"}, ScaleIndex: []int{-1}})
	assert.Error(t, err)

	_, err = NewLayout(model.InputLayout{Columns: []string{"scaled_amount"}, Sources: []string{"Amount"}, ScaleIndex: []int{0}})
	assert.Error(t, err, "a scaled column needs a scaler")

	_, err = NewLayout(model.InputLayout{Columns: []string{"a", "b"}, Sources: []string{"V1"}})
	assert.Error(t, err)
}

func TestEmptyLayoutIsIdentity(t *testing.T) {
	layout, err := NewLayout(model.InputLayout{})
	require.NoError(t, err)
	raw := make([]float64, Width)
	raw[3] = 7
	row, err := layout.Transform(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, row)
	assert.Equal(t, KaggleOrder(), layout.Columns())

	_, err = layout.Transform(raw[:5])
	assert.Error(t, err)
}

func TestFromTable(t *testing.T) {
	cols := append([]string{"Class"}, KaggleOrder()...)
	row := make([]float64, len(cols))
	for i := range row {
		row[i] = float64(i)
	}
	got, err := FromTable(data.NewTable(cols, [][]float64{row}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0], Width)
	assert.Equal(t, 1.0, got[0][0], "V1 follows the label column")
	assert.Equal(t, 30.0, got[0][Width-1])

	_, err = FromTable(data.NewTable([]string{"V1", "Amount"}, nil))
	assert.ErrorContains(t, err, "V2")
}
