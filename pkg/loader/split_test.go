package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset(n0, n1 int) ([][]float64, []int) {
	var X [][]float64
	var Y []int
	for i := 0; i < n0; i++ {
		X = append(X, []float64{float64(i), 0})
		Y = append(Y, 0)
	}
	for i := 0; i < n1; i++ {
		X = append(X, []float64{float64(i), 1})
		Y = append(Y, 1)
	}
	return X, Y
}

func count(Y []int, label int) int {
	c := 0
	for _, y := range Y {
		if y == label {
			c++
		}
	}
	return c
}

func TestTrainTestSplit_Stratified(t *testing.T) {
	X, Y := dataset(100, 100)
	XTrain, XTest, YTrain, YTest, err := TrainTestSplit(X, Y, 0.2, 42)
	require.NoError(t, err)

	assert.Len(t, XTrain, 160)
	assert.Len(t, XTest, 40)
	assert.Equal(t, 20, count(YTest, 1))
	assert.Equal(t, 20, count(YTest, 0))
	assert.Equal(t, 80, count(YTrain, 1))

	// Labels stay aligned with their rows.
	for i, row := range XTest {
		assert.Equal(t, float64(YTest[i]), row[1])
	}
}

func TestTrainTestSplit_Reproducible(t *testing.T) {
	X, Y := dataset(30, 30)
	a, _, _, _, err := TrainTestSplit(X, Y, 0.25, 7)
	require.NoError(t, err)
	b, _, _, _, err := TrainTestSplit(X, Y, 0.25, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTrainTestSplit_BadRatio(t *testing.T) {
	X, Y := dataset(3, 3)
	_, _, _, _, err := TrainTestSplit(X, Y, 1.5, 1)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	_, Y := dataset(30, 9)
	folds, err := StratifiedKFold(Y, 3, 42)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := map[int]int{}
	for _, f := range folds {
		assert.Equal(t, len(Y), len(f.Train)+len(f.Test))
		assert.Equal(t, 3, count(takeLabels(Y, f.Test), 1))
		for _, i := range f.Test {
			seen[i]++
		}
	}
	assert.Len(t, seen, len(Y), "every row is tested exactly once")
	for _, c := range seen {
		assert.Equal(t, 1, c)
	}
}

func TestStratifiedKFold_TooFewRows(t *testing.T) {
	_, err := StratifiedKFold([]int{0, 1}, 3, 1)
	assert.Error(t, err)
}

func takeLabels(Y []int, idx []int) []int {
	_, ys := Take(make([][]float64, len(Y)), Y, idx)
	return ys
}
