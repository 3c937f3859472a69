package loader

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// TrainTestSplit splits X, Y into train and test sets by ratio, preserving the
// class proportions of Y in both parts. The split is reproducible for a seed.
func TrainTestSplit(X [][]float64, Y []int, testRatio float64, seed int64) (XTrain, XTest [][]float64, YTrain, YTest []int, err error) {
	if len(X) != len(Y) {
		return nil, nil, nil, nil, errors.New("loader: X and Y length mismatch")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, nil, nil, errors.New("loader: test ratio must be in (0, 1)")
	}
	rnd := rand.New(rand.NewSource(seed))

	for _, idx := range byClass(Y) {
		rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * testRatio))
		for k, i := range idx {
			if k < nTest {
				XTest = append(XTest, X[i])
				YTest = append(YTest, Y[i])
			} else {
				XTrain = append(XTrain, X[i])
				YTrain = append(YTrain, Y[i])
			}
		}
	}
	XTrain, YTrain = ShuffleData(XTrain, YTrain, rnd)
	XTest, YTest = ShuffleData(XTest, YTest, rnd)
	return XTrain, XTest, YTrain, YTest, nil
}

// ShuffleData shuffles X and Y in unison.
func ShuffleData(X [][]float64, Y []int, rnd *rand.Rand) ([][]float64, []int) {
	n := len(X)
	indices := rnd.Perm(n)
	XShuf := make([][]float64, n)
	YShuf := make([]int, n)
	for i, idx := range indices {
		XShuf[i] = X[idx]
		YShuf[i] = Y[idx]
	}
	return XShuf, YShuf
}

// Fold holds row indices for one cross-validation round.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold deals each class's (shuffled) rows round-robin into k folds
// so every fold keeps roughly the overall class ratio.
func StratifiedKFold(Y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, errors.New("loader: k-fold needs k >= 2")
	}
	if len(Y) < k {
		return nil, errors.New("loader: fewer rows than folds")
	}
	rnd := rand.New(rand.NewSource(seed))
	assign := make([][]int, k)
	next := 0
	for _, idx := range byClass(Y) {
		rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, i := range idx {
			assign[next%k] = append(assign[next%k], i)
			next++
		}
	}

	folds := make([]Fold, k)
	for f := range k {
		test := append([]int(nil), assign[f]...)
		sort.Ints(test)
		var train []int
		for g := range k {
			if g != f {
				train = append(train, assign[g]...)
			}
		}
		sort.Ints(train)
		folds[f] = Fold{Train: train, Test: test}
	}
	return folds, nil
}

// Take gathers the rows and labels at the given indices.
func Take(X [][]float64, Y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = Y[i]
	}
	return xs, ys
}

// byClass groups row indices by label, ordered by label value.
func byClass(Y []int) [][]int {
	groups := map[int][]int{}
	var labels []int
	for i, y := range Y {
		if _, ok := groups[y]; !ok {
			labels = append(labels, y)
		}
		groups[y] = append(groups[y], i)
	}
	sort.Ints(labels)
	out := make([][]int, len(labels))
	for k, l := range labels {
		out[k] = groups[l]
	}
	return out
}
