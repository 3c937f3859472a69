package model

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Confusion holds binary confusion-matrix counts with class 1 as positive.
type Confusion struct {
	TP, FP, TN, FN int
}

// NewConfusion counts the outcomes of yPred against yTrue.
func NewConfusion(yTrue, yPred []int) Confusion {
	var c Confusion
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			c.TP++
		case yPred[i] == 1 && yTrue[i] == 0:
			c.FP++
		case yPred[i] == 0 && yTrue[i] == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// Accuracy is the share of correct labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// PrecisionRecallF1 scores class 1. Undefined ratios are reported as 0.
func PrecisionRecallF1(yTrue []int, yPred []int) (prec, rec, f1 float64) {
	c := NewConfusion(yTrue, yPred)
	if c.TP+c.FP > 0 {
		prec = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN > 0 {
		rec = float64(c.TP) / float64(c.TP+c.FN)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}

// F1 is the harmonic mean of precision and recall on class 1.
func F1(yTrue, yPred []int) float64 {
	_, _, f1 := PrecisionRecallF1(yTrue, yPred)
	return f1
}

// ROC returns the false and true positive rates of the ROC curve of scores
// against yTrue, one point per distinct score.
func ROC(yTrue []int, scores []float64) (fpr, tpr []float64, err error) {
	if len(yTrue) != len(scores) {
		return nil, nil, errors.New("roc: labels and scores differ in length")
	}
	var pos, neg int
	for _, c := range yTrue {
		if c == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil, errors.New("roc: need both classes")
	}

	y := append([]float64(nil), scores...)
	classes := make([]bool, len(yTrue))
	for i, c := range yTrue {
		classes[i] = c == 1
	}
	sort.Sort(byScore{y, classes})

	tpr, fpr, _ = stat.ROC(nil, y, classes, nil)
	return fpr, tpr, nil
}

// ROCAUC is the area under the ROC curve by the trapezoidal rule.
func ROCAUC(yTrue []int, scores []float64) (float64, error) {
	fpr, tpr, err := ROC(yTrue, scores)
	if err != nil {
		return 0, err
	}
	return integrate.Trapezoidal(fpr, tpr), nil
}

// byScore sorts scores ascending, carrying their class flags along.
type byScore struct {
	y       []float64
	classes []bool
}

func (s byScore) Len() int           { return len(s.y) }
func (s byScore) Less(i, j int) bool { return s.y[i] < s.y[j] }
func (s byScore) Swap(i, j int) {
	s.y[i], s.y[j] = s.y[j], s.y[i]
	s.classes[i], s.classes[j] = s.classes[j], s.classes[i]
}
