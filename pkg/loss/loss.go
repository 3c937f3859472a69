package loss

import "math"

// WeightedBCE is the binary cross-entropy averaged over sum(w), with its
// gradient with respect to the linear score (not the probability).
// A nil weight slice means unit weights.
func WeightedBCE(yTrue, yPred, w []float64) (float64, []float64) {
	n := len(yTrue)
	s := 0.0
	total := 0.0
	grad := make([]float64, n)

	for i := range n {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		total += wi
		p := math.Min(math.Max(yPred[i], 1e-12), 1-1e-12)
		y := yTrue[i]
		s += -wi * (y*math.Log(p) + (1-y)*math.Log(1-p))
		grad[i] = wi * (yPred[i] - y)
	}
	if total == 0 {
		return 0, grad
	}
	for i := range grad {
		grad[i] /= total
	}
	return s / total, grad
}

// BCE is WeightedBCE with unit weights.
func BCE(yTrue, yPred []float64) (float64, []float64) {
	return WeightedBCE(yTrue, yPred, nil)
}
