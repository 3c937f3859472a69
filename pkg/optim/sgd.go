package optim

// SGD is plain stochastic gradient descent with an optional L2 penalty.
type SGD struct {
	LearningRate float64
	// L2 adds L2*w to each weight gradient before the step.
	L2 float64
}

func NewSGD(lr float64) *SGD { return &SGD{LearningRate: lr} }

// Step updates weights in place.
func (o *SGD) Step(weights, grads []float64) {
	for i := range weights {
		weights[i] -= o.LearningRate * (grads[i] + o.L2*weights[i])
	}
}
