package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSGD_Step(t *testing.T) {
	w := []float64{1, -1}
	NewSGD(0.1).Step(w, []float64{1, 2})
	assert.InDeltaSlice(t, []float64{0.9, -1.2}, w, 1e-12)
}

func TestSGD_L2Shrinks(t *testing.T) {
	o := &SGD{LearningRate: 0.5, L2: 1}
	w := []float64{2}
	o.Step(w, []float64{0})
	assert.InDelta(t, 1.0, w[0], 1e-12)
}
