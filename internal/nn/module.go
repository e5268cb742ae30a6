// Package nn implements the layers MobileNetV2 needs on top of Born:
// grouped convolution, batch normalization, ReLU6, average pooling and
// flattening, plus a named container.
//
// Every layer satisfies Born's nn.Module contract, so the layers mix freely
// with Born's own modules and optimizers.
package nn

import (
	bornnn "github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Module is Born's neural network module interface.
type Module[B tensor.Backend] = bornnn.Module[B]

// Parameter is Born's trainable parameter.
type Parameter[B tensor.Backend] = bornnn.Parameter[B]

// TrainingSetter is implemented by modules whose forward pass differs
// between training and inference.
type TrainingSetter interface {
	SetTraining(training bool)
}

// SetTraining switches module into training or inference mode when it
// supports both.
func SetTraining[B tensor.Backend](module Module[B], training bool) {
	if ts, ok := module.(TrainingSetter); ok {
		ts.SetTraining(training)
	}
}

// CountParameters returns the number of trainable scalars in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	return total
}
