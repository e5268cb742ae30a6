package nn

import (
	"fmt"

	bornnn "github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Batch normalization defaults.
const (
	DefaultBatchNormEpsilon  float32 = 1e-5
	DefaultBatchNormMomentum float32 = 0.9
)

// BatchNorm2D normalizes each channel of an NCHW tensor.
//
//	y = (x - mean) / sqrt(var + eps) * gamma + beta
//
// In training mode mean and var are the batch statistics over (N, H, W) and
// the running statistics are updated as
//
//	running = momentum*running + (1-momentum)*batch
//
// using the unbiased batch variance. In inference mode the running
// statistics are used. gamma ("weight") and beta ("bias") are trainable;
// the running statistics are buffers and not returned by Parameters.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	weight *Parameter[B] // gamma [C]
	bias   *Parameter[B] // beta [C]

	runningMean *tensor.Tensor[float32, B] // [C]
	runningVar  *tensor.Tensor[float32, B] // [C]
}

// NewBatchNorm2D creates a batch normalization layer in inference mode with
// gamma=1, beta=0, running mean 0 and running variance 1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, eps, momentum float32, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid number of features %d", numFeatures))
	}
	if eps <= 0 {
		panic(fmt.Sprintf("batchnorm2d: epsilon must be positive, got %g", eps))
	}
	if momentum < 0 || momentum > 1 {
		panic(fmt.Sprintf("batchnorm2d: momentum must be in [0, 1], got %g", momentum))
	}

	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         eps,
		momentum:    momentum,
		weight:      bornnn.NewParameter("weight", bornnn.Ones(shape, backend)),
		bias:        bornnn.NewParameter("bias", bornnn.Zeros(shape, backend)),
		runningMean: bornnn.Zeros(shape, backend),
		runningVar:  bornnn.Ones(shape, backend),
	}
}

// Forward normalizes input of shape [N, C, H, W].
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}
	// The input may be a residual identity; keep the CPU backend from
	// reusing its buffer.
	defer input.Raw().ForceNonUnique()()

	c := bn.numFeatures
	var mean, variance *tensor.Tensor[float32, B]
	if bn.training {
		count := shape[0] * shape[2] * shape[3]
		mean, variance = batchMoments(input)
		bn.updateRunningStats(mean, variance, count)
	} else {
		mean = bn.runningMean.Reshape(1, c, 1, 1)
		variance = bn.runningVar.Reshape(1, c, 1, 1)
	}

	scale := variance.AddScalar(bn.eps).Rsqrt().Mul(bn.weight.Tensor().Reshape(1, c, 1, 1))
	shift := bn.bias.Tensor().Reshape(1, c, 1, 1).Sub(mean.Mul(scale))
	return input.Mul(scale).Add(shift)
}

// batchMoments returns the per-channel mean and biased variance of x as
// [1, C, 1, 1] tensors.
func batchMoments[B tensor.Backend](x *tensor.Tensor[float32, B]) (mean, variance *tensor.Tensor[float32, B]) {
	mean = x.MeanDim(3, true).MeanDim(2, true).MeanDim(0, true)
	centered := x.Sub(mean)
	defer centered.Raw().ForceNonUnique()()
	variance = centered.Mul(centered).MeanDim(3, true).MeanDim(2, true).MeanDim(0, true)
	return mean, variance
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance *tensor.Tensor[float32, B], count int) {
	correction := float32(1)
	if count > 1 {
		correction = float32(count) / float32(count-1)
	}

	m := bn.momentum
	runningMean := bn.runningMean.Data()
	runningVar := bn.runningVar.Data()
	for i, v := range mean.Data() {
		runningMean[i] = m*runningMean[i] + (1-m)*v
	}
	for i, v := range variance.Data() {
		runningVar[i] = m*runningVar[i] + (1-m)*v*correction
	}
}

// SetTraining switches between batch and running statistics.
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer uses batch statistics.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// StateDict returns gamma, beta and the running statistics.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.weight.Tensor().Raw(),
		"bias":         bn.bias.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict copies gamma, beta and the running statistics into the layer.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	targets := []struct {
		key string
		dst *tensor.Tensor[float32, B]
	}{
		{"weight", bn.weight.Tensor()},
		{"bias", bn.bias.Tensor()},
		{"running_mean", bn.runningMean},
		{"running_var", bn.runningVar},
	}
	for _, t := range targets {
		if err := loadInto(stateDict, t.key, t.dst); err != nil {
			return err
		}
	}
	return nil
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] { return bn.runningMean }

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] { return bn.runningVar }

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}
