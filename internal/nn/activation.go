package nn

import (
	"github.com/born-ml/born/tensor"
)

// ReLU6Backend is implemented by backends with a native ReLU6 kernel.
type ReLU6Backend interface {
	ReLU6(*tensor.RawTensor) *tensor.RawTensor
}

// ReLU6 applies min(max(x, 0), 6) element-wise.
type ReLU6[B tensor.Backend] struct{}

// NewReLU6 creates a ReLU6 activation module.
func NewReLU6[B tensor.Backend]() *ReLU6[B] {
	return &ReLU6[B]{}
}

// Forward applies ReLU6. Backends without a ReLU6 kernel get two
// element-wise selects, which autodiff can differentiate.
func (r *ReLU6[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if rb, ok := any(backend).(ReLU6Backend); ok {
		return tensor.New[float32, B](rb.ReLU6(input.Raw()), backend)
	}

	// Born's comparisons do not broadcast; the bounds match the input shape.
	zero := tensor.Zeros[float32](input.Shape(), backend)
	six := tensor.Full[float32](input.Shape(), 6, backend)
	positive := tensor.Where(input.Greater(zero), input, zero)
	return tensor.Where(positive.Lower(six), positive, six)
}

// Parameters returns nil; ReLU6 has no parameters.
func (r *ReLU6[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (r *ReLU6[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (r *ReLU6[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error { return nil }

// String returns a string representation of the layer.
func (r *ReLU6[B]) String() string { return "ReLU6()" }
