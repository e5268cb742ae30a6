package nn

import (
	"fmt"

	bornnn "github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// AvgPoolBackend is implemented by backends with a native average pooling
// kernel.
type AvgPoolBackend interface {
	AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor
}

// AvgPool2D is a 2D average pooling layer. Padded zeros count toward the
// window, so every window is divided by kernelSize*kernelSize.
//
// Output shape: [batch, channels, (H+2p-k)/s+1, (W+2p-k)/s+1]
type AvgPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
	backend    B

	depthwise *Conv2D[B] // fallback kernel, built for the last channel count
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *AvgPool2D[B] {
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("avgpool2d: invalid kernel %d, stride %d or padding %d", kernelSize, stride, padding))
	}
	return &AvgPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		padding:    padding,
		backend:    backend,
	}
}

// Forward pools input of shape [N, C, H, W].
//
// Without a native kernel a window covering the whole unpadded map reduces
// to a spatial mean; any other window runs as a depthwise convolution with
// constant 1/(k*k) weights.
func (p *AvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("avgpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[2]+2*p.padding < p.kernelSize || shape[3]+2*p.padding < p.kernelSize {
		panic(fmt.Sprintf("avgpool2d: kernel size %d too large for input %dx%d", p.kernelSize, shape[2], shape[3]))
	}

	if ab, ok := any(p.backend).(AvgPoolBackend); ok {
		raw := ab.AvgPool2D(input.Raw(), p.kernelSize, p.stride, p.padding)
		return tensor.New[float32, B](raw, p.backend)
	}

	if p.padding == 0 && shape[2] == p.kernelSize && shape[3] == p.kernelSize {
		return input.MeanDim(3, true).MeanDim(2, true)
	}

	return p.averagingConv(shape[1]).Forward(input)
}

// averagingConv returns a depthwise convolution with constant 1/(k*k)
// weights over channels, reusing the previous one when channels match.
func (p *AvgPool2D[B]) averagingConv(channels int) *Conv2D[B] {
	if p.depthwise != nil && p.depthwise.InChannels() == channels {
		return p.depthwise
	}
	k := p.kernelSize
	conv := NewConv2D(channels, channels, k, p.stride, p.padding, channels, false, p.backend)
	weight := tensor.Full[float32](tensor.Shape{channels, 1, k, k}, 1/float32(k*k), p.backend)
	conv.weight = bornnn.NewParameter("weight", weight)
	p.depthwise = conv
	return conv
}

// OutputSize computes the pooled spatial size for a square input.
func (p *AvgPool2D[B]) OutputSize(inputSize int) int {
	return (inputSize+2*p.padding-p.kernelSize)/p.stride + 1
}

// Parameters returns nil; pooling has no parameters.
func (p *AvgPool2D[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (p *AvgPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (p *AvgPool2D[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error { return nil }

// String returns a string representation of the layer.
func (p *AvgPool2D[B]) String() string {
	return fmt.Sprintf("AvgPool2D(kernel_size=%d, stride=%d, padding=%d)", p.kernelSize, p.stride, p.padding)
}
