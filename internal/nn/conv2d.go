package nn

import (
	"fmt"

	bornnn "github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// GroupedConvBackend is implemented by backends with a native grouped
// convolution kernel.
type GroupedConvBackend interface {
	GroupedConv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor
}

// Conv2D is a 2D convolutional layer with channel groups.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// groups == in_channels == out_channels gives a depthwise convolution.
//
// Example:
//
//	// 3x3 depthwise convolution over 96 channels, stride 2
//	dw := nn.NewConv2D(96, 96, 3, 2, 1, 96, false, backend)
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	groups      int
	useBias     bool

	weight *Parameter[B] // [out_channels, in_channels/groups, k, k]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a grouped 2D convolution with Xavier initialization.
// Panics when groups does not divide both channel counts.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding, groups int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel %d, stride %d or padding %d", kernelSize, stride, padding))
	}
	if groups <= 0 || inChannels%groups != 0 || outChannels%groups != 0 {
		panic(fmt.Sprintf("conv2d: groups %d must divide in=%d and out=%d", groups, inChannels, outChannels))
	}

	perGroup := inChannels / groups
	fanIn := perGroup * kernelSize * kernelSize
	fanOut := outChannels / groups * kernelSize * kernelSize
	weight := bornnn.Xavier(fanIn, fanOut, tensor.Shape{outChannels, perGroup, kernelSize, kernelSize}, backend)

	var bias *Parameter[B]
	if useBias {
		bias = bornnn.NewParameter("bias", bornnn.Zeros(tensor.Shape{outChannels}, backend))
	}

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		groups:      groups,
		useBias:     useBias,
		weight:      bornnn.NewParameter("weight", weight),
		bias:        bias,
		backend:     backend,
	}
}

// Forward performs the convolution.
//
// Dense convolutions use the backend's Conv2D. Grouped convolutions use the
// backend's GroupedConv2D when available, otherwise the input and weight are
// split per group, convolved and concatenated, which keeps gradients flowing
// on autodiff backends.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	var output *tensor.Tensor[float32, B]
	switch gb, ok := any(c.backend).(GroupedConvBackend); {
	case c.groups == 1:
		raw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
		output = tensor.New[float32, B](raw, c.backend)
	case ok:
		raw := gb.GroupedConv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding, c.groups)
		output = tensor.New[float32, B](raw, c.backend)
	default:
		output = c.forwardSplit(input)
	}

	if c.useBias {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

func (c *Conv2D[B]) forwardSplit(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputs := input.Chunk(c.groups, 1)
	weights := c.weight.Tensor().Chunk(c.groups, 0)

	outputs := make([]*tensor.Tensor[float32, B], c.groups)
	for g := range outputs {
		raw := c.backend.Conv2D(inputs[g].Raw(), weights[g].Raw(), c.stride, c.padding)
		outputs[g] = tensor.New[float32, B](raw, c.backend)
	}
	return tensor.Cat(outputs, 1)
}

// Parameters returns the weight and, when present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns "weight" and, when present, "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{"weight": c.weight.Tensor().Raw()}
	if c.useBias {
		stateDict["bias"] = c.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict copies weight and bias values into the layer.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(stateDict, "weight", c.weight.Tensor()); err != nil {
		return err
	}
	if c.useBias {
		return loadInto(stateDict, "bias", c.bias.Tensor())
	}
	return nil
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, groups=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.groups, c.useBias)
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int { return c.inChannels }

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int { return c.outChannels }

// Stride returns the stride.
func (c *Conv2D[B]) Stride() int { return c.stride }

// Groups returns the number of channel groups.
func (c *Conv2D[B]) Groups() int { return c.groups }

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] { return c.weight }

// OutputSize computes the output spatial size for a square input.
func (c *Conv2D[B]) OutputSize(inputSize int) int {
	return (inputSize+2*c.padding-c.kernelSize)/c.stride + 1
}
