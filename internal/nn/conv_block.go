package nn

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// ConvBlock is a bias-free convolution followed by batch normalization and
// an optional ReLU6.
//
// State dict keys are "conv.weight" and "bn.{weight,bias,running_mean,running_var}".
type ConvBlock[B tensor.Backend] struct {
	conv     *Conv2D[B]
	bn       *BatchNorm2D[B]
	activate bool
	relu6    *ReLU6[B]
}

// NewConvBlock creates a conv → BN → (ReLU6) block.
func NewConvBlock[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding, groups int,
	activate bool,
	backend B,
) *ConvBlock[B] {
	return &ConvBlock[B]{
		conv:     NewConv2D(inChannels, outChannels, kernelSize, stride, padding, groups, false, backend),
		bn:       NewBatchNorm2D(outChannels, DefaultBatchNormEpsilon, DefaultBatchNormMomentum, backend),
		activate: activate,
		relu6:    NewReLU6[B](),
	}
}

// NewConv1x1Block creates a pointwise ConvBlock.
func NewConv1x1Block[B tensor.Backend](inChannels, outChannels int, activate bool, backend B) *ConvBlock[B] {
	return NewConvBlock(inChannels, outChannels, 1, 1, 0, 1, activate, backend)
}

// NewDepthwise3x3Block creates a 3x3 depthwise ConvBlock with padding 1.
func NewDepthwise3x3Block[B tensor.Backend](channels, stride int, activate bool, backend B) *ConvBlock[B] {
	return NewConvBlock(channels, channels, 3, stride, 1, channels, activate, backend)
}

// Forward runs conv, BN and the optional activation.
func (b *ConvBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := b.bn.Forward(b.conv.Forward(input))
	if b.activate {
		x = b.relu6.Forward(x)
	}
	return x
}

// Parameters returns the conv kernel, gamma and beta.
func (b *ConvBlock[B]) Parameters() []*Parameter[B] {
	return append(b.conv.Parameters(), b.bn.Parameters()...)
}

// StateDict returns the conv and BN state under "conv." and "bn.".
func (b *ConvBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	PrefixState(stateDict, "conv", b.conv.StateDict())
	PrefixState(stateDict, "bn", b.bn.StateDict())
	return stateDict
}

// LoadStateDict loads the conv and BN state.
func (b *ConvBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := b.conv.LoadStateDict(SubState(stateDict, "conv")); err != nil {
		return fmt.Errorf("conv: %w", err)
	}
	if err := b.bn.LoadStateDict(SubState(stateDict, "bn")); err != nil {
		return fmt.Errorf("bn: %w", err)
	}
	return nil
}

// SetTraining switches the batch normalization mode.
func (b *ConvBlock[B]) SetTraining(training bool) {
	b.bn.SetTraining(training)
}

// Conv returns the convolution layer.
func (b *ConvBlock[B]) Conv() *Conv2D[B] { return b.conv }

// BN returns the batch normalization layer.
func (b *ConvBlock[B]) BN() *BatchNorm2D[B] { return b.bn }

// OutChannels returns the number of output channels.
func (b *ConvBlock[B]) OutChannels() int { return b.conv.OutChannels() }

// OutputSize computes the output spatial size for a square input.
func (b *ConvBlock[B]) OutputSize(inputSize int) int { return b.conv.OutputSize(inputSize) }

// String returns a string representation of the block.
func (b *ConvBlock[B]) String() string {
	if b.activate {
		return fmt.Sprintf("ConvBlock(%s, %s, ReLU6)", b.conv, b.bn)
	}
	return fmt.Sprintf("ConvBlock(%s, %s)", b.conv, b.bn)
}
