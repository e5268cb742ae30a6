package mobilenetv2

import (
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/nn"
)

// expansionFactor multiplies the input channels of an expanding unit.
const expansionFactor = 6

// LinearBottleneck is the MobileNetV2 unit: 1x1 expansion, 3x3 depthwise
// filter and 1x1 linear projection, with an identity shortcut when the
// unit keeps both shape and resolution.
type LinearBottleneck[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	midChannels int
	stride      int
	residual    bool

	conv1 *nn.ConvBlock[B] // 1x1 in → mid, ReLU6
	conv2 *nn.ConvBlock[B] // 3x3 depthwise mid → mid, ReLU6
	conv3 *nn.ConvBlock[B] // 1x1 mid → out, linear
}

// NewLinearBottleneck creates a unit. With expansion the hidden width is
// six times the input width, otherwise it equals the input width.
func NewLinearBottleneck[B tensor.Backend](inChannels, outChannels, stride int, expansion bool, backend B) *LinearBottleneck[B] {
	if stride != 1 && stride != 2 {
		panic(fmt.Sprintf("linear_bottleneck: stride must be 1 or 2, got %d", stride))
	}
	mid := inChannels
	if expansion {
		mid = inChannels * expansionFactor
	}

	return &LinearBottleneck[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		midChannels: mid,
		stride:      stride,
		residual:    inChannels == outChannels && stride == 1,
		conv1:       nn.NewConv1x1Block(inChannels, mid, true, backend),
		conv2:       nn.NewDepthwise3x3Block(mid, stride, true, backend),
		conv3:       nn.NewConv1x1Block(mid, outChannels, false, backend),
	}
}

// Forward runs the unit and adds the shortcut when residual.
func (u *LinearBottleneck[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := u.conv1.Forward(input)
	x = u.conv2.Forward(x)
	x = u.conv3.Forward(x)
	if u.residual {
		x = x.Add(input)
	}
	return x
}

// Parameters returns the trainable parameters of the three blocks.
func (u *LinearBottleneck[B]) Parameters() []*nn.Parameter[B] {
	params := u.conv1.Parameters()
	params = append(params, u.conv2.Parameters()...)
	return append(params, u.conv3.Parameters()...)
}

// StateDict returns the block state under "conv1.", "conv2." and "conv3.".
func (u *LinearBottleneck[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, b := range u.blocks() {
		nn.PrefixState(stateDict, b.name, b.block.StateDict())
	}
	return stateDict
}

// LoadStateDict loads the three blocks.
func (u *LinearBottleneck[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, b := range u.blocks() {
		if err := b.block.LoadStateDict(nn.SubState(stateDict, b.name)); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}
	return nil
}

// SetTraining switches the batch normalization mode of every block.
func (u *LinearBottleneck[B]) SetTraining(training bool) {
	for _, b := range u.blocks() {
		b.block.SetTraining(training)
	}
}

type namedBlock[B tensor.Backend] struct {
	name  string
	block *nn.ConvBlock[B]
}

func (u *LinearBottleneck[B]) blocks() []namedBlock[B] {
	return []namedBlock[B]{{"conv1", u.conv1}, {"conv2", u.conv2}, {"conv3", u.conv3}}
}

// Residual reports whether the unit adds its input to its output.
func (u *LinearBottleneck[B]) Residual() bool { return u.residual }

// MidChannels returns the hidden width.
func (u *LinearBottleneck[B]) MidChannels() int { return u.midChannels }

// OutChannels returns the number of output channels.
func (u *LinearBottleneck[B]) OutChannels() int { return u.outChannels }

// Stride returns the depthwise stride.
func (u *LinearBottleneck[B]) Stride() int { return u.stride }

// String returns a string representation of the unit.
func (u *LinearBottleneck[B]) String() string {
	return fmt.Sprintf("LinearBottleneck(in=%d, mid=%d, out=%d, stride=%d, residual=%v)",
		u.inChannels, u.midChannels, u.outChannels, u.stride, u.residual)
}
