package nn

import (
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
)

func TestConvBlock(t *testing.T) {
	backend := cpu.New()
	block := NewConvBlock(3, 8, 3, 2, 1, 1, true, backend)

	y := block.Forward(randomInput(t, 2, tensor.Shape{1, 3, 16, 16}, backend))
	assert.Equal(t, tensor.Shape{1, 8, 8, 8}, y.Shape())
	for _, v := range y.Data() {
		require.True(t, v >= 0 && v <= 6, "activation out of range: %v", v)
	}

	// conv kernel + gamma + beta
	assert.Equal(t, 8*3*3*3+8+8, CountParameters(block.Parameters()))

	keys := make([]string, 0)
	for k := range block.StateDict() {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"conv.weight",
		"bn.weight", "bn.bias", "bn.running_mean", "bn.running_var",
	}, keys)
}

func TestConvBlock_Linear(t *testing.T) {
	backend := cpu.New()
	block := NewConv1x1Block(4, 2, false, backend)
	copy(block.Conv().Weight().Tensor().Data(), []float32{
		-1, 0, 0, 0,
		0, 0, 0, 0,
	})

	x := tensor.Ones[float32](tensor.Shape{1, 4, 2, 2}, backend)
	y := block.Forward(x)

	// Without activation negative values survive.
	for _, v := range y.Data()[:4] {
		assert.Less(t, v, float32(0))
	}
}

func TestSequential_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	build := func() *Sequential[CPU] {
		s := NewSequential[CPU]()
		s.Add("unit1", NewConv1x1Block(4, 8, true, backend))
		s.Add("unit2", NewDepthwise3x3Block(8, 2, true, backend))
		s.Add("pool", NewAvgPool2D(2, 2, 0, backend))
		return s
	}

	src := build()
	dst := build()

	state := src.StateDict()
	assert.Contains(t, state, "unit1.conv.weight")
	assert.Contains(t, state, "unit2.bn.running_var")
	assert.Len(t, state, 10)

	require.NoError(t, dst.LoadStateDict(state))
	x := randomInput(t, 9, tensor.Shape{1, 4, 8, 8}, backend)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())
	assert.Equal(t, 3, dst.Len())
	assert.Equal(t, "unit2", dst.Name(1))
}

func TestSequential_SetTraining(t *testing.T) {
	backend := cpu.New()
	block := NewConv1x1Block(2, 2, true, backend)
	s := NewSequential[CPU]()
	s.Add("block", block)

	SetTraining[CPU](s, true)
	assert.True(t, block.BN().Training())
	s.SetTraining(false)
	assert.False(t, block.BN().Training())
}

func TestSequential_DuplicateName(t *testing.T) {
	s := NewSequential[CPU]()
	s.Add("a", NewFlatten[CPU]())
	assert.Panics(t, func() { s.Add("a", NewFlatten[CPU]()) })
}

func TestSubState(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	state := map[string]*tensor.RawTensor{
		"features.stage1.unit1.conv1.conv.weight": raw,
		"features.stage10.unit1.conv1.conv.weight": raw,
		"output.weight": raw,
	}
	sub := SubState(state, "features.stage1")
	assert.Len(t, sub, 1)
	assert.Contains(t, sub, "unit1.conv1.conv.weight")
}
