package nn

import (
	"math"
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
)

func TestBatchNorm2D_Defaults(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(3, DefaultBatchNormEpsilon, DefaultBatchNormMomentum, backend)

	assert.False(t, bn.Training())
	assert.Len(t, bn.Parameters(), 2)
	assert.Equal(t, []float32{0, 0, 0}, bn.RunningMean().Data())
	assert.Equal(t, []float32{1, 1, 1}, bn.RunningVar().Data())

	keys := make([]string, 0, 4)
	for k := range bn.StateDict() {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"weight", "bias", "running_mean", "running_var"}, keys)
}

func TestBatchNorm2D_Inference(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(2, 1e-5, 0.9, backend)

	copy(bn.RunningMean().Data(), []float32{1, -2})
	copy(bn.RunningVar().Data(), []float32{4, 0.25})
	copy(bn.weight.Tensor().Data(), []float32{2, 1})
	copy(bn.bias.Tensor().Data(), []float32{0.5, 0})

	x, err := tensor.FromSlice([]float32{
		1, 3, 5, 7, // channel 0
		-2, -1, 0, 1, // channel 1
	}, tensor.Shape{1, 2, 2, 2}, backend)
	require.NoError(t, err)
	before := append([]float32(nil), x.Data()...)

	y := bn.Forward(x)

	want := make([]float32, 8)
	for i, v := range before[:4] {
		want[i] = (v-1)/float32(math.Sqrt(4+1e-5))*2 + 0.5
	}
	for i, v := range before[4:] {
		want[4+i] = (v + 2) / float32(math.Sqrt(0.25+1e-5))
	}
	assert.InDeltaSlice(t, want, y.Data(), 1e-4)
	assert.Equal(t, before, x.Data(), "input must not be modified")
}

func TestBatchNorm2D_Training(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(2, 1e-5, 0.9, backend)
	bn.SetTraining(true)

	x := randomInput(t, 11, tensor.Shape{4, 2, 3, 3}, backend)
	data := append([]float32(nil), x.Data()...)

	y := bn.Forward(x)
	out := y.Data()

	// Per-channel statistics of the input, computed directly.
	const count = 4 * 3 * 3
	for c := 0; c < 2; c++ {
		var sum, sumOut, sumOutSq float64
		var values []float64
		for n := 0; n < 4; n++ {
			for i := 0; i < 9; i++ {
				idx := (n*2+c)*9 + i
				sum += float64(data[idx])
				values = append(values, float64(data[idx]))
				sumOut += float64(out[idx])
				sumOutSq += float64(out[idx]) * float64(out[idx])
			}
		}
		mean := sum / count
		var sq float64
		for _, v := range values {
			sq += (v - mean) * (v - mean)
		}
		unbiased := sq / (count - 1)

		assert.InDelta(t, 0, sumOut/count, 1e-4, "channel %d output mean", c)
		assert.InDelta(t, 1, sumOutSq/count, 1e-3, "channel %d output variance", c)
		assert.InDelta(t, 0.1*mean, float64(bn.RunningMean().Data()[c]), 1e-5)
		assert.InDelta(t, 0.9+0.1*unbiased, float64(bn.RunningVar().Data()[c]), 1e-5)
	}
	assert.Equal(t, data, x.Data(), "input must not be modified")
}

func TestBatchNorm2D_InvalidInput(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2D(3, 1e-5, 0.9, backend)

	x := tensor.Zeros[float32](tensor.Shape{1, 2, 4, 4}, backend)
	assert.Panics(t, func() { bn.Forward(x) })
	assert.Panics(t, func() { NewBatchNorm2D(0, 1e-5, 0.9, backend) })
	assert.Panics(t, func() { NewBatchNorm2D(3, 0, 0.9, backend) })
}
