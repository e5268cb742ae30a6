package nn

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	borncpu "github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
)

func TestReLU6(t *testing.T) {
	values := []float32{-4, -0.1, 0, 0.5, 5.9, 6, 6.1, 100}
	want := []float32{0, 0, 0, 0.5, 5.9, 6, 6, 6}
	shape := tensor.Shape{1, 2, 2, 2}

	t.Run("fused", func(t *testing.T) {
		backend := cpu.New()
		x, err := tensor.FromSlice(values, shape, backend)
		require.NoError(t, err)
		assert.Equal(t, want, NewReLU6[CPU]().Forward(x).Data())
	})

	t.Run("fallback", func(t *testing.T) {
		backend := autodiff.New(cpu.New())
		x, err := tensor.FromSlice(values, shape, backend)
		require.NoError(t, err)
		assert.Equal(t, want, NewReLU6[Autodiff]().Forward(x).Data())
	})

	t.Run("plain_born_cpu", func(t *testing.T) {
		backend := borncpu.New()
		x, err := tensor.FromSlice(values, shape, backend)
		require.NoError(t, err)
		assert.Equal(t, want, NewReLU6[*borncpu.Backend]().Forward(x).Data())
	})
}

func TestAvgPool2D_FallbackReusesKernel(t *testing.T) {
	backend := autodiff.New(cpu.New())
	pool := NewAvgPool2D(3, 2, 1, backend)

	first := pool.Forward(randomInput(t, 1, tensor.Shape{1, 4, 6, 6}, backend))
	conv := pool.depthwise
	require.NotNil(t, conv)
	assert.Equal(t, 4, conv.Groups())
	assert.Equal(t, tensor.Shape{1, 4, 3, 3}, first.Shape())
	for _, v := range conv.Weight().Tensor().Data() {
		assert.InDelta(t, 1.0/9, v, 1e-7)
	}

	pool.Forward(randomInput(t, 2, tensor.Shape{2, 4, 6, 6}, backend))
	assert.Same(t, conv, pool.depthwise)

	y := pool.Forward(randomInput(t, 3, tensor.Shape{1, 2, 6, 6}, backend))
	assert.NotSame(t, conv, pool.depthwise)
	assert.Equal(t, 2, pool.depthwise.InChannels())
	assert.Equal(t, tensor.Shape{1, 2, 3, 3}, y.Shape())

	// The fused CPU kernel needs no fallback.
	fused := NewAvgPool2D(3, 2, 1, cpu.New())
	fused.Forward(randomInput(t, 4, tensor.Shape{1, 4, 6, 6}, cpu.New()))
	assert.Nil(t, fused.depthwise)
}

func TestAvgPool2D_PathsAgree(t *testing.T) {
	tests := []struct {
		name                    string
		size                    int
		kernel, stride, padding int
		wantSize                int
	}{
		{"global", 7, 7, 1, 0, 1},
		{"3x3_stride2_pad1", 8, 3, 2, 1, 4},
		{"2x2_stride2", 6, 2, 2, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain := cpu.New()
			ad := autodiff.New(cpu.New())
			shape := tensor.Shape{2, 3, tt.size, tt.size}

			fused := NewAvgPool2D(tt.kernel, tt.stride, tt.padding, plain)
			fallback := NewAvgPool2D(tt.kernel, tt.stride, tt.padding, ad)

			want := fused.Forward(randomInput(t, 5, shape, plain))
			got := fallback.Forward(randomInput(t, 5, shape, ad))

			require.Equal(t, tensor.Shape{2, 3, tt.wantSize, tt.wantSize}, want.Shape())
			require.Equal(t, want.Shape(), got.Shape())
			assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-5)
			assert.Equal(t, tt.wantSize, fused.OutputSize(tt.size))
		})
	}
}

func TestFlatten(t *testing.T) {
	backend := cpu.New()
	x := randomInput(t, 1, tensor.Shape{2, 10, 1, 1}, backend)

	y := NewFlatten[CPU]().Forward(x)
	assert.Equal(t, tensor.Shape{2, 10}, y.Shape())
	assert.Equal(t, x.Data(), y.Data())

	assert.Panics(t, func() {
		NewFlatten[CPU]().Forward(tensor.Zeros[float32](tensor.Shape{3}, backend))
	})
}
