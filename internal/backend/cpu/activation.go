package cpu

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// ReLU6 computes min(max(x, 0), 6) element-wise.
func (cpu *CPUBackend) ReLU6(x *tensor.RawTensor) *tensor.RawTensor {
	out := cpu.newOutput("relu6", x.Shape(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		clamp(out.AsFloat32(), x.AsFloat32(), 0, 6)
	case tensor.Float64:
		clamp(out.AsFloat64(), x.AsFloat64(), 0, 6)
	default:
		panic(fmt.Sprintf("relu6: unsupported dtype %s", x.DType()))
	}
	return out
}

// ReLU computes max(x, 0) element-wise. It makes Born's nn.ReLU usable on
// the plain CPU backend, which otherwise requires autodiff.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := cpu.newOutput("relu", x.Shape(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		dst := out.AsFloat32()
		for i, v := range x.AsFloat32() {
			dst[i] = max(v, 0)
		}
	case tensor.Float64:
		dst := out.AsFloat64()
		for i, v := range x.AsFloat64() {
			dst[i] = max(v, 0)
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}
	return out
}

func clamp[T float32 | float64](dst, src []T, lo, hi T) {
	for i, v := range src {
		dst[i] = min(max(v, lo), hi)
	}
}
