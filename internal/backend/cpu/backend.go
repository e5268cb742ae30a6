// Package cpu extends Born's CPU backend with the kernels MobileNetV2 needs
// and Born does not ship: grouped convolution, average pooling and ReLU6.
package cpu

import (
	"fmt"

	borncpu "github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/parallel"
)

// CPUBackend is Born's CPU backend plus fused MobileNetV2 kernels.
// Every tensor.Backend method is promoted from the embedded backend.
type CPUBackend struct {
	*borncpu.Backend
	par parallel.Config
}

// New creates a CPU backend that uses every available core.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit worker configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		Backend: borncpu.New(),
		par:     cfg,
	}
}

// Parallelism returns the worker configuration used by the fused kernels.
func (cpu *CPUBackend) Parallelism() parallel.Config {
	return cpu.par
}

func (cpu *CPUBackend) newOutput(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create output: %v", op, err))
	}
	return out
}

// outputSize returns the spatial output extent of a sliding window.
func outputSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}
