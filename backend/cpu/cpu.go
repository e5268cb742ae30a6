// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides Born's pure Go CPU backend extended with the kernels
// MobileNetV2 relies on: grouped (depthwise) convolution, average pooling
// and ReLU6.
//
// The backend satisfies tensor.Backend, so it also works under
// autodiff.New for training. Layers in the nn package detect the extra
// kernels by type assertion and fall back to Born primitives on backends
// that lack them.
//
// Example:
//
//	import (
//	    "github.com/born-ml/born/tensor"
//	    "github.com/born-ml/mobilenet/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	}
package cpu

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/parallel"
)

// Backend represents the extended CPU backend.
type Backend = cpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend that spreads kernels over all available cores.
func New() *Backend {
	return cpu.New()
}

// NewWithWorkers creates a CPU backend whose fused kernels use at most
// workers goroutines. Non-positive values use all available cores.
func NewWithWorkers(workers int) *Backend {
	return cpu.NewWithConfig(parallel.WithWorkers(workers))
}
