// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the convolutional building blocks of MobileNetV2.
//
// # Overview
//
// This package complements github.com/born-ml/born/nn with:
//   - Layers: grouped/depthwise Conv2D, BatchNorm2D, AvgPool2D, Flatten
//   - Activations: ReLU6
//   - Blocks: ConvBlock (conv → batch norm → optional ReLU6)
//   - Containers: Sequential with named children and prefixed state dicts
//
// All layers implement Born's nn.Module interface.
//
// # Backend capabilities
//
// Layers look for optional kernels on the backend (GroupedConvBackend,
// AvgPoolBackend, ReLU6Backend). The CPU backend in
// github.com/born-ml/mobilenet/backend/cpu provides all three. On other
// backends, including autodiff.Backend, the layers are composed from Born
// primitives and remain differentiable.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/mobilenet/backend/cpu"
//	    "github.com/born-ml/mobilenet/nn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    block := nn.NewConvBlock(32, 64, 3, 1, 1, 32, true, backend)
//	    y := block.Forward(x)
//	}
package nn
