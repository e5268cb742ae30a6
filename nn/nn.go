// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/nn"
)

// Module is Born's neural network module interface.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is Born's trainable parameter.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// TrainingSetter is implemented by modules that behave differently during
// training.
type TrainingSetter = nn.TrainingSetter

// Optional backend capabilities.
type (
	GroupedConvBackend = nn.GroupedConvBackend
	AvgPoolBackend     = nn.AvgPoolBackend
	ReLU6Backend       = nn.ReLU6Backend
)

// Batch normalization defaults.
const (
	DefaultBatchNormEpsilon  = nn.DefaultBatchNormEpsilon
	DefaultBatchNormMomentum = nn.DefaultBatchNormMomentum
)

// State dict errors.
var (
	ErrMissingTensor = nn.ErrMissingTensor
	ErrShapeMismatch = nn.ErrShapeMismatch
	ErrDTypeMismatch = nn.ErrDTypeMismatch
)

// Conv2D is a 2D convolution with channel groups.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a grouped 2D convolution with Xavier initialization.
//
// Example:
//
//	// 3x3 depthwise convolution over 96 channels
//	dw := nn.NewConv2D(96, 96, 3, 1, 1, 96, false, backend)
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding, groups int, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, groups, useBias, backend)
}

// BatchNorm2D normalizes each channel of an NCHW tensor.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch normalization layer in inference mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, eps, momentum float32, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, eps, momentum, backend)
}

// ReLU6 applies min(max(x, 0), 6).
type ReLU6[B tensor.Backend] = nn.ReLU6[B]

// NewReLU6 creates a ReLU6 activation.
func NewReLU6[B tensor.Backend]() *ReLU6[B] {
	return nn.NewReLU6[B]()
}

// AvgPool2D is a 2D average pooling layer.
type AvgPool2D[B tensor.Backend] = nn.AvgPool2D[B]

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *AvgPool2D[B] {
	return nn.NewAvgPool2D(kernelSize, stride, padding, backend)
}

// Flatten reshapes [N, ...] to [N, prod(...)].
type Flatten[B tensor.Backend] = nn.Flatten[B]

// NewFlatten creates a Flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// ConvBlock is conv → batch norm → optional ReLU6.
type ConvBlock[B tensor.Backend] = nn.ConvBlock[B]

// NewConvBlock creates a ConvBlock.
func NewConvBlock[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding, groups int, activate bool, backend B) *ConvBlock[B] {
	return nn.NewConvBlock(inChannels, outChannels, kernelSize, stride, padding, groups, activate, backend)
}

// Sequential chains named modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates an empty Sequential container.
func NewSequential[B tensor.Backend]() *Sequential[B] {
	return nn.NewSequential[B]()
}

// SetTraining switches module into training or inference mode when it
// supports both.
func SetTraining[B tensor.Backend](module Module[B], training bool) {
	nn.SetTraining(module, training)
}

// CountParameters returns the number of trainable scalars in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}
