// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package mobilenetv2 provides the MobileNetV2 image classifier
// ("MobileNetV2: Inverted Residuals and Linear Bottlenecks",
// arXiv:1801.04381) built from Born tensor operations.
//
// The network is an init block (3x3 conv, stride 2), five stages of linear
// bottleneck units, a 1x1 final block, global average pooling and a 1x1
// classifier. Every convolution is followed by batch normalization; all but
// the projection of each unit use ReLU6.
//
// Example:
//
//	import (
//	    "github.com/born-ml/born/tensor"
//	    "github.com/born-ml/mobilenet/backend/cpu"
//	    "github.com/born-ml/mobilenet/mobilenetv2"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    model, err := mobilenetv2.GetVariant(ctx, "mobilenetv2_w1", backend)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    x := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	    logits := model.Forward(x) // [1, 1000]
//	}
//
// Pretrained weights come from a model store:
//
//	store := modelstore.New(manifest)
//	model, err := mobilenetv2.GetVariant(ctx, "mobilenetv2_w1", backend,
//	    mobilenetv2.Pretrained(store))
package mobilenetv2

import (
	"context"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/mobilenetv2"
)

// Model is a MobileNetV2 network. It implements Born's nn.Module.
type Model[B tensor.Backend] = mobilenetv2.Model[B]

// LinearBottleneck is the inverted residual unit.
type LinearBottleneck[B tensor.Backend] = mobilenetv2.LinearBottleneck[B]

// Config describes a network; build it with NewConfig.
type Config = mobilenetv2.Config

// Option customizes a Config.
type Option = mobilenetv2.Option

// LayerInfo summarizes one layer, as returned by Model.Layers.
type LayerInfo = mobilenetv2.LayerInfo

// Variant is a named width configuration.
type Variant = mobilenetv2.Variant

// Fetcher resolves a model name to a local weight file.
type Fetcher = mobilenetv2.Fetcher

// GetOption customizes Get.
type GetOption = mobilenetv2.GetOption

// Named variants.
var (
	W1   = mobilenetv2.W1
	W3d4 = mobilenetv2.W3d4
	Wd2  = mobilenetv2.Wd2
	Wd4  = mobilenetv2.Wd4
)

// Errors.
var (
	ErrInvalidWidth      = mobilenetv2.ErrInvalidWidth
	ErrInvalidInputSize  = mobilenetv2.ErrInvalidInputSize
	ErrInvalidConfig     = mobilenetv2.ErrInvalidConfig
	ErrUnknownVariant    = mobilenetv2.ErrUnknownVariant
	ErrModelNameRequired = mobilenetv2.ErrModelNameRequired
)

// WithInChannels sets the number of input image channels (default 3).
func WithInChannels(n int) Option { return mobilenetv2.WithInChannels(n) }

// WithInSize sets the input height and width (default 224x224).
func WithInSize(height, width int) Option { return mobilenetv2.WithInSize(height, width) }

// WithClasses sets the number of output classes (default 1000).
func WithClasses(n int) Option { return mobilenetv2.WithClasses(n) }

// Channels returns the per-stage unit channels and the init and final block
// channels for a width scale.
func Channels(width float64) (stages [][]int, initBlock, finalBlock int) {
	return mobilenetv2.Channels(width)
}

// NewConfig returns a validated configuration for a width scale.
func NewConfig(width float64, opts ...Option) (Config, error) {
	return mobilenetv2.NewConfig(width, opts...)
}

// New builds a model with freshly initialized weights.
func New[B tensor.Backend](cfg Config, backend B) *Model[B] {
	return mobilenetv2.New(cfg, backend)
}

// NewLinearBottleneck creates a single unit.
func NewLinearBottleneck[B tensor.Backend](inChannels, outChannels, stride int, expansion bool, backend B) *LinearBottleneck[B] {
	return mobilenetv2.NewLinearBottleneck(inChannels, outChannels, stride, expansion, backend)
}

// Variants returns the named variants from widest to narrowest.
func Variants() []Variant { return mobilenetv2.Variants() }

// LookupVariant returns the variant registered under name.
func LookupVariant(name string) (Variant, error) { return mobilenetv2.LookupVariant(name) }

// Pretrained makes Get restore weights obtained from fetcher.
func Pretrained(fetcher Fetcher) GetOption { return mobilenetv2.Pretrained(fetcher) }

// WithOptions passes configuration options through Get.
func WithOptions(opts ...Option) GetOption { return mobilenetv2.WithOptions(opts...) }

// Get creates a model with the given width scale. With Pretrained, the
// weights registered under modelName are fetched and restored; modelName
// must then be non-empty.
func Get[B tensor.Backend](ctx context.Context, width float64, modelName string, backend B, opts ...GetOption) (*Model[B], error) {
	return mobilenetv2.Get(ctx, width, modelName, backend, opts...)
}

// GetVariant creates a named variant such as "mobilenetv2_wd2".
func GetVariant[B tensor.Backend](ctx context.Context, name string, backend B, opts ...GetOption) (*Model[B], error) {
	return mobilenetv2.GetVariant(ctx, name, backend, opts...)
}
