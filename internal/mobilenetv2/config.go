// Package mobilenetv2 builds the MobileNetV2 image classifier
// ("MobileNetV2: Inverted Residuals and Linear Bottlenecks",
// arXiv:1801.04381) from the layers in internal/nn.
package mobilenetv2

import (
	"errors"
	"fmt"
)

// Reference topology at width 1.0.
const (
	initBlockChannels  = 32
	finalBlockChannels = 1280
)

var (
	layerChannels   = []int{16, 24, 32, 64, 96, 160, 320}
	layerRepeats    = []int{1, 2, 3, 4, 3, 3, 1}
	layerDownsample = []bool{false, true, true, true, false, true, false}
)

var (
	// ErrInvalidWidth is returned for a non-positive width scale or one
	// that collapses a layer to zero channels.
	ErrInvalidWidth = errors.New("invalid width scale")

	// ErrInvalidInputSize is returned when the input size does not reduce
	// to a square feature map of at least 1x1.
	ErrInvalidInputSize = errors.New("invalid input size")

	// ErrInvalidConfig is returned for non-positive channel or class counts.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config describes a MobileNetV2 network.
type Config struct {
	// Channels holds the output channels of every unit, grouped by stage.
	// The first unit of every stage but the first downsamples.
	Channels           [][]int
	InitBlockChannels  int
	FinalBlockChannels int

	Width      float64
	InChannels int
	InSize     [2]int // height, width
	Classes    int
}

// Option customizes a Config.
type Option func(*Config)

// WithInChannels sets the number of input image channels (default 3).
func WithInChannels(n int) Option {
	return func(c *Config) { c.InChannels = n }
}

// WithInSize sets the expected input height and width (default 224x224).
func WithInSize(height, width int) Option {
	return func(c *Config) { c.InSize = [2]int{height, width} }
}

// WithClasses sets the number of output classes (default 1000).
func WithClasses(n int) Option {
	return func(c *Config) { c.Classes = n }
}

// Channels returns the per-stage unit channels and the init and final block
// channel counts for a width scale.
//
// Layers are folded into stages: a downsampling layer opens a new stage,
// any other layer extends the previous one. For width != 1 every unit and
// the init block are scaled with truncation; the final block is scaled only
// when width > 1.
func Channels(width float64) (stages [][]int, initBlock, finalBlock int) {
	for i, c := range layerChannels {
		units := make([]int, layerRepeats[i])
		for j := range units {
			units[j] = c
		}
		if layerDownsample[i] || len(stages) == 0 {
			stages = append(stages, units)
		} else {
			stages[len(stages)-1] = append(stages[len(stages)-1], units...)
		}
	}

	initBlock, finalBlock = initBlockChannels, finalBlockChannels
	if width != 1.0 {
		for _, stage := range stages {
			for j := range stage {
				stage[j] = int(float64(stage[j]) * width)
			}
		}
		initBlock = int(float64(initBlock) * width)
		if width > 1.0 {
			finalBlock = int(float64(finalBlock) * width)
		}
	}
	return stages, initBlock, finalBlock
}

// NewConfig returns the configuration for a width scale.
func NewConfig(width float64, opts ...Option) (Config, error) {
	if !(width > 0) {
		return Config{}, fmt.Errorf("%w: %g", ErrInvalidWidth, width)
	}

	stages, initBlock, finalBlock := Channels(width)
	cfg := Config{
		Channels:           stages,
		InitBlockChannels:  initBlock,
		FinalBlockChannels: finalBlock,
		Width:              width,
		InChannels:         3,
		InSize:             [2]int{224, 224},
		Classes:            1000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration describes a buildable network.
func (c Config) Validate() error {
	if c.InitBlockChannels <= 0 || c.FinalBlockChannels <= 0 {
		return fmt.Errorf("%w: %g leaves a block without channels", ErrInvalidWidth, c.Width)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidConfig)
	}
	for i, stage := range c.Channels {
		if len(stage) == 0 {
			return fmt.Errorf("%w: stage %d has no units", ErrInvalidConfig, i+1)
		}
		for j, ch := range stage {
			if ch <= 0 {
				return fmt.Errorf("%w: %g leaves stage%d/unit%d without channels", ErrInvalidWidth, c.Width, i+1, j+1)
			}
		}
	}
	if c.InChannels <= 0 {
		return fmt.Errorf("%w: in_channels %d", ErrInvalidConfig, c.InChannels)
	}
	if c.Classes <= 0 {
		return fmt.Errorf("%w: classes %d", ErrInvalidConfig, c.Classes)
	}
	h, w := c.FeatureSize()
	if h < 1 || w < 1 || c.InSize[0] < 1 || c.InSize[1] < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidInputSize, c.InSize[0], c.InSize[1])
	}
	if h != w {
		return fmt.Errorf("%w: %dx%d gives a non-square %dx%d feature map",
			ErrInvalidInputSize, c.InSize[0], c.InSize[1], h, w)
	}
	return nil
}

// FeatureSize returns the spatial size of the final feature map: the input
// halved by the init block and by the first unit of every later stage.
func (c Config) FeatureSize() (height, width int) {
	height, width = c.InSize[0], c.InSize[1]
	for range len(c.Channels) {
		height, width = downsample(height), downsample(width)
	}
	return height, width
}

// downsample is the output size of a 3x3, stride 2, padding 1 convolution.
func downsample(n int) int {
	return (n+2-3)/2 + 1
}

// Units returns the total number of linear bottleneck units.
func (c Config) Units() int {
	n := 0
	for _, stage := range c.Channels {
		n += len(stage)
	}
	return n
}
