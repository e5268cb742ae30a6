package mobilenetv2

import (
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/nn"
)

// Model is a MobileNetV2 network.
//
//	features.init_block   3x3 conv, stride 2 → BN → ReLU6
//	features.stageI.unitJ linear bottlenecks
//	features.final_block  1x1 conv → BN → ReLU6
//	features.final_pool   average pool over the whole feature map
//	output                1x1 conv to classes, no bias, then flatten
//
// Model implements Born's nn.Module. It starts in inference mode.
type Model[B tensor.Backend] struct {
	cfg     Config
	backend B

	initBlock  *nn.ConvBlock[B]
	stages     []*nn.Sequential[B]
	finalBlock *nn.ConvBlock[B]
	finalPool  *nn.AvgPool2D[B]
	output     *nn.Conv2D[B]
	flatten    *nn.Flatten[B]

	features *nn.Sequential[B]
	training bool

	filePath string
}

// New builds a model from cfg. cfg must come from NewConfig or pass
// Validate; New panics otherwise.
func New[B tensor.Backend](cfg Config, backend B) *Model[B] {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("mobilenetv2: %v", err))
	}

	m := &Model[B]{
		cfg:      cfg,
		backend:  backend,
		features: nn.NewSequential[B](),
		flatten:  nn.NewFlatten[B](),
	}

	m.initBlock = nn.NewConvBlock(cfg.InChannels, cfg.InitBlockChannels, 3, 2, 1, 1, true, backend)
	m.features.Add("init_block", m.initBlock)

	in := cfg.InitBlockChannels
	for i, stageChannels := range cfg.Channels {
		stage := nn.NewSequential[B]()
		for j, out := range stageChannels {
			stride := 1
			if j == 0 && i != 0 {
				stride = 2
			}
			expansion := i != 0 || j != 0
			stage.Add(fmt.Sprintf("unit%d", j+1), NewLinearBottleneck(in, out, stride, expansion, backend))
			in = out
		}
		m.stages = append(m.stages, stage)
		m.features.Add(fmt.Sprintf("stage%d", i+1), stage)
	}

	m.finalBlock = nn.NewConv1x1Block(in, cfg.FinalBlockChannels, true, backend)
	m.features.Add("final_block", m.finalBlock)

	poolSize, _ := cfg.FeatureSize()
	m.finalPool = nn.NewAvgPool2D(poolSize, 1, 0, backend)

	m.output = nn.NewConv2D(cfg.FinalBlockChannels, cfg.Classes, 1, 1, 0, 1, false, backend)
	return m
}

// Forward maps [N, in_channels, H, W] images to [N, classes] logits.
func (m *Model[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := m.finalPool.Forward(m.Features(input))
	return m.flatten.Forward(m.output.Forward(x))
}

// Features returns the final block activations before pooling, of shape
// [N, final_block_channels, h, w] with h, w = Config.FeatureSize().
func (m *Model[B]) Features(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("mobilenetv2: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != m.cfg.InChannels || shape[2] != m.cfg.InSize[0] || shape[3] != m.cfg.InSize[1] {
		panic(fmt.Sprintf("mobilenetv2: expected input [N,%d,%d,%d], got %v",
			m.cfg.InChannels, m.cfg.InSize[0], m.cfg.InSize[1], shape))
	}
	return m.features.Forward(input)
}

// Parameters returns every trainable parameter: convolution kernels and
// batch normalization scales and shifts.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return append(m.features.Parameters(), m.output.Parameters()...)
}

// NumParameters returns the number of trainable scalars.
func (m *Model[B]) NumParameters() int {
	return nn.CountParameters(m.Parameters())
}

// StateDict returns all weights and batch normalization statistics under
// hierarchical names such as "features.stage2.unit1.conv2.conv.weight".
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	nn.PrefixState(stateDict, "features", m.features.StateDict())
	nn.PrefixState(stateDict, "output", m.output.StateDict())
	return stateDict
}

// LoadStateDict restores weights produced by StateDict. Every entry the
// model needs must be present; extra entries are ignored.
func (m *Model[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := m.features.LoadStateDict(nn.SubState(stateDict, "features")); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := m.output.LoadStateDict(nn.SubState(stateDict, "output")); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// SetTraining switches every batch normalization layer between batch
// statistics (training) and running statistics (inference).
func (m *Model[B]) SetTraining(training bool) {
	m.training = training
	m.features.SetTraining(training)
}

// Training reports the current mode.
func (m *Model[B]) Training() bool {
	return m.training
}

// FilePath returns the weight file the model was restored from, or "" when
// it holds freshly initialized weights.
func (m *Model[B]) FilePath() string {
	return m.filePath
}

// Config returns the configuration the model was built from.
func (m *Model[B]) Config() Config {
	return m.cfg
}

// String returns a one-line description of the model.
func (m *Model[B]) String() string {
	return fmt.Sprintf("MobileNetV2(width=%g, in_channels=%d, in_size=%dx%d, classes=%d, units=%d)",
		m.cfg.Width, m.cfg.InChannels, m.cfg.InSize[0], m.cfg.InSize[1], m.cfg.Classes, m.cfg.Units())
}
