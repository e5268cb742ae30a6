package mobilenetv2

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/nn"
)

// LayerInfo summarizes one layer of the network.
type LayerInfo struct {
	Name        string
	Kind        string
	InChannels  int
	OutChannels int
	MidChannels int // bottlenecks only
	Stride      int
	OutputSize  int // spatial size, square
	Residual    bool
	Parameters  int
}

// Layers returns the layer sequence with the shape each layer produces for
// the configured input size.
func (m *Model[B]) Layers() []LayerInfo {
	size := m.cfg.InSize[0]
	layers := make([]LayerInfo, 0, m.cfg.Units()+4)

	size = m.initBlock.OutputSize(size)
	layers = append(layers, LayerInfo{
		Name:        "features.init_block",
		Kind:        "conv3x3",
		InChannels:  m.cfg.InChannels,
		OutChannels: m.initBlock.OutChannels(),
		Stride:      2,
		OutputSize:  size,
		Parameters:  nn.CountParameters(m.initBlock.Parameters()),
	})

	in := m.initBlock.OutChannels()
	for i, stage := range m.stages {
		for j := 0; j < stage.Len(); j++ {
			unit := stage.Module(j).(*LinearBottleneck[B])
			if unit.Stride() == 2 {
				size = downsample(size)
			}
			layers = append(layers, LayerInfo{
				Name:        fmt.Sprintf("features.stage%d.%s", i+1, stage.Name(j)),
				Kind:        "linear_bottleneck",
				InChannels:  in,
				OutChannels: unit.OutChannels(),
				MidChannels: unit.MidChannels(),
				Stride:      unit.Stride(),
				OutputSize:  size,
				Residual:    unit.Residual(),
				Parameters:  nn.CountParameters(unit.Parameters()),
			})
			in = unit.OutChannels()
		}
	}

	layers = append(layers,
		LayerInfo{
			Name:        "features.final_block",
			Kind:        "conv1x1",
			InChannels:  in,
			OutChannels: m.finalBlock.OutChannels(),
			Stride:      1,
			OutputSize:  size,
			Parameters:  nn.CountParameters(m.finalBlock.Parameters()),
		},
		LayerInfo{
			Name:        "features.final_pool",
			Kind:        "avgpool",
			InChannels:  m.finalBlock.OutChannels(),
			OutChannels: m.finalBlock.OutChannels(),
			Stride:      1,
			OutputSize:  m.finalPool.OutputSize(size),
		},
		LayerInfo{
			Name:        "output",
			Kind:        "conv1x1",
			InChannels:  m.finalBlock.OutChannels(),
			OutChannels: m.cfg.Classes,
			Stride:      1,
			OutputSize:  1,
			Parameters:  nn.CountParameters(m.output.Parameters()),
		},
	)
	return layers
}
