package checkpoint

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/loader"
	"github.com/born-ml/born/tensor"
)

// Architecture is the architecture name reported by Mapper.
const Architecture = "mobilenetv2"

// Transposer is implemented by mappers that also convert tensor layouts.
// It receives the name as stored in the file.
type Transposer interface {
	Transpose(name string, raw *tensor.RawTensor) (*tensor.RawTensor, error)
}

// leafNames maps framework parameter names to canonical ones.
var leafNames = map[string]string{
	"weight":           "weight",
	"bias":             "bias",
	"running_mean":     "running_mean",
	"running_var":      "running_var",
	"kernel":           "weight",
	"depthwise_kernel": "weight",
	"gamma":            "weight",
	"beta":             "bias",
	"moving_mean":      "running_mean",
	"moving_var":       "running_var",
	"moving_variance":  "running_var",
}

// skippedLeaves carry no model state.
var skippedLeaves = map[string]bool{
	"num_batches_tracked": true,
}

// Mapper maps TensorFlow and PyTorch tensor names onto canonical MobileNetV2
// names and converts TensorFlow kernels to OIHW.
type Mapper struct{}

var (
	_ loader.WeightMapper = Mapper{}
	_ Transposer          = Mapper{}
)

// NewMapper returns a MobileNetV2 weight mapper.
func NewMapper() Mapper {
	return Mapper{}
}

// Architecture implements loader.WeightMapper.
func (Mapper) Architecture() string {
	return Architecture
}

// MapName implements loader.WeightMapper.
//
//	features/stage1/unit1/conv1/bn/moving_variance:0 → features.stage1.unit1.conv1.bn.running_var
//	module.output.weight                            → output.weight
func (Mapper) MapName(name string) (string, error) {
	parts, err := splitName(name)
	if err != nil {
		return "", err
	}

	leaf := parts[len(parts)-1]
	if skippedLeaves[leaf] {
		return "", ErrSkipTensor
	}
	canonical, ok := leafNames[leaf]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTensor, name)
	}
	parts[len(parts)-1] = canonical

	if parts[0] != "features" && parts[0] != "output" {
		return "", fmt.Errorf("%w: %s", ErrUnknownTensor, name)
	}
	return strings.Join(parts, "."), nil
}

// Transpose implements Transposer. TensorFlow stores convolution kernels as
// [kh, kw, in, out] and depthwise kernels as [kh, kw, channels, 1]; both
// become [out, in/groups, kh, kw]. Other tensors are returned unchanged.
func (Mapper) Transpose(name string, raw *tensor.RawTensor) (*tensor.RawTensor, error) {
	if !isTensorFlowName(name) || len(raw.Shape()) != 4 {
		return raw, nil
	}
	parts, err := splitName(name)
	if err != nil {
		return nil, err
	}
	leaf := parts[len(parts)-1]
	if leaf != "kernel" && leaf != "depthwise_kernel" {
		return raw, nil
	}

	// hwio → oihw
	perm := [4]int{3, 2, 0, 1}
	if leaf == "depthwise_kernel" || isDepthwiseConv(parts) {
		// hwc1 → c1hw
		perm = [4]int{2, 3, 0, 1}
	}
	return permute(raw, perm)
}

// splitName strips framework decorations and splits a name into segments.
func splitName(name string) ([]string, error) {
	if name == "" {
		return nil, ErrInvalidTensorName
	}

	var parts []string
	if isTensorFlowName(name) {
		name, _, _ = strings.Cut(name, ":")
		parts = strings.Split(name, "/")
	} else {
		name = strings.TrimPrefix(name, "module.")
		parts = strings.Split(name, ".")
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTensorName, name)
		}
	}
	return parts, nil
}

func isTensorFlowName(name string) bool {
	return strings.ContainsAny(name, "/:")
}

// isDepthwiseConv reports whether parts name the 3x3 filter of a unit:
// features/stageI/unitJ/conv2/conv/kernel.
func isDepthwiseConv(parts []string) bool {
	n := len(parts)
	return n >= 4 && strings.HasPrefix(parts[n-4], "unit") &&
		parts[n-3] == "conv2" && parts[n-2] == "conv"
}

// permute reorders the axes of a 4D tensor: output axis i is input axis perm[i].
func permute(raw *tensor.RawTensor, perm [4]int) (*tensor.RawTensor, error) {
	in := raw.Shape()
	out := tensor.Shape{in[perm[0]], in[perm[1]], in[perm[2]], in[perm[3]]}

	dst, err := tensor.NewRaw(out, raw.DType(), raw.Device())
	if err != nil {
		return nil, err
	}

	switch raw.DType() {
	case tensor.Float32:
		permute4(raw.AsFloat32(), dst.AsFloat32(), in, perm)
	case tensor.Float64:
		permute4(raw.AsFloat64(), dst.AsFloat64(), in, perm)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDType, raw.DType())
	}
	return dst, nil
}

func permute4[T float32 | float64](src, dst []T, shape tensor.Shape, perm [4]int) {
	strides := [4]int{shape[1] * shape[2] * shape[3], shape[2] * shape[3], shape[3], 1}
	s0, s1, s2, s3 := strides[perm[0]], strides[perm[1]], strides[perm[2]], strides[perm[3]]
	d0, d1, d2, d3 := shape[perm[0]], shape[perm[1]], shape[perm[2]], shape[perm[3]]

	i := 0
	for a := 0; a < d0; a++ {
		for b := 0; b < d1; b++ {
			for c := 0; c < d2; c++ {
				base := a*s0 + b*s1 + c*s2
				for d := 0; d < d3; d++ {
					dst[i] = src[base+d*s3]
					i++
				}
			}
		}
	}
}
