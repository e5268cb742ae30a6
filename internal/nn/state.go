package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/tensor"
)

// PrefixState copies every entry of src into dst under "prefix.key".
func PrefixState(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for key, raw := range src {
		dst[prefix+"."+key] = raw
	}
}

// SubState returns the entries of stateDict under prefix with the prefix
// and its trailing dot removed.
func SubState(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	prefix += "."
	for key, raw := range stateDict {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			sub[rest] = raw
		}
	}
	return sub
}

// loadInto copies stateDict[key] into dst after checking shape and dtype.
// Float64 values are narrowed to float32.
func loadInto[B tensor.Backend](stateDict map[string]*tensor.RawTensor, key string, dst *tensor.Tensor[float32, B]) error {
	raw, ok := stateDict[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingTensor, key)
	}
	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%w: %s expected %v, got %v", ErrShapeMismatch, key, dst.Shape(), raw.Shape())
	}
	switch raw.DType() {
	case tensor.Float32:
		copy(dst.Data(), raw.AsFloat32())
	case tensor.Float64:
		data := dst.Data()
		for i, v := range raw.AsFloat64() {
			data[i] = float32(v)
		}
	default:
		return fmt.Errorf("%w: %s expected float32 or float64, got %v", ErrDTypeMismatch, key, raw.DType())
	}
	return nil
}
