package checkpoint

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/born/loader"
	"github.com/born-ml/born/tensor"
)

// File is a weight file loaded under canonical tensor names.
type File struct {
	Path     string
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Names returns the canonical tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadFile loads every tensor of a SafeTensors file. When mapper is nil the
// stored names are kept as they are. A mapper that also implements
// Transposer converts each tensor's layout after loading.
func ReadFile(path string, backend tensor.Backend, mapper loader.WeightMapper) (*File, error) {
	model, err := loader.OpenModel(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = model.Close() // Read-only, nothing to flush
	}()

	if model.Format() != loader.FormatSafeTensors {
		return nil, fmt.Errorf("%s: expected SafeTensors, got %v", path, model.Format())
	}

	f := &File{
		Path:     path,
		Tensors:  make(map[string]*tensor.RawTensor),
		Metadata: make(map[string]string),
	}
	for k, v := range model.Metadata() {
		if s, ok := v.(string); ok {
			f.Metadata[k] = s
		}
	}

	transposer, _ := mapper.(Transposer)
	for _, stored := range model.TensorNames() {
		name := stored
		if mapper != nil {
			name, err = mapper.MapName(stored)
			if errors.Is(err, ErrSkipTensor) {
				continue
			}
			if err != nil {
				return nil, &TensorError{Tensor: stored, Err: err}
			}
		}
		if _, dup := f.Tensors[name]; dup {
			return nil, &TensorError{Tensor: stored, Err: fmt.Errorf("%w: maps onto %s twice", ErrInvalidTensorName, name)}
		}

		raw, err := model.LoadTensor(stored, backend)
		if err != nil {
			return nil, &TensorError{Tensor: stored, Err: err}
		}
		if raw.DType() != tensor.Float32 && raw.DType() != tensor.Float64 {
			return nil, &TensorError{Tensor: stored, Err: fmt.Errorf("%w: %v", ErrUnsupportedDType, raw.DType())}
		}
		if transposer != nil {
			if raw, err = transposer.Transpose(stored, raw); err != nil {
				return nil, &TensorError{Tensor: stored, Err: err}
			}
		}
		f.Tensors[name] = raw
	}

	if len(f.Tensors) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyStateDict)
	}
	return f, nil
}
