package mobilenetv2

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/checkpoint"
)

// ErrModelNameRequired is returned by Get when pretrained weights are
// requested without a model name.
var ErrModelNameRequired = errors.New("model name is required to load pretrained weights")

// Fetcher resolves a model name to a local weight file.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

type getOptions struct {
	fetcher Fetcher
	config  []Option
}

// GetOption customizes Get.
type GetOption func(*getOptions)

// Pretrained restores weights fetched by fetcher, typically a
// *modelstore.Store.
func Pretrained(fetcher Fetcher) GetOption {
	return func(o *getOptions) { o.fetcher = fetcher }
}

// WithOptions passes configuration options to NewConfig.
func WithOptions(opts ...Option) GetOption {
	return func(o *getOptions) { o.config = append(o.config, opts...) }
}

// Get creates a MobileNetV2 with the given width scale. With Pretrained the
// weights registered under modelName are fetched, restored, and the file
// path is recorded on the model.
func Get[B tensor.Backend](ctx context.Context, width float64, modelName string, backend B, opts ...GetOption) (*Model[B], error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := NewConfig(width, o.config...)
	if err != nil {
		return nil, err
	}
	if o.fetcher != nil && modelName == "" {
		return nil, ErrModelNameRequired
	}

	m := New(cfg, backend)
	if o.fetcher == nil {
		return m, nil
	}

	path, err := o.fetcher.Fetch(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", modelName, err)
	}
	if err := m.LoadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", modelName, err)
	}
	return m, nil
}

// GetVariant creates the named variant, such as "mobilenetv2_w1".
func GetVariant[B tensor.Backend](ctx context.Context, name string, backend B, opts ...GetOption) (*Model[B], error) {
	v, err := LookupVariant(name)
	if err != nil {
		return nil, err
	}
	return Get(ctx, v.Width, v.Name, backend, opts...)
}

// LoadFile restores weights from a SafeTensors file written by Save or
// exported from TensorFlow or PyTorch, and records its path.
func (m *Model[B]) LoadFile(path string) error {
	f, err := checkpoint.ReadFile(path, m.backend, checkpoint.NewMapper())
	if err != nil {
		return err
	}
	if err := m.LoadStateDict(f.Tensors); err != nil {
		return err
	}
	m.filePath = path
	return nil
}

// Save writes the model state to path as SafeTensors. name is stored in
// the file metadata.
func (m *Model[B]) Save(path, name string) error {
	return checkpoint.WriteFile(path, m.StateDict(), map[string]string{
		checkpoint.MetadataFormat:  checkpoint.Architecture,
		checkpoint.MetadataModel:   name,
		checkpoint.MetadataWidth:   strconv.FormatFloat(m.cfg.Width, 'g', -1, 64),
		checkpoint.MetadataClasses: strconv.Itoa(m.cfg.Classes),
	})
}
