package mobilenetv2

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/checkpoint"
)

// fileFetcher serves weight files from a map.
type fileFetcher struct {
	paths map[string]string
	calls int
}

func (f *fileFetcher) Fetch(_ context.Context, name string) (string, error) {
	f.calls++
	path, ok := f.paths[name]
	if !ok {
		return "", fmt.Errorf("no weights for %s", name)
	}
	return path, nil
}

func TestGet_NotPretrained(t *testing.T) {
	m, err := Get(context.Background(), 0.5, "", cpu.New())
	require.NoError(t, err)
	assert.Equal(t, 1964736, m.NumParameters())
	assert.Empty(t, m.FilePath())
}

func TestGet_Pretrained(t *testing.T) {
	small := WithOptions(WithInSize(32, 32), WithClasses(10))
	src, err := Get(context.Background(), Wd4.Width, "", cpu.New(), small)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wd4.safetensors")
	require.NoError(t, src.Save(path, Wd4.Name))

	fetcher := &fileFetcher{paths: map[string]string{Wd4.Name: path}}
	m, err := GetVariant(context.Background(), Wd4.Name, cpu.New(), Pretrained(fetcher), small)
	require.NoError(t, err)
	assert.Equal(t, path, m.FilePath())
	assert.Equal(t, 1, fetcher.calls)

	x := randomImages(t, 11, tensor.Shape{1, 3, 32, 32}, cpu.New())
	assert.InDeltaSlice(t, src.Forward(x).Data(), m.Forward(x).Data(), 1e-5)

	f, err := checkpoint.ReadFile(path, cpu.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, Wd4.Name, f.Metadata[checkpoint.MetadataModel])
	assert.Equal(t, "0.25", f.Metadata[checkpoint.MetadataWidth])
	assert.Equal(t, "10", f.Metadata[checkpoint.MetadataClasses])
}

func TestGet_Errors(t *testing.T) {
	ctx := context.Background()
	fetcher := &fileFetcher{paths: map[string]string{}}

	_, err := Get(ctx, 1.0, "", cpu.New(), Pretrained(fetcher))
	assert.True(t, errors.Is(err, ErrModelNameRequired))
	assert.Zero(t, fetcher.calls)

	_, err = Get(ctx, 1.0, "mobilenetv2_w1", cpu.New(), Pretrained(fetcher))
	assert.ErrorContains(t, err, "no weights")

	_, err = Get(ctx, -1, "", cpu.New())
	assert.True(t, errors.Is(err, ErrInvalidWidth))

	_, err = GetVariant(ctx, "mobilenetv2_w9", cpu.New())
	assert.True(t, errors.Is(err, ErrUnknownVariant))

	// Weights of another width do not fit.
	small := WithOptions(WithInSize(32, 32))
	wd2, err := Get(ctx, Wd2.Width, "", cpu.New(), small)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wd2.safetensors")
	require.NoError(t, wd2.Save(path, Wd2.Name))

	fetcher.paths[Wd4.Name] = path
	_, err = GetVariant(ctx, Wd4.Name, cpu.New(), Pretrained(fetcher), small)
	assert.Error(t, err)
}

// tensorFlowName renames a canonical tensor the way TensorFlow stores it.
func tensorFlowName(name string) string {
	leaves := map[string]string{
		"conv.weight":     "conv/kernel",
		"bn.weight":       "bn/gamma",
		"bn.bias":         "bn/beta",
		"bn.running_mean": "bn/moving_mean",
		"bn.running_var":  "bn/moving_variance",
	}
	for suffix, tf := range leaves {
		if strings.HasSuffix(name, "."+suffix) {
			name = strings.TrimSuffix(name, suffix) + tf
			break
		}
	}
	if name == "output.weight" {
		name = "output.kernel"
	}
	return strings.ReplaceAll(name, ".", "/") + ":0"
}

// toHWIO lays an OIHW kernel out as TensorFlow does: [kh, kw, in, out], or
// [kh, kw, channels, 1] for a depthwise kernel.
func toHWIO(t *testing.T, raw *tensor.RawTensor, depthwise bool) *tensor.RawTensor {
	t.Helper()
	s := raw.Shape()
	o, i, kh, kw := s[0], s[1], s[2], s[3]
	src := raw.AsFloat32()

	var shape tensor.Shape
	dst := make([]float32, len(src))
	if depthwise {
		shape = tensor.Shape{kh, kw, o, 1}
	} else {
		shape = tensor.Shape{kh, kw, i, o}
	}
	for a := 0; a < o; a++ {
		for b := 0; b < i; b++ {
			for y := 0; y < kh; y++ {
				for x := 0; x < kw; x++ {
					v := src[((a*i+b)*kh+y)*kw+x]
					if depthwise {
						dst[(y*kw+x)*o+a] = v
					} else {
						dst[((y*kw+x)*i+b)*o+a] = v
					}
				}
			}
		}
	}
	out, err := tensor.FromSlice(dst, shape, cpu.New())
	require.NoError(t, err)
	return out.Raw()
}

func TestLoadFile_TensorFlowExport(t *testing.T) {
	src := newTestModel(t, Wd4.Width, WithInSize(32, 32), WithClasses(10))

	exported := make(map[string]*tensor.RawTensor)
	for name, raw := range src.StateDict() {
		if len(raw.Shape()) == 4 {
			depthwise := strings.HasSuffix(name, ".conv2.conv.weight") && strings.Contains(name, ".unit")
			raw = toHWIO(t, raw, depthwise)
		}
		exported[tensorFlowName(name)] = raw
	}
	require.Contains(t, exported, "features/stage2/unit1/conv2/conv/kernel:0")
	require.Contains(t, exported, "output/kernel:0")

	path := filepath.Join(t.TempDir(), "tf.safetensors")
	require.NoError(t, checkpoint.WriteFile(path, exported, nil))

	dst := newTestModel(t, Wd4.Width, WithInSize(32, 32), WithClasses(10))
	require.NoError(t, dst.LoadFile(path))
	assert.Equal(t, path, dst.FilePath())

	x := randomImages(t, 12, tensor.Shape{1, 3, 32, 32}, cpu.New())
	assert.InDeltaSlice(t, src.Forward(x).Data(), dst.Forward(x).Data(), 1e-5)
}

func TestLoadFile_Float64Export(t *testing.T) {
	src := newTestModel(t, Wd4.Width, WithInSize(32, 32), WithClasses(10))

	exported := make(map[string]*tensor.RawTensor)
	for name, raw := range src.StateDict() {
		wide, err := tensor.NewRaw(raw.Shape(), tensor.Float64, tensor.CPU)
		require.NoError(t, err)
		dst := wide.AsFloat64()
		for i, v := range raw.AsFloat32() {
			dst[i] = float64(v)
		}
		exported[name] = wide
	}

	path := filepath.Join(t.TempDir(), "f64.safetensors")
	require.NoError(t, checkpoint.WriteFile(path, exported, nil))

	dst := newTestModel(t, Wd4.Width, WithInSize(32, 32), WithClasses(10))
	require.NoError(t, dst.LoadFile(path))

	x := randomImages(t, 13, tensor.Shape{1, 3, 32, 32}, cpu.New())
	assert.InDeltaSlice(t, src.Forward(x).Data(), dst.Forward(x).Data(), 1e-5)
}
