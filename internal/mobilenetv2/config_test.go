package mobilenetv2

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannels(t *testing.T) {
	tests := []struct {
		width      float64
		stages     [][]int
		initBlock  int
		finalBlock int
	}{
		{
			width:      1.0,
			stages:     [][]int{{16}, {24, 24}, {32, 32, 32}, {64, 64, 64, 64, 96, 96, 96}, {160, 160, 160, 320}},
			initBlock:  32,
			finalBlock: 1280,
		},
		{
			width:      0.75,
			stages:     [][]int{{12}, {18, 18}, {24, 24, 24}, {48, 48, 48, 48, 72, 72, 72}, {120, 120, 120, 240}},
			initBlock:  24,
			finalBlock: 1280,
		},
		{
			width:      0.5,
			stages:     [][]int{{8}, {12, 12}, {16, 16, 16}, {32, 32, 32, 32, 48, 48, 48}, {80, 80, 80, 160}},
			initBlock:  16,
			finalBlock: 1280,
		},
		{
			width:      0.25,
			stages:     [][]int{{4}, {6, 6}, {8, 8, 8}, {16, 16, 16, 16, 24, 24, 24}, {40, 40, 40, 80}},
			initBlock:  8,
			finalBlock: 1280,
		},
		{
			// Truncation, and the final block grows above 1.0.
			width:      1.4,
			stages:     [][]int{{22}, {33, 33}, {44, 44, 44}, {89, 89, 89, 89, 134, 134, 134}, {224, 224, 224, 448}},
			initBlock:  44,
			finalBlock: 1792,
		},
	}

	for _, tt := range tests {
		stages, initBlock, finalBlock := Channels(tt.width)
		if diff := cmp.Diff(tt.stages, stages); diff != "" {
			t.Errorf("Channels(%g) stages mismatch (-want +got):\n%s", tt.width, diff)
		}
		assert.Equal(t, tt.initBlock, initBlock, "width %g init block", tt.width)
		assert.Equal(t, tt.finalBlock, finalBlock, "width %g final block", tt.width)
	}
}

func TestChannels_Independent(t *testing.T) {
	a, _, _ := Channels(1.0)
	a[0][0] = 999
	b, _, _ := Channels(1.0)
	assert.Equal(t, 16, b[0][0])
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(1.0)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.InChannels)
	assert.Equal(t, [2]int{224, 224}, cfg.InSize)
	assert.Equal(t, 1000, cfg.Classes)
	assert.Equal(t, 17, cfg.Units())

	h, w := cfg.FeatureSize()
	assert.Equal(t, 7, h)
	assert.Equal(t, 7, w)

	cfg, err = NewConfig(0.5, WithInChannels(1), WithInSize(96, 96), WithClasses(10))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.InChannels)
	assert.Equal(t, 10, cfg.Classes)
	h, _ = cfg.FeatureSize()
	assert.Equal(t, 3, h)
}

func TestNewConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		width float64
		opts  []Option
		want  error
	}{
		{"zero width", 0, nil, ErrInvalidWidth},
		{"negative width", -1, nil, ErrInvalidWidth},
		{"collapsed channels", 0.05, nil, ErrInvalidWidth},
		{"zero classes", 1, []Option{WithClasses(0)}, ErrInvalidConfig},
		{"zero in channels", 1, []Option{WithInChannels(0)}, ErrInvalidConfig},
		{"non-square features", 1, []Option{WithInSize(224, 96)}, ErrInvalidInputSize},
		{"empty input", 1, []Option{WithInSize(0, 0)}, ErrInvalidInputSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.width, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLookupVariant(t *testing.T) {
	v, err := LookupVariant("mobilenetv2_w3d4")
	require.NoError(t, err)
	assert.Equal(t, 0.75, v.Width)

	_, err = LookupVariant("mobilenetv2_w2")
	assert.True(t, errors.Is(err, ErrUnknownVariant))

	names := make([]string, 0, 4)
	for _, v := range Variants() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"mobilenetv2_w1", "mobilenetv2_w3d4", "mobilenetv2_wd2", "mobilenetv2_wd4"}, names)
}
