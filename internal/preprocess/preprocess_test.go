package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDecode_PNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 3, color.RGBA{R: 255, A: 255})))

	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	_, err = Decode(strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestResize_KeepsAspect(t *testing.T) {
	img := Resize(solid(200, 100, color.RGBA{A: 255}), 50)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	img = Resize(solid(30, 90, color.RGBA{A: 255}), 60)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 180, img.Bounds().Dy())
}

func TestCenterCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 10, A: 255})
	img.SetRGBA(2, 2, color.RGBA{R: 20, A: 255})

	crop := CenterCrop(img, 2, 2)
	assert.Equal(t, image.Rect(0, 0, 2, 2), crop.Bounds())
	r, _, _, _ := crop.At(0, 0).RGBA()
	assert.EqualValues(t, 10*0x101, r)
	r, _, _, _ = crop.At(1, 1).RGBA()
	assert.EqualValues(t, 20*0x101, r)
}

func TestTransform(t *testing.T) {
	opts := DefaultOptions(8, 8)
	assert.Equal(t, 10, opts.ResizeShorter)

	data, err := Transform(solid(20, 16, color.RGBA{R: 255, G: 128, B: 0, A: 255}), opts)
	require.NoError(t, err)
	require.Len(t, data, 3*8*8)

	want := [3]float32{
		(1 - ImageNetMean[0]) / ImageNetStd[0],
		(128.0/255 - ImageNetMean[1]) / ImageNetStd[1],
		(0 - ImageNetMean[2]) / ImageNetStd[2],
	}
	for c := 0; c < 3; c++ {
		for i := 0; i < 64; i++ {
			assert.InDelta(t, want[c], data[c*64+i], 0.05, "channel %d pixel %d", c, i)
		}
	}
}

func TestTransform_Grayscale(t *testing.T) {
	opts := Options{Height: 4, Width: 4, Channels: 1, Std: [3]float32{1, 1, 1}}
	data, err := Transform(solid(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255}), opts)
	require.NoError(t, err)
	require.Len(t, data, 16)
	for _, v := range data {
		assert.InDelta(t, 1.0, v, 0.01)
	}
}

func TestTransform_InvalidOptions(t *testing.T) {
	img := solid(4, 4, color.RGBA{A: 255})
	tests := []Options{
		{Height: 0, Width: 4, Channels: 3, Std: ImageNetStd},
		{Height: 4, Width: 4, Channels: 2, Std: ImageNetStd},
		{Height: 4, Width: 4, Channels: 3},
		{Height: 8, Width: 8, Channels: 3, Std: ImageNetStd, ResizeShorter: 4},
	}
	for _, opts := range tests {
		_, err := Transform(img, opts)
		assert.True(t, errors.Is(err, ErrInvalidOptions), "%+v", opts)
	}
}

func TestBatch(t *testing.T) {
	opts := DefaultOptions(4, 4)
	data, err := Batch([]image.Image{solid(8, 8, color.RGBA{A: 255}), solid(5, 9, color.RGBA{A: 255})}, opts)
	require.NoError(t, err)
	assert.Len(t, data, 2*3*16)
}

func TestTopK(t *testing.T) {
	logits := []float32{1, 3, 2, 3}
	preds := TopK(logits, 3, []string{"cat", "dog", "fish"})
	require.Len(t, preds, 3)

	assert.Equal(t, 1, preds[0].Class)
	assert.Equal(t, "dog", preds[0].Label)
	assert.Equal(t, 3, preds[1].Class)
	assert.Empty(t, preds[1].Label)
	assert.Equal(t, 2, preds[2].Class)
	assert.InDelta(t, preds[0].Probability, preds[1].Probability, 1e-7)

	var sum float32
	for _, p := range Softmax(logits) {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	assert.Len(t, TopK(logits, 10, nil), 4)
	assert.Nil(t, Softmax(nil))
}

func TestSoftmax_LargeLogits(t *testing.T) {
	probs := Softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, probs[0], 1e-6)
	assert.InDelta(t, 0.5, probs[1], 1e-6)
}

func TestReadLabels(t *testing.T) {
	labels, err := ReadLabels(strings.NewReader("tench\n\n goldfish \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tench", "", "goldfish"}, labels)
}
