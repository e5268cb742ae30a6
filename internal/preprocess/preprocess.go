// Package preprocess turns images into normalized NCHW input for the
// classifier and decodes its logits.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"io"
	"os"

	_ "golang.org/x/image/bmp"  // register BMP
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP
)

// ErrInvalidOptions is returned for unusable preprocessing options.
var ErrInvalidOptions = errors.New("invalid preprocessing options")

// ImageNet channel statistics.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Options controls how an image is mapped to network input.
type Options struct {
	// ResizeShorter scales the image so its shorter side has this length.
	// Zero resizes straight to Height x Width.
	ResizeShorter int
	Height        int
	Width         int
	Channels      int // 3 for RGB, 1 for luminance
	Mean          [3]float32
	Std           [3]float32
}

// DefaultOptions returns the ImageNet evaluation transform for an input of
// height x width: resize the shorter side by 256/224, then center crop.
func DefaultOptions(height, width int) Options {
	return Options{
		ResizeShorter: (max(height, width)*256 + 223) / 224,
		Height:        height,
		Width:         width,
		Channels:      3,
		Mean:          ImageNetMean,
		Std:           ImageNetStd,
	}
}

func (o Options) validate() error {
	switch {
	case o.Height <= 0 || o.Width <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOptions, o.Height, o.Width)
	case o.Channels != 1 && o.Channels != 3:
		return fmt.Errorf("%w: %d channels", ErrInvalidOptions, o.Channels)
	case o.ResizeShorter != 0 && o.ResizeShorter < max(o.Height, o.Width):
		return fmt.Errorf("%w: resize %d is smaller than the crop", ErrInvalidOptions, o.ResizeShorter)
	}
	for c := 0; c < o.Channels; c++ {
		if o.Std[c] == 0 {
			return fmt.Errorf("%w: zero std for channel %d", ErrInvalidOptions, c)
		}
	}
	return nil
}

// Decode decodes a PNG, JPEG, BMP, TIFF or WebP image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		_ = f.Close() // Read-only
	}()
	return Decode(f)
}

// Resize scales img so that its shorter side equals shorter.
func Resize(img image.Image, shorter int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= h {
		h = (h*shorter + w/2) / w
		w = shorter
	} else {
		w = (w*shorter + h/2) / h
		h = shorter
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ResizeTo scales img to exactly width x height.
func ResizeTo(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// CenterCrop returns the centered width x height region of img.
func CenterCrop(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	x0 := b.Min.X + (b.Dx()-width)/2
	y0 := b.Min.Y + (b.Dy()-height)/2
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, image.Point{X: x0, Y: y0}, draw.Src)
	return dst
}

// Transform resizes, crops and normalizes img into a CHW float32 slice of
// length Channels*Height*Width.
func Transform(img image.Image, opts Options) ([]float32, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var src image.Image
	if opts.ResizeShorter > 0 {
		src = CenterCrop(Resize(img, opts.ResizeShorter), opts.Width, opts.Height)
	} else {
		src = ResizeTo(img, opts.Width, opts.Height)
	}

	plane := opts.Height * opts.Width
	out := make([]float32, opts.Channels*plane)
	b := src.Bounds()
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			i := y*opts.Width + x
			c := color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			if opts.Channels == 1 {
				gray := color.GrayModel.Convert(c).(color.Gray)
				out[i] = (float32(gray.Y)/255 - opts.Mean[0]) / opts.Std[0]
				continue
			}
			out[i] = (float32(c.R)/255 - opts.Mean[0]) / opts.Std[0]
			out[plane+i] = (float32(c.G)/255 - opts.Mean[1]) / opts.Std[1]
			out[2*plane+i] = (float32(c.B)/255 - opts.Mean[2]) / opts.Std[2]
		}
	}
	return out, nil
}

// Batch transforms several images into one NCHW buffer.
func Batch(images []image.Image, opts Options) ([]float32, error) {
	var out []float32
	for i, img := range images {
		data, err := Transform(img, opts)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out = append(out, data...)
	}
	return out, nil
}
