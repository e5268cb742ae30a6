package cpu

import (
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/parallel"
)

// AvgPool2D performs 2D average pooling.
//
// Padded positions count toward the window size, so every window is
// divided by kernelSize*kernelSize.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out_height = (height + 2*padding - kernelSize) / stride + 1
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("avgpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("avgpool2d: invalid kernel %d, stride %d or padding %d", kernelSize, stride, padding))
	}
	if padding > kernelSize/2 {
		panic(fmt.Sprintf("avgpool2d: padding %d exceeds half the kernel size %d", padding, kernelSize))
	}

	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	hOut := outputSize(h, kernelSize, stride, padding)
	wOut := outputSize(w, kernelSize, stride, padding)
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("avgpool2d: kernel size %d too large for input %dx%d", kernelSize, h, w))
	}

	out := cpu.newOutput("avgpool2d", tensor.Shape{n, c, hOut, wOut}, input.DType())
	d := convDims{
		n: n, cIn: c, h: h, w: w,
		cOut: c, kh: kernelSize, kw: kernelSize,
		hOut: hOut, wOut: wOut,
		stride: stride, padding: padding,
	}

	switch input.DType() {
	case tensor.Float32:
		avgpool2D(out.AsFloat32(), input.AsFloat32(), d, cpu.par)
	case tensor.Float64:
		avgpool2D(out.AsFloat64(), input.AsFloat64(), d, cpu.par)
	default:
		panic(fmt.Sprintf("avgpool2d: unsupported dtype %s", input.DType()))
	}
	return out
}

func avgpool2D[T float32 | float64](out, in []T, d convDims, cfg parallel.Config) {
	plane := d.hOut * d.wOut
	scale := 1 / T(d.kh*d.kw)

	parallel.Planes(d.n, d.cIn, plane, func(n, c int) {
		src := in[(n*d.cIn+c)*d.h*d.w:]
		dst := out[(n*d.cIn+c)*plane:]

		for oy := 0; oy < d.hOut; oy++ {
			y0 := max(oy*d.stride-d.padding, 0)
			y1 := min(oy*d.stride-d.padding+d.kh, d.h)
			for ox := 0; ox < d.wOut; ox++ {
				x0 := max(ox*d.stride-d.padding, 0)
				x1 := min(ox*d.stride-d.padding+d.kw, d.w)

				var sum T
				for iy := y0; iy < y1; iy++ {
					row := src[iy*d.w:]
					for ix := x0; ix < x1; ix++ {
						sum += row[ix]
					}
				}
				dst[oy*d.wOut+ox] = sum * scale
			}
		}
	}, cfg)
}
