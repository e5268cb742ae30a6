package cpu

import (
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/mobilenet/internal/parallel"
)

type convDims struct {
	n, cIn, h, w            int
	cOut, kh, kw            int
	hOut, wOut              int
	stride, padding         int
	groups                  int
	inPerGroup, outPerGroup int
}

// GroupedConv2D performs a 2D convolution whose channels are split into
// groups. groups == 1 is a dense convolution; groups == in_channels with a
// [C, 1, K, K] kernel is a depthwise convolution.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels/groups, kH, kW]
// Output shape: [batch, out_channels, out_height, out_width]
//
// Each output plane is computed by direct accumulation, which for the
// depthwise case touches only its own input channel.
func (cpu *CPUBackend) GroupedConv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	inShape := input.Shape()
	kShape := kernel.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("grouped_conv2d: expected 4D input [N,C,H,W], got %dD", len(inShape)))
	}
	if len(kShape) != 4 {
		panic(fmt.Sprintf("grouped_conv2d: expected 4D kernel [Cout,Cin/g,kH,kW], got %dD", len(kShape)))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("grouped_conv2d: dtype mismatch %s vs %s", input.DType(), kernel.DType()))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("grouped_conv2d: invalid stride %d or padding %d", stride, padding))
	}
	if groups <= 0 || inShape[1]%groups != 0 || kShape[0]%groups != 0 {
		panic(fmt.Sprintf("grouped_conv2d: groups %d must divide in_channels %d and out_channels %d",
			groups, inShape[1], kShape[0]))
	}
	if kShape[1] != inShape[1]/groups {
		panic(fmt.Sprintf("grouped_conv2d: kernel expects %d input channels per group, input provides %d",
			kShape[1], inShape[1]/groups))
	}

	d := convDims{
		n: inShape[0], cIn: inShape[1], h: inShape[2], w: inShape[3],
		cOut: kShape[0], kh: kShape[2], kw: kShape[3],
		stride: stride, padding: padding, groups: groups,
	}
	d.hOut = outputSize(d.h, d.kh, stride, padding)
	d.wOut = outputSize(d.w, d.kw, stride, padding)
	d.inPerGroup = d.cIn / groups
	d.outPerGroup = d.cOut / groups
	if d.hOut <= 0 || d.wOut <= 0 {
		panic(fmt.Sprintf("grouped_conv2d: kernel %dx%d too large for input %dx%d with padding %d",
			d.kh, d.kw, d.h, d.w, padding))
	}

	out := cpu.newOutput("grouped_conv2d", tensor.Shape{d.n, d.cOut, d.hOut, d.wOut}, input.DType())

	switch input.DType() {
	case tensor.Float32:
		groupedConv2D(out.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), d, cpu.par)
	case tensor.Float64:
		groupedConv2D(out.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), d, cpu.par)
	default:
		panic(fmt.Sprintf("grouped_conv2d: unsupported dtype %s", input.DType()))
	}
	return out
}

func groupedConv2D[T float32 | float64](out, in, k []T, d convDims, cfg parallel.Config) {
	plane := d.hOut * d.wOut
	kSize := d.kh * d.kw

	parallel.Planes(d.n, d.cOut, plane, func(n, oc int) {
		dst := out[(n*d.cOut+oc)*plane : (n*d.cOut+oc+1)*plane]
		firstIn := (oc / d.outPerGroup) * d.inPerGroup

		for icl := 0; icl < d.inPerGroup; icl++ {
			src := in[(n*d.cIn+firstIn+icl)*d.h*d.w:]
			wts := k[(oc*d.inPerGroup+icl)*kSize:]

			for ky := 0; ky < d.kh; ky++ {
				for kx := 0; kx < d.kw; kx++ {
					wv := wts[ky*d.kw+kx]
					if wv == 0 {
						continue
					}
					for oy := 0; oy < d.hOut; oy++ {
						iy := oy*d.stride - d.padding + ky
						if iy < 0 || iy >= d.h {
							continue
						}
						row := src[iy*d.w:]
						drow := dst[oy*d.wOut:]
						for ox := 0; ox < d.wOut; ox++ {
							ix := ox*d.stride - d.padding + kx
							if ix < 0 || ix >= d.w {
								continue
							}
							drow[ox] += wv * row[ix]
						}
					}
				}
			}
		}
	}, cfg)
}
