package cpu

import (
	"fmt"

	"github.com/born-ml/vision/internal/parallel"
	"github.com/born-ml/vision/internal/tensor"
)

// convGeometry holds the validated dimensions of a Conv2D call.
type convGeometry struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	Stride, Padding int
	Groups          int
	InPerG, OutPerG int
}

func (g convGeometry) pointwise() bool {
	return g.KH == 1 && g.KW == 1 && g.Stride == 1 && g.Padding == 0 && g.Groups == 1
}

// Conv2D performs a grouped 2D convolution with zero padding.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
//	H_out = (H + 2*padding - K_h) / stride + 1
//	W_out = (W + 2*padding - K_w) / stride + 1
//
// groups = C_in gives a depthwise convolution: every input channel is
// convolved with its own filters and channels are never mixed.
// Plain 1×1 convolutions are computed as one GEMM per sample.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat("conv2d", input.DType(), kernel.DType())
	geo := conv2dGeometry(input.Shape(), kernel.Shape(), stride, padding, groups)

	output := cpu.newResult("conv2d", tensor.Shape{geo.N, geo.COut, geo.HOut, geo.WOut}, input.DType())
	switch input.DType() {
	case tensor.Float32:
		conv2d[float32](output, input, kernel, geo, cpu.par)
	case tensor.Float64:
		conv2d[float64](output, input, kernel, geo, cpu.par)
	}
	return output
}

func conv2dGeometry(inputShape, kernelShape tensor.Shape, stride, padding, groups int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 || padding < 0 || groups <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d groups=%d", stride, padding, groups))
	}

	geo := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		Stride: stride, Padding: padding, Groups: groups,
	}
	if geo.CIn%groups != 0 || geo.COut%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d out=%d not divisible by groups=%d", geo.CIn, geo.COut, groups))
	}
	geo.InPerG = geo.CIn / groups
	geo.OutPerG = geo.COut / groups
	if kernelShape[1] != geo.InPerG {
		panic(fmt.Sprintf("conv2d: kernel expects %d input channels per group, input has %d (channels %d, groups %d)",
			kernelShape[1], geo.InPerG, geo.CIn, groups))
	}

	geo.HOut = (geo.H+2*padding-geo.KH)/stride + 1
	geo.WOut = (geo.W+2*padding-geo.KW)/stride + 1
	if geo.HOut <= 0 || geo.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)",
			geo.HOut, geo.WOut))
	}
	return geo
}

func conv2d[T tensor.Float](output, input, kernel *tensor.RawTensor, geo convGeometry, par parallel.Config) {
	in := tensor.AsSlice[T](input)
	k := tensor.AsSlice[T](kernel)
	out := tensor.AsSlice[T](output)

	if geo.pointwise() {
		// out_n [C_out, H*W] = kernel [C_out, C_in] · in_n [C_in, H*W]
		hw := geo.H * geo.W
		parallel.For(geo.N, func(n int) {
			gemm(geo.COut, hw, geo.CIn,
				k,
				in[n*geo.CIn*hw:(n+1)*geo.CIn*hw],
				out[n*geo.COut*hw:(n+1)*geo.COut*hw])
		}, par)
		return
	}

	parallel.ForBatch(geo.N, geo.COut, func(n, co int) {
		conv2dChannel(out, in, k, geo, n, co)
	}, par)
}

// conv2dChannel computes output plane (n, co) directly, one kernel tap at a
// time so the inner loop streams along an input row.
func conv2dChannel[T tensor.Float](out, in, k []T, geo convGeometry, n, co int) {
	outPlane := out[(n*geo.COut+co)*geo.HOut*geo.WOut : (n*geo.COut+co+1)*geo.HOut*geo.WOut]
	group := co / geo.OutPerG
	for ciLocal := 0; ciLocal < geo.InPerG; ciLocal++ {
		ci := group*geo.InPerG + ciLocal
		inPlane := in[(n*geo.CIn+ci)*geo.H*geo.W : (n*geo.CIn+ci+1)*geo.H*geo.W]
		kBase := (co*geo.InPerG + ciLocal) * geo.KH * geo.KW
		for kh := 0; kh < geo.KH; kh++ {
			for kw := 0; kw < geo.KW; kw++ {
				w := k[kBase+kh*geo.KW+kw]
				for oh := 0; oh < geo.HOut; oh++ {
					ih := oh*geo.Stride - geo.Padding + kh
					if ih < 0 || ih >= geo.H {
						continue
					}
					inRow := inPlane[ih*geo.W : (ih+1)*geo.W]
					outRow := outPlane[oh*geo.WOut : (oh+1)*geo.WOut]
					for ow := range outRow {
						iw := ow*geo.Stride - geo.Padding + kw
						if iw < 0 || iw >= geo.W {
							continue
						}
						outRow[ow] += w * inRow[iw]
					}
				}
			}
		}
	}
}
