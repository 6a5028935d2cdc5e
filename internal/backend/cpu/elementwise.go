package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vision/internal/tensor"
)

type binaryKind int

const (
	opAdd binaryKind = iota
	opSub
	opMul
	opDiv
)

func binaryFunc[T tensor.Float](kind binaryKind) func(x, y T) T {
	switch kind {
	case opAdd:
		return func(x, y T) T { return x + y }
	case opSub:
		return func(x, y T) T { return x - y }
	case opMul:
		return func(x, y T) T { return x * y }
	case opDiv:
		return func(x, y T) T { return x / y }
	default:
		panic(fmt.Sprintf("unknown binary op %d", kind))
	}
}

func (cpu *CPUBackend) binary(op string, kind binaryKind, a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat(op, a.DType(), b.DType())
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := cpu.newResult(op, outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		binaryKernel(result, a, b, binaryFunc[float32](kind))
	case tensor.Float64:
		binaryKernel(result, a, b, binaryFunc[float64](kind))
	}
	return result
}

// broadcastStrides returns per-axis strides of shape aligned to outShape, with
// zero stride on broadcast axes.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	src := shape.ComputeStrides()
	offset := len(outShape) - len(shape)
	for i, dim := range shape {
		if dim != 1 {
			strides[i+offset] = src[i]
		}
	}
	return strides
}

func binaryKernel[T tensor.Float](out, a, b *tensor.RawTensor, fn func(x, y T) T) {
	o := tensor.AsSlice[T](out)
	x := tensor.AsSlice[T](a)
	y := tensor.AsSlice[T](b)

	if a.Shape().Equal(b.Shape()) {
		for i := range o {
			o[i] = fn(x[i], y[i])
		}
		return
	}

	outShape := out.Shape()
	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	idx := make([]int, len(outShape))
	ai, bi := 0, 0
	for i := range o {
		o[i] = fn(x[ai], y[bi])
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			ai -= aStrides[d] * outShape[d]
			bi -= bStrides[d] * outShape[d]
			idx[d] = 0
		}
	}
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, fn func(v float64) float64) *tensor.RawTensor {
	requireFloat(op, x.DType())
	result := cpu.newResult(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		unaryKernel[float32](result, x, fn)
	case tensor.Float64:
		unaryKernel[float64](result, x, fn)
	}
	return result
}

func unaryKernel[T tensor.Float](out, x *tensor.RawTensor, fn func(v float64) float64) {
	o := tensor.AsSlice[T](out)
	for i, v := range tensor.AsSlice[T](x) {
		o[i] = T(fn(float64(v)))
	}
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float64) float64 { return v + scalar })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float64) float64 { return v * scalar })
}

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sqrt", x, math.Sqrt)
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("rsqrt", x, func(v float64) float64 { return 1 / math.Sqrt(v) })
}

// GELU applies the exact Gaussian error linear unit: 0.5·x·(1 + erf(x/√2)).
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("gelu", x, gelu)
}

// ReLU applies max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float64) float64 { return math.Max(v, 0) })
}

func gelu(v float64) float64 {
	return 0.5 * v * (1 + math.Erf(v/math.Sqrt2))
}
