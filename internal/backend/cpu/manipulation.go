package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/vision/internal/tensor"
)

// Transpose permutes the axes of x. Without axes the order is reversed.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}
	result := cpu.newResult("transpose", outShape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		transposeKernel[float32](result, x, axes)
	case tensor.Float64:
		transposeKernel[float64](result, x, axes)
	case tensor.Int64:
		transposeKernel[int64](result, x, axes)
	case tensor.Uint8:
		transposeKernel[uint8](result, x, axes)
	}
	return result
}

// transposeKernel walks the output in row-major order and gathers from the
// input through the permuted strides.
func transposeKernel[T tensor.DType](out, x *tensor.RawTensor, axes []int) {
	src := tensor.AsSlice[T](x)
	dst := tensor.AsSlice[T](out)
	inStrides := x.Shape().ComputeStrides()
	outShape := out.Shape()
	ndim := len(outShape)

	strides := make([]int, ndim)
	for i, ax := range axes {
		strides[i] = inStrides[ax]
	}
	idx := make([]int, ndim)
	offset := 0
	for i := range dst {
		dst[i] = src[offset]
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			offset += strides[d]
			if idx[d] < outShape[d] {
				break
			}
			offset -= strides[d] * outShape[d]
			idx[d] = 0
		}
	}
}

// Softmax computes exp(x - max) / sum(exp(x - max)) along dim.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat("softmax", x.DType())
	shape := x.Shape()
	axis, err := shape.NormalizeAxis(dim)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}
	outer, inner := 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	result := cpu.newResult("softmax", shape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		softmaxKernel[float32](result, x, outer, shape[axis], inner)
	case tensor.Float64:
		softmaxKernel[float64](result, x, outer, shape[axis], inner)
	}
	return result
}

func softmaxKernel[T tensor.Float](out, x *tensor.RawTensor, outer, size, inner int) {
	src := tensor.AsSlice[T](x)
	dst := tensor.AsSlice[T](out)
	for n := 0; n < outer; n++ {
		for i := 0; i < inner; i++ {
			base := n*size*inner + i
			maxVal := math.Inf(-1)
			for k := 0; k < size; k++ {
				maxVal = math.Max(maxVal, float64(src[base+k*inner]))
			}
			var sum float64
			for k := 0; k < size; k++ {
				e := math.Exp(float64(src[base+k*inner]) - maxVal)
				dst[base+k*inner] = T(e)
				sum += e
			}
			for k := 0; k < size; k++ {
				dst[base+k*inner] = T(float64(dst[base+k*inner]) / sum)
			}
		}
	}
}
