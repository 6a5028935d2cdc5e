package cpu

import (
	"fmt"

	"github.com/born-ml/vision/internal/tensor"
)

// MeanDim averages x along dim. With keepDim the reduced axis stays with size 1,
// which is what broadcasting against the input needs.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat("mean_dim", x.DType())
	shape := x.Shape()
	axis, err := shape.NormalizeAxis(dim)
	if err != nil {
		panic(fmt.Sprintf("mean_dim: %v", err))
	}

	outer, inner := 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != axis:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result := cpu.newResult("mean_dim", outShape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		meanKernel[float32](result, x, outer, shape[axis], inner)
	case tensor.Float64:
		meanKernel[float64](result, x, outer, shape[axis], inner)
	}
	return result
}

// meanKernel accumulates in float64 regardless of T.
func meanKernel[T tensor.Float](out, x *tensor.RawTensor, outer, size, inner int) {
	o := tensor.AsSlice[T](out)
	in := tensor.AsSlice[T](x)
	acc := make([]float64, inner)
	for n := 0; n < outer; n++ {
		clear(acc)
		base := n * size * inner
		for k := 0; k < size; k++ {
			row := in[base+k*inner : base+(k+1)*inner]
			for i, v := range row {
				acc[i] += float64(v)
			}
		}
		for i, v := range acc {
			o[n*inner+i] = T(v / float64(size))
		}
	}
}
