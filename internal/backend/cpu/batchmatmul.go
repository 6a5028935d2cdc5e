package cpu

import (
	"fmt"

	"github.com/born-ml/vision/internal/parallel"
	"github.com/born-ml/vision/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication.
//
//	3D: [B, M, K] @ [B, K, N] -> [B, M, N]
//	4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// The last two dimensions are the matrices; all leading dimensions must match.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat("batch_matmul", a.DType(), b.DType())
	aShape, bShape := a.Shape(), b.Shape()
	ndim := len(aShape)
	if ndim < 3 {
		panic(fmt.Sprintf("batch_matmul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batch_matmul: dimension mismatch, got %dD and %dD", ndim, len(bShape)))
	}
	batch := 1
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batch_matmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
		batch *= aShape[i]
	}
	m, k, n := aShape[ndim-2], aShape[ndim-1], bShape[ndim-1]
	if bShape[ndim-2] != k {
		panic(fmt.Sprintf("batch_matmul: inner dimension mismatch: %d vs %d", k, bShape[ndim-2]))
	}

	outShape := aShape.Clone()
	outShape[ndim-1] = n
	result := cpu.newResult("batch_matmul", outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		batchMatMul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batch, m, k, n, cpu.par)
	case tensor.Float64:
		batchMatMul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batch, m, k, n, cpu.par)
	}
	return result
}

func batchMatMul[T tensor.Float](c, a, b []T, batch, m, k, n int, par parallel.Config) {
	parallel.For(batch, func(i int) {
		gemm(m, n, k, a[i*m*k:(i+1)*m*k], b[i*k*n:(i+1)*k*n], c[i*m*n:(i+1)*m*n])
	}, par)
}
