package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/vision/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.matmul("matmul", a, b, false)
}

// MatMulTransposeB computes a @ bᵀ: [M, K] @ [N, K]ᵀ -> [M, N].
// Linear layers store weights as [out, in] and use this form.
func (cpu *CPUBackend) MatMulTransposeB(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.matmul("matmul_transpose_b", a, b, true)
}

func (cpu *CPUBackend) matmul(op string, a, b *tensor.RawTensor, transB bool) *tensor.RawTensor {
	requireFloat(op, a.DType(), b.DType())
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("%s: expected 2D tensors, got %v and %v", op, aShape, bShape))
	}
	m, k := aShape[0], aShape[1]
	bk, n := bShape[0], bShape[1]
	if transB {
		bk, n = n, bk
	}
	if k != bk {
		panic(fmt.Sprintf("%s: inner dimensions differ: %v and %v", op, aShape, bShape))
	}
	result := cpu.newResult(op, tensor.Shape{m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		gemmT(m, n, k, a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), transB)
	case tensor.Float64:
		gemmT(m, n, k, a.AsFloat64(), b.AsFloat64(), result.AsFloat64(), transB)
	}
	return result
}

// gemm computes c = a·b for row-major a [m, k], b [k, n], c [m, n].
func gemm[T tensor.Float](m, n, k int, a, b, c []T) {
	gemmT(m, n, k, a, b, c, false)
}

// gemmT is gemm with b optionally stored transposed as [n, k].
func gemmT[T tensor.Float](m, n, k int, a, b, c []T, transB bool) {
	tB, bRows, bCols := blas.NoTrans, k, n
	if transB {
		tB, bRows, bCols = blas.Trans, n, k
	}
	switch av := any(a).(type) {
	case []float32:
		blas32.Gemm(blas.NoTrans, tB, 1,
			blas32.General{Rows: m, Cols: k, Stride: k, Data: av},
			blas32.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float32)},
			0,
			blas32.General{Rows: m, Cols: n, Stride: n, Data: any(c).([]float32)})
	case []float64:
		blas64.Gemm(blas.NoTrans, tB, 1,
			blas64.General{Rows: m, Cols: k, Stride: k, Data: av},
			blas64.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float64)},
			0,
			blas64.General{Rows: m, Cols: n, Stride: n, Data: any(c).([]float64)})
	default:
		panic(fmt.Sprintf("gemm: unsupported element type %T", a))
	}
}
