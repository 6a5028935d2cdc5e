package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/tensor"
)

func TestTranspose(t *testing.T) {
	cpu := New()
	x := raw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	got := cpu.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got.AsFloat32())

	// [1, 2, 3] -> [1, 3, 2] swaps the trailing axes of every batch entry.
	y := raw32(t, tensor.Shape{1, 2, 3}, 1, 2, 3, 4, 5, 6)
	got = cpu.Transpose(y, 0, 2, 1)
	assert.Equal(t, tensor.Shape{1, 3, 2}, got.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got.AsFloat32())

	// Applying a permutation and its inverse restores the input.
	z := raw32(t, tensor.Shape{2, 3, 4}, make([]float32, 24)...)
	for i := range z.AsFloat32() {
		z.AsFloat32()[i] = float32(i)
	}
	back := cpu.Transpose(cpu.Transpose(z, 2, 0, 1), 1, 2, 0)
	assert.Equal(t, z.Shape(), back.Shape())
	assert.Equal(t, z.AsFloat32(), back.AsFloat32())
}

func TestTranspose_InvalidAxesPanics(t *testing.T) {
	cpu := New()
	x := raw32(t, tensor.Shape{2, 3})
	assert.PanicsWithValue(t, "transpose: duplicate axis 0", func() { cpu.Transpose(x, 0, 0) })
	assert.PanicsWithValue(t, "transpose: axes length 3 != ndim 2", func() { cpu.Transpose(x, 0, 1, 2) })
}

func TestSoftmax(t *testing.T) {
	cpu := New()
	x := raw32(t, tensor.Shape{2, 3}, 1, 2, 3, 1000, 1000, 1000)
	got := cpu.Softmax(x, -1).AsFloat32()

	e1, e2, e3 := math.Exp(1), math.Exp(2), math.Exp(3)
	sum := e1 + e2 + e3
	assert.InDeltaSlice(t, []float32{float32(e1 / sum), float32(e2 / sum), float32(e3 / sum)}, got[:3], 1e-6)
	// Large inputs do not overflow.
	assert.InDeltaSlice(t, []float32{1. / 3, 1. / 3, 1. / 3}, got[3:], 1e-6)

	cols := cpu.Softmax(x, 0).AsFloat32()
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 1, cols[j]+cols[3+j], 1e-6)
	}
}

func TestBatchMatMul(t *testing.T) {
	cpu := New(WithWorkers(2))
	a := raw32(t, tensor.Shape{2, 2, 2},
		1, 2, 3, 4,
		1, 0, 0, 1)
	b := raw32(t, tensor.Shape{2, 2, 1},
		1, 1,
		5, 6)

	got := cpu.BatchMatMul(a, b)
	require.Equal(t, tensor.Shape{2, 2, 1}, got.Shape())
	assert.Equal(t, []float32{3, 7, 5, 6}, got.AsFloat32())

	assert.PanicsWithValue(t, "batch_matmul: batch dimension mismatch at dim 0: 2 vs 3",
		func() { cpu.BatchMatMul(a, raw32(t, tensor.Shape{3, 2, 1})) })
}
