package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend satisfies Backend for tests that never dispatch an operation.
type stubBackend struct{ Backend }

func (stubBackend) Name() string   { return "stub" }
func (stubBackend) Device() Device { return CPU }

func TestFromSlice(t *testing.T) {
	b := stubBackend{}
	x, err := FromSlice[float32]([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, x.Shape())
	assert.Equal(t, Float32, x.DType())
	assert.Equal(t, float32(6), x.At(1, 2))

	x.Set(10, 0, 1)
	assert.Equal(t, []float32{1, 10, 3, 4, 5, 6}, x.Data())

	_, err = FromSlice[float32]([]float32{1, 2}, Shape{3}, b)
	require.Error(t, err)
}

func TestAtOutOfBounds(t *testing.T) {
	x := Zeros[float64](Shape{2, 2}, stubBackend{})
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
}

func TestCloneIsDeep(t *testing.T) {
	x := Ones[float32](Shape{4}, stubBackend{})
	y := x.Clone()
	y.Data()[0] = 7
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestRawView(t *testing.T) {
	raw := MustNewRaw(Shape{2, 6}, Int64, CPU)
	view, err := raw.View(Shape{3, 4})
	require.NoError(t, err)
	view.AsInt64()[5] = 42
	assert.Equal(t, int64(42), raw.AsInt64()[5], "views share the buffer")

	_, err = raw.View(Shape{5})
	require.Error(t, err)
}

func TestAsSliceWrongType(t *testing.T) {
	raw := MustNewRaw(Shape{3}, Float32, CPU)
	assert.Panics(t, func() { raw.AsFloat64() })
}

func TestRandnUsesInjectedSource(t *testing.T) {
	b := stubBackend{}
	a := Randn[float32](Shape{16}, rand.New(rand.NewSource(7)), b)
	c := Randn[float32](Shape{16}, rand.New(rand.NewSource(7)), b)
	assert.Equal(t, a.Data(), c.Data())
}

func TestInferShape(t *testing.T) {
	shape, err := inferShape([]int{2, -1}, 12)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 6}, shape)

	_, err = inferShape([]int{-1, -1}, 12)
	require.Error(t, err)
	_, err = inferShape([]int{5, -1}, 12)
	require.Error(t, err)
}
