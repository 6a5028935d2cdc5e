package tensor

import "fmt"

// Tensor is a typed tensor with element type T and backend B.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
//	sum := t.Add(t)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps a RawTensor and backend.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	if want := DataTypeOf[T](); raw.DType() != want {
		panic(fmt.Sprintf("tensor: raw dtype %s does not match %s", raw.DType(), want))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, DataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T, B]) DType() DataType {
	return t.raw.DType()
}

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Data returns a typed view of the tensor's data.
//
// WARNING: Modifications to the returned slice modify the tensor.
func (t *Tensor[T, B]) Data() []T {
	return AsSlice[T](t.raw)
}

// Clone returns a deep copy.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// String returns a short description of the tensor.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.DType(), t.Shape(), t.backend.Name())
}

func (t *Tensor[T, B]) wrap(raw *RawTensor) *Tensor[T, B] {
	return New[T, B](raw, t.backend)
}

// Add returns t + other with broadcasting.
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Add(t.raw, other.raw))
}

// Sub returns t - other with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Sub(t.raw, other.raw))
}

// Mul returns t * other with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Mul(t.raw, other.raw))
}

// Div returns t / other with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Div(t.raw, other.raw))
}

// AddScalar adds s to every element.
func (t *Tensor[T, B]) AddScalar(s float64) *Tensor[T, B] {
	return t.wrap(t.backend.AddScalar(t.raw, s))
}

// MulScalar multiplies every element by s.
func (t *Tensor[T, B]) MulScalar(s float64) *Tensor[T, B] {
	return t.wrap(t.backend.MulScalar(t.raw, s))
}

// Sqrt returns the element-wise square root.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	return t.wrap(t.backend.Sqrt(t.raw))
}

// Rsqrt returns the element-wise reciprocal square root.
func (t *Tensor[T, B]) Rsqrt() *Tensor[T, B] {
	return t.wrap(t.backend.Rsqrt(t.raw))
}

// MeanDim averages along dim.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return t.wrap(t.backend.MeanDim(t.raw, dim, keepDim))
}

// MatMul multiplies two 2D tensors.
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.MatMul(t.raw, other.raw))
}

// MatMulTransposeB multiplies t by the transpose of other.
func (t *Tensor[T, B]) MatMulTransposeB(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.MatMulTransposeB(t.raw, other.raw))
}

// BatchMatMul multiplies the trailing matrices of t and other.
func (t *Tensor[T, B]) BatchMatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.BatchMatMul(t.raw, other.raw))
}

// Transpose permutes the axes of t.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return t.wrap(t.backend.Transpose(t.raw, axes...))
}

// Softmax normalizes along dim.
func (t *Tensor[T, B]) Softmax(dim int) *Tensor[T, B] {
	return t.wrap(t.backend.Softmax(t.raw, dim))
}

// Reshape returns a tensor with the given dimensions. One dimension may be -1,
// in which case it is inferred from the element count.
func (t *Tensor[T, B]) Reshape(dims ...int) *Tensor[T, B] {
	shape, err := inferShape(dims, t.NumElements())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return t.wrap(t.backend.Reshape(t.raw, shape))
}

func inferShape(dims []int, numElements int) (Shape, error) {
	shape := make(Shape, len(dims))
	inferred := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == -1 && inferred == -1:
			inferred = i
		case d == -1:
			return nil, fmt.Errorf("only one dimension can be -1, got %v", dims)
		case d <= 0:
			return nil, fmt.Errorf("invalid dimension %d in %v", d, dims)
		default:
			known *= d
		}
		shape[i] = d
	}
	if inferred >= 0 {
		if numElements%known != 0 {
			return nil, fmt.Errorf("cannot infer dimension of %v for %d elements", dims, numElements)
		}
		shape[inferred] = numElements / known
	}
	if shape.NumElements() != numElements {
		return nil, fmt.Errorf("shape %v has %d elements, tensor has %d", shape, shape.NumElements(), numElements)
	}
	return shape, nil
}
