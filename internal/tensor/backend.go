package tensor

// Backend defines the interface compute backends implement.
// Backends operate on RawTensors and panic on shape errors; the panic message
// is prefixed with the operation name.
//
// Implementations:
//   - CPU: pure Go with BLAS-backed matrix products (internal/backend/cpu)
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Element-wise operations with a scalar.
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise math.
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	GELU(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// MeanDim averages along dim (negative values count from the end).
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// MatMulTransposeB multiplies a by the transpose of b: [M, K] @ [N, K]ᵀ -> [M, N].
	MatMulTransposeB(a, b *RawTensor) *RawTensor

	// BatchMatMul multiplies the trailing matrices of a and b; all leading
	// (batch) dimensions must match: [..., M, K] @ [..., K, N] -> [..., M, N].
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Conv2D convolves an NCHW input with a [C_out, C_in/groups, K_h, K_w]
	// kernel using zero padding on both spatial axes.
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor

	// Transpose permutes the axes of x. Without axes the order is reversed.
	Transpose(x *RawTensor, axes ...int) *RawTensor

	// Softmax normalizes exp(x) along dim (negative values count from the end).
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reshape returns a tensor with the same data and a new shape.
	Reshape(x *RawTensor, newShape Shape) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
