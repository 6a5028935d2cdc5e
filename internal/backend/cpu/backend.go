// Package cpu implements the tensor.Backend interface in pure Go, with
// BLAS-backed matrix products and goroutine-parallel convolution kernels.
package cpu

import (
	"fmt"

	"github.com/born-ml/vision/internal/parallel"
	"github.com/born-ml/vision/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithWorkers bounds the number of goroutines used by parallel kernels.
// Values <= 1 make every kernel sequential.
func WithWorkers(n int) Option {
	return func(cpu *CPUBackend) {
		cpu.par.Workers = n
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the configured parallelism.
func (cpu *CPUBackend) Workers() int {
	return cpu.par.Workers
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", opMul, a, b)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", opDiv, a, b)
}

// Reshape returns a copy of t with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}
	result, err := t.Clone().View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

func requireFloat(op string, dtypes ...tensor.DataType) {
	for _, dt := range dtypes {
		if dt != tensor.Float32 && dt != tensor.Float64 {
			panic(fmt.Sprintf("%s: unsupported dtype %s", op, dt))
		}
	}
	for _, dt := range dtypes[1:] {
		if dt != dtypes[0] {
			panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, dtypes[0], dt))
		}
	}
}
