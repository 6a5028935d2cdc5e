// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensors: the typed Tensor[T, B]
// wrapper, the RawTensor storage and the Backend interface.
package tensor

import (
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// Core types.
type (
	// Tensor is a typed tensor bound to a backend.
	Tensor[T DType, B Backend] = tensor.Tensor[T, B]
	// RawTensor is untyped tensor storage.
	RawTensor = tensor.RawTensor
	// Backend executes tensor operations.
	Backend = tensor.Backend
	// Shape lists the dimensions of a tensor.
	Shape = tensor.Shape
	// DataType identifies an element type.
	DataType = tensor.DataType
	// Device identifies where tensor data lives.
	Device = tensor.Device
	// DType constrains the element types of Tensor.
	DType = tensor.DType
	// Float constrains floating point element types.
	Float = tensor.Float
)

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
)

// CPU is the host device.
const CPU = tensor.CPU

// New wraps raw storage in a typed tensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice creates a tensor from data with the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor with standard normal values drawn from rng.
func Randn[T Float, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, rng, b)
}

// Rand creates a tensor with values uniform in [0, 1) drawn from rng.
func Rand[T Float, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Rand[T](shape, rng, b)
}

// NewRaw allocates zeroed raw storage.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// BroadcastShapes returns the NumPy broadcast of a and b, and whether a
// broadcast was needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
