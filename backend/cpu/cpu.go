// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Matrix products and 1×1 convolutions go through gonum BLAS; other
// convolutions run a direct kernel split over (batch, output channel) across
// a bounded number of goroutines. The backend keeps no mutable state and is
// safe for concurrent use.
//
//	backend := cpu.New(cpu.WithWorkers(4))
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/born-ml/vision/internal/backend/cpu"
	"github.com/born-ml/vision/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers bounds the number of goroutines of parallel kernels.
func WithWorkers(n int) Option {
	return internalcpu.WithWorkers(n)
}
