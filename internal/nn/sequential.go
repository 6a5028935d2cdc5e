package nn

import (
	"strconv"

	"github.com/born-ml/vision/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Parameters of the
// i-th module are prefixed with "i.", e.g. "0.weight", "2.bias".
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	s := &Sequential[B]{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	Scope(strconv.Itoa(len(s.modules)), module)
	s.modules = append(s.modules, module)
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(pass, output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Buffers returns the buffers of all modules.
func (s *Sequential[B]) Buffers() []*Parameter[B] {
	var buffers []*Parameter[B]
	for _, module := range s.modules {
		buffers = append(buffers, BuffersOf(module)...)
	}
	return buffers
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("sequential: index out of bounds")
	}
	return s.modules[index]
}
