package nn

import (
	"github.com/born-ml/vision/internal/tensor"
	"github.com/pkg/errors"
)

// Parameter is a named tensor owned by a module.
//
// Modules create their parameters at construction and never write them during
// a forward pass; an external optimizer may update Tensor().Data() between
// passes.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter creates a new parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the qualified parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// NumElements returns the number of scalar values in the parameter.
func (p *Parameter[B]) NumElements() int {
	return p.tensor.NumElements()
}

// Scope prefixes the names of a child module's parameters and buffers with
// prefix + ".". Composite modules call it once per child at construction.
func Scope[B tensor.Backend](prefix string, child Module[B]) {
	for _, p := range child.Parameters() {
		p.name = prefix + "." + p.name
	}
	if buffered, ok := child.(Buffered[B]); ok {
		for _, p := range buffered.Buffers() {
			p.name = prefix + "." + p.name
		}
	}
}

// Assign copies the values of t into the parameter. The shapes must match.
func (p *Parameter[B]) Assign(t *tensor.Tensor[float32, B]) error {
	if !p.tensor.Shape().Equal(t.Shape()) {
		return errors.Errorf("parameter %s: shape %v does not match %v", p.name, t.Shape(), p.tensor.Shape())
	}
	copy(p.tensor.Data(), t.Data())
	return nil
}
