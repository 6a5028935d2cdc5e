package nn

import (
	"sort"

	"github.com/born-ml/vision/internal/tensor"
	"github.com/pkg/errors"
)

var (
	// ErrMissingState is wrapped when a state dict lacks an entry the module
	// needs.
	ErrMissingState = errors.New("missing state")
	// ErrShapeMismatch is wrapped when a state dict entry has the wrong shape
	// or dtype.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// CountParameters returns the number of trainable scalars of m.
func CountParameters[B tensor.Backend](m Module[B]) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	return total
}

// BuffersOf returns m's buffers, or nil if it keeps none.
func BuffersOf[B tensor.Backend](m Module[B]) []*Parameter[B] {
	if buffered, ok := m.(Buffered[B]); ok {
		return buffered.Buffers()
	}
	return nil
}

// NamedParameters indexes the trainable parameters of m by qualified name.
func NamedParameters[B tensor.Backend](m Module[B]) map[string]*Parameter[B] {
	named := make(map[string]*Parameter[B])
	for _, p := range m.Parameters() {
		named[p.Name()] = p
	}
	return named
}

// State returns parameters followed by buffers, sorted by name.
func State[B tensor.Backend](m Module[B]) []*Parameter[B] {
	state := append(append([]*Parameter[B]{}, m.Parameters()...), BuffersOf(m)...)
	sort.Slice(state, func(i, j int) bool { return state[i].Name() < state[j].Name() })
	return state
}

// StateDict returns the parameters and buffers of m keyed by name. The raw
// tensors alias the module storage.
func StateDict[B tensor.Backend](m Module[B]) map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for _, p := range State(m) {
		sd[p.Name()] = p.Tensor().Raw()
	}
	return sd
}

// LoadStateDict copies sd into the parameters and buffers of m.
//
// Every entry of m must be present with a matching shape and float32 dtype.
// Extra entries in sd are ignored.
func LoadStateDict[B tensor.Backend](m Module[B], sd map[string]*tensor.RawTensor) error {
	state := State(m)
	for _, p := range state {
		raw, ok := sd[p.Name()]
		if !ok {
			return errors.Wrapf(ErrMissingState, "%s", p.Name())
		}
		if raw.DType() != tensor.Float32 || !raw.Shape().Equal(p.Shape()) {
			return errors.Wrapf(ErrShapeMismatch, "%s: got %s%v, want %s%v",
				p.Name(), raw.DType(), raw.Shape(), tensor.Float32, p.Shape())
		}
	}
	for _, p := range state {
		copy(p.Tensor().Data(), sd[p.Name()].AsFloat32())
	}
	return nil
}
