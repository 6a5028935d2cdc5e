// Package nn implements the neural network modules of the vision blocks:
// convolutions, normalization, stochastic depth and the ConvNeXt block.
//
// Every module is a plain struct owning its Parameters. A forward pass never
// writes parameters; training/evaluation behaviour and randomness are passed
// explicitly in a Pass, so a module can serve concurrent forward passes as long
// as each pass carries its own random source.
package nn

import (
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// Mode selects training or evaluation behaviour.
type Mode int

const (
	// Eval is inference behaviour: stochastic layers are the identity.
	Eval Mode = iota
	// Train enables stochastic regularization such as DropPath.
	Train
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Eval:
		return "eval"
	case Train:
		return "train"
	default:
		return "unknown"
	}
}

// Pass carries the per-call state of a forward pass.
//
// Rand is only consumed in Train mode. math/rand sources are not safe for
// concurrent use, so concurrent passes need distinct sources.
type Pass struct {
	Mode Mode
	Rand *rand.Rand
}

// EvalPass returns a Pass for inference.
func EvalPass() Pass {
	return Pass{Mode: Eval}
}

// TrainPass returns a training Pass drawing randomness from rng.
func TrainPass(rng *rand.Rand) Pass {
	return Pass{Mode: Train, Rand: rng}
}

// Training reports whether the pass runs in training mode.
func (p Pass) Training() bool {
	return p.Mode == Train
}

// Module is the interface of all neural network components.
//
// Forward maps an input tensor to an output tensor; shape errors panic in the
// backend. Parameters returns the trainable parameters, including those of
// nested modules, with names qualified by the module path
// (e.g. "dwconv.depthwise.weight").
type Module[B tensor.Backend] interface {
	Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*Parameter[B]
}

// Buffered is implemented by modules holding non-trainable state that belongs
// in a state dict, such as BatchNorm2D running statistics.
type Buffered[B tensor.Backend] interface {
	Buffers() []*Parameter[B]
}
