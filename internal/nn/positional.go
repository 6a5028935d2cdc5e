package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// PositionalEmbedding adds a learned [1, seq, dim] table to token sequences.
// Entries start from a truncated normal with std 0.02.
type PositionalEmbedding[B tensor.Backend] struct {
	seqLen int
	dim    int
	weight *Parameter[B]
}

// NewPositionalEmbedding creates a table for sequences of exactly seqLen tokens.
func NewPositionalEmbedding[B tensor.Backend](seqLen, dim int, backend B, rng *rand.Rand) (*PositionalEmbedding[B], error) {
	if seqLen <= 0 || dim <= 0 {
		return nil, invalidf("positional embedding: sequence length and dim must be positive, got %d and %d", seqLen, dim)
	}
	table := TruncNormal(tensor.Shape{1, seqLen, dim}, 0.02, RandOrDefault(rng), backend)
	return &PositionalEmbedding[B]{
		seqLen: seqLen,
		dim:    dim,
		weight: NewParameter("weight", table),
	}, nil
}

// Forward returns input + table for [batch, seq, dim] input.
func (p *PositionalEmbedding[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 || shape[1] != p.seqLen || shape[2] != p.dim {
		panic(fmt.Sprintf("positional embedding: expected [batch, %d, %d] input, got %v", p.seqLen, p.dim, shape))
	}
	return input.Add(p.weight.Tensor())
}

// Parameters returns the embedding table.
func (p *PositionalEmbedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{p.weight}
}
