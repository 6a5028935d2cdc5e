package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// ScaledDotProductAttention computes softmax(Q·Kᵀ·scale)·V.
//
// Query, key and value are [batch, heads, seq, head_dim]. A zero scale means
// 1/√head_dim. Returns the attended values [batch, heads, seq_q, head_dim] and
// the attention weights [batch, heads, seq_q, seq_k].
func ScaledDotProductAttention[B tensor.Backend](query, key, value *tensor.Tensor[float32, B], scale float64) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	for _, t := range []*tensor.Tensor[float32, B]{query, key, value} {
		if len(t.Shape()) != 4 {
			panic(fmt.Sprintf("attention: expected 4D [batch, heads, seq, head_dim], got %v", t.Shape()))
		}
	}
	if scale == 0 {
		scale = 1 / math.Sqrt(float64(query.Shape()[3]))
	}

	scores := query.BatchMatMul(key.Transpose(0, 1, 3, 2)).MulScalar(scale)
	weights := scores.Softmax(-1)
	return weights.BatchMatMul(value), weights
}

// MultiHeadAttention is multi-head self-attention over [batch, seq, dim]
// token sequences:
//
//	MHA(x) = Concat(head_1, ..., head_h)·W_O
//	head_i = SDPA(x·W_Q_i, x·W_K_i, x·W_V_i)
type MultiHeadAttention[B tensor.Backend] struct {
	query    *Linear[B]
	key      *Linear[B]
	value    *Linear[B]
	out      *Linear[B]
	numHeads int
	headDim  int
	embedDim int
}

// NewMultiHeadAttention creates self-attention with embedDim split evenly
// across numHeads.
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, backend B, rng *rand.Rand) (*MultiHeadAttention[B], error) {
	if numHeads <= 0 || embedDim <= 0 || embedDim%numHeads != 0 {
		return nil, invalidf("attention: embed dim %d must be a positive multiple of heads %d", embedDim, numHeads)
	}
	rng = RandOrDefault(rng)
	m := &MultiHeadAttention[B]{
		numHeads: numHeads,
		headDim:  embedDim / numHeads,
		embedDim: embedDim,
	}
	for _, proj := range []struct {
		name string
		dst  **Linear[B]
	}{{"query", &m.query}, {"key", &m.key}, {"value", &m.value}, {"out", &m.out}} {
		l, err := NewLinear(embedDim, embedDim, backend, rng)
		if err != nil {
			return nil, err
		}
		Scope[B](proj.name, l)
		*proj.dst = l
	}
	return m, nil
}

// Forward applies self-attention to [batch, seq, dim] tokens.
func (m *MultiHeadAttention[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardWithWeights(pass, input)
	return out
}

// ForwardWithWeights is Forward that also returns the attention weights
// [batch, heads, seq, seq].
func (m *MultiHeadAttention[B]) ForwardWithWeights(pass Pass, input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	shape := input.Shape()
	if len(shape) != 3 || shape[2] != m.embedDim {
		panic(fmt.Sprintf("attention: expected [batch, seq, %d] input, got %v", m.embedDim, shape))
	}
	batch, seq := shape[0], shape[1]

	flat := input.Reshape(batch*seq, m.embedDim)
	heads := func(l *Linear[B]) *tensor.Tensor[float32, B] {
		return l.Forward(pass, flat).Reshape(batch, seq, m.numHeads, m.headDim).Transpose(0, 2, 1, 3)
	}
	attended, weights := ScaledDotProductAttention(heads(m.query), heads(m.key), heads(m.value), 0)

	merged := attended.Transpose(0, 2, 1, 3).Reshape(batch*seq, m.embedDim)
	return m.out.Forward(pass, merged).Reshape(batch, seq, m.embedDim), weights
}

// Parameters returns the query, key, value and output projections.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 8)
	params = append(params, m.query.Parameters()...)
	params = append(params, m.key.Parameters()...)
	params = append(params, m.value.Parameters()...)
	return append(params, m.out.Parameters()...)
}

// NumHeads returns the number of attention heads.
func (m *MultiHeadAttention[B]) NumHeads() int {
	return m.numHeads
}
