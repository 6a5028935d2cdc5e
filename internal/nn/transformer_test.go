package nn

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/backend/cpu"
	"github.com/born-ml/vision/internal/tensor"
)

func TestLayerNorm_LastDim(t *testing.T) {
	backend := cpu.New()
	ln, err := NewLayerNorm(8, 1e-6, backend)
	require.NoError(t, err)

	x := randn(tensor.Shape{2, 5, 8}, 1, backend).MulScalar(3).AddScalar(2)
	y := ln.Forward(EvalPass(), x)
	require.Equal(t, x.Shape(), y.Shape())

	mean := y.MeanDim(-1, false).Data()
	centered := y.Sub(y.MeanDim(-1, true))
	variance := centered.Mul(centered).MeanDim(-1, false).Data()
	for i := range mean {
		assert.InDelta(t, 0, mean[i], 1e-5)
		assert.InDelta(t, 1, variance[i], 1e-4)
	}

	_, err = NewLayerNorm(0, 1e-6, backend)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Panics(t, func() { ln.Forward(EvalPass(), randn(tensor.Shape{2, 4}, 1, backend)) })
}

func TestScaledDotProductAttention_UniformKeys(t *testing.T) {
	backend := cpu.New()
	q := randn(tensor.Shape{1, 2, 3, 4}, 1, backend)
	k := tensor.Ones[float32](tensor.Shape{1, 2, 5, 4}, backend)
	v := randn(tensor.Shape{1, 2, 5, 4}, 2, backend)

	out, weights := ScaledDotProductAttention(q, k, v, 0)
	assert.Equal(t, tensor.Shape{1, 2, 3, 4}, out.Shape())
	assert.Equal(t, tensor.Shape{1, 2, 3, 5}, weights.Shape())

	// Identical keys attend uniformly, so every query reads the mean value.
	for _, w := range weights.Data() {
		assert.InDelta(t, 0.2, w, 1e-6)
	}
	mean := v.MeanDim(2, true)
	for h := 0; h < 2; h++ {
		for i := 0; i < 3; i++ {
			for d := 0; d < 4; d++ {
				assert.InDelta(t, mean.At(0, h, 0, d), out.At(0, h, i, d), 1e-5)
			}
		}
	}
}

func TestMultiHeadAttention(t *testing.T) {
	backend := cpu.New()
	mha, err := NewMultiHeadAttention(8, 2, backend, newRand(1))
	require.NoError(t, err)
	assert.Equal(t, 2, mha.NumHeads())
	assert.Equal(t, 4*(8*8+8), CountParameters[testBackend](mha))

	x := randn(tensor.Shape{3, 6, 8}, 2, backend)
	out, weights := mha.ForwardWithWeights(EvalPass(), x)
	assert.Equal(t, tensor.Shape{3, 6, 8}, out.Shape())
	require.Equal(t, tensor.Shape{3, 2, 6, 6}, weights.Shape())

	rowSums := weights.MeanDim(-1, false).MulScalar(6).Data()
	for _, s := range rowSums {
		assert.InDelta(t, 1, s, 1e-5)
	}

	_, err = NewMultiHeadAttention(10, 3, backend, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestTransformerBlock(t *testing.T) {
	backend := cpu.New()
	cfg := TransformerConfig{EmbedDim: 8, NumHeads: 2, FFNDim: 16, DropPath: 0, Eps: 1e-6}
	block, err := NewTransformerBlock(cfg, backend, newRand(1))
	require.NoError(t, err)

	x := randn(tensor.Shape{2, 4, 8}, 3, backend)
	assert.Equal(t, x.Shape(), block.Forward(EvalPass(), x).Shape())

	// 2 norms + 4 projections + 2-layer FFN.
	want := 2*2*8 + 4*(8*8+8) + (8*16 + 16) + (16*8 + 8)
	assert.Equal(t, want, CountParameters[testBackend](block))

	named := NamedParameters[testBackend](block)
	for _, name := range []string{
		"norm1.scale", "attn.query.weight", "attn.out.bias", "norm2.shift", "mlp.fc1.weight", "mlp.fc2.bias",
	} {
		assert.Contains(t, named, name)
	}

	// With both residual branches zeroed at their output the block is the identity.
	for _, name := range []string{"attn.out.weight", "attn.out.bias", "mlp.fc2.weight", "mlp.fc2.bias"} {
		zero(named[name])
	}
	assert.InDeltaSlice(t, x.Data(), block.Forward(EvalPass(), x).Data(), 1e-6)
}

func TestTransformerConfig_Validate(t *testing.T) {
	valid := TransformerConfig{EmbedDim: 8, NumHeads: 2, FFNDim: 16, Eps: 1e-6}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*TransformerConfig)
	}{
		{"heads do not divide", func(c *TransformerConfig) { c.NumHeads = 3 }},
		{"zero ffn", func(c *TransformerConfig) { c.FFNDim = 0 }},
		{"drop path one", func(c *TransformerConfig) { c.DropPath = 1 }},
		{"zero eps", func(c *TransformerConfig) { c.Eps = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))
		})
	}
}

func TestPositionalEmbedding(t *testing.T) {
	backend := cpu.New()
	pos, err := NewPositionalEmbedding(4, 3, backend, newRand(1))
	require.NoError(t, err)

	x := tensor.Zeros[float32](tensor.Shape{2, 4, 3}, backend)
	y := pos.Forward(EvalPass(), x)
	table := pos.Parameters()[0].Tensor().Data()
	assert.Equal(t, append(append([]float32{}, table...), table...), y.Data())

	assert.Panics(t, func() { pos.Forward(EvalPass(), tensor.Zeros[float32](tensor.Shape{2, 5, 3}, backend)) })
}

func TestRandOrDefault(t *testing.T) {
	rng := newRand(1)
	assert.Same(t, rng, RandOrDefault(rng))
	assert.NotNil(t, RandOrDefault(nil))
}
