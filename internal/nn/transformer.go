package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// TransformerConfig holds the hyperparameters of a TransformerBlock.
type TransformerConfig struct {
	EmbedDim int     // token width
	NumHeads int     // attention heads; must divide EmbedDim
	FFNDim   int     // hidden width of the feed-forward network
	DropPath float64 // stochastic depth on both residual branches
	Eps      float64 // LayerNorm epsilon
}

// Validate reports the first invalid field as an ErrInvalidConfig.
func (c TransformerConfig) Validate() error {
	switch {
	case c.EmbedDim <= 0:
		return invalidf("transformer: embed dim must be positive, got %d", c.EmbedDim)
	case c.NumHeads <= 0 || c.EmbedDim%c.NumHeads != 0:
		return invalidf("transformer: embed dim %d must be divisible by heads %d", c.EmbedDim, c.NumHeads)
	case c.FFNDim <= 0:
		return invalidf("transformer: ffn dim must be positive, got %d", c.FFNDim)
	case !(c.DropPath >= 0 && c.DropPath < 1):
		return invalidf("transformer: drop path must be in [0, 1), got %g", c.DropPath)
	case !(c.Eps > 0):
		return invalidf("transformer: eps must be positive, got %g", c.Eps)
	}
	return nil
}

// TransformerBlock is a pre-norm encoder block:
//
//	x = x + DropPath(MHA(LayerNorm(x)))
//	x = x + DropPath(FFN(LayerNorm(x)))
//
// Input and output are [batch, seq, dim].
type TransformerBlock[B tensor.Backend] struct {
	cfg      TransformerConfig
	norm1    *LayerNorm[B]
	attn     *MultiHeadAttention[B]
	norm2    *LayerNorm[B]
	mlp      *FFN[B]
	dropPath *DropPath[B] // nil when cfg.DropPath == 0
}

// NewTransformerBlock validates cfg and builds the block.
func NewTransformerBlock[B tensor.Backend](cfg TransformerConfig, backend B, rng *rand.Rand) (*TransformerBlock[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng = RandOrDefault(rng)

	block := &TransformerBlock[B]{cfg: cfg}
	var err error
	if block.norm1, err = NewLayerNorm(cfg.EmbedDim, cfg.Eps, backend); err != nil {
		return nil, err
	}
	if block.attn, err = NewMultiHeadAttention(cfg.EmbedDim, cfg.NumHeads, backend, rng); err != nil {
		return nil, err
	}
	if block.norm2, err = NewLayerNorm(cfg.EmbedDim, cfg.Eps, backend); err != nil {
		return nil, err
	}
	if block.mlp, err = NewFFN(cfg.EmbedDim, cfg.FFNDim, backend, rng); err != nil {
		return nil, err
	}
	if cfg.DropPath > 0 {
		if block.dropPath, err = NewDropPath(cfg.DropPath, backend); err != nil {
			return nil, err
		}
	}

	Scope[B]("norm1", block.norm1)
	Scope[B]("attn", block.attn)
	Scope[B]("norm2", block.norm2)
	Scope[B]("mlp", block.mlp)
	return block, nil
}

// Forward applies attention and the feed-forward network with residuals.
func (t *TransformerBlock[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if shape := input.Shape(); len(shape) != 3 {
		panic(fmt.Sprintf("transformer: expected [batch, seq, dim] input, got %v", shape))
	}
	x := input.Add(t.drop(pass, t.attn.Forward(pass, t.norm1.Forward(pass, input))))
	return x.Add(t.drop(pass, t.mlp.Forward(pass, t.norm2.Forward(pass, x))))
}

func (t *TransformerBlock[B]) drop(pass Pass, h *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if t.dropPath == nil {
		return h
	}
	return t.dropPath.Forward(pass, h)
}

// Parameters returns norm1, attn, norm2 and mlp parameters in order.
func (t *TransformerBlock[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 16)
	params = append(params, t.norm1.Parameters()...)
	params = append(params, t.attn.Parameters()...)
	params = append(params, t.norm2.Parameters()...)
	return append(params, t.mlp.Parameters()...)
}

// Config returns the block configuration.
func (t *TransformerBlock[B]) Config() TransformerConfig {
	return t.cfg
}

// Attention returns the self-attention layer.
func (t *TransformerBlock[B]) Attention() *MultiHeadAttention[B] {
	return t.attn
}
