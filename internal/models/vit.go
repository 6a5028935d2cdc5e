package models

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/vision/internal/config"
	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

// ViT is a Vision Transformer for small images:
//
//	patch_embed: Conv k=s=PatchSize, C → D       [N, D, H/P, W/P]
//	tokens:      flatten + transpose              [N, L, D]
//	pos_embed:   learned [1, L, D] table
//	blocks:      Depths[0] × pre-norm TransformerBlock
//	norm:        LayerNorm over D
//	head:        mean over tokens → Linear
//
// Drop path rates increase linearly from 0 to DropPathRate over the blocks.
type ViT[B tensor.Backend] struct {
	cfg        config.ModelConfig
	patchEmbed *nn.Conv2D[B]
	posEmbed   *nn.PositionalEmbedding[B]
	blocks     *nn.Sequential[B]
	norm       *nn.LayerNorm[B]
	head       *nn.Linear[B]
	numTokens  int
}

// NewViT builds the classifier. Weight matrices and the positional table are
// drawn from a truncated normal with std 0.02 and biases start at zero.
func NewViT[B tensor.Backend](cfg config.ModelConfig, backend B, rng *rand.Rand) (*ViT[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name != config.ModelViT {
		return nil, errors.Wrapf(nn.ErrInvalidConfig, "vit: config describes model %q", cfg.Name)
	}
	rng = nn.RandOrDefault(rng)
	dim := cfg.Dims[0]
	side := cfg.ImageSize / cfg.PatchSize
	m := &ViT[B]{cfg: cfg, numTokens: side * side}

	var err error
	m.patchEmbed, err = nn.NewConv2D(nn.Conv2DConfig{
		InChannels: cfg.InChannels, OutChannels: dim, KernelSize: cfg.PatchSize, Stride: cfg.PatchSize,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	nn.Scope[B]("patch_embed", m.patchEmbed)

	if m.posEmbed, err = nn.NewPositionalEmbedding(m.numTokens, dim, backend, rng); err != nil {
		return nil, err
	}
	nn.Scope[B]("pos_embed", m.posEmbed)

	m.blocks = nn.NewSequential[B]()
	for _, rate := range dropPathRates(cfg.Depths, cfg.DropPathRate) {
		block, err := nn.NewTransformerBlock(nn.TransformerConfig{
			EmbedDim: dim,
			NumHeads: cfg.NumHeads,
			FFNDim:   dim * cfg.WideningFactor,
			DropPath: rate,
			Eps:      cfg.Eps,
		}, backend, rng)
		if err != nil {
			return nil, err
		}
		m.blocks.Add(block)
	}
	nn.Scope[B]("blocks", m.blocks)

	if m.norm, err = nn.NewLayerNorm(dim, cfg.Eps, backend); err != nil {
		return nil, err
	}
	nn.Scope[B]("norm", m.norm)
	if m.head, err = nn.NewLinear(dim, cfg.NumClasses, backend, rng); err != nil {
		return nil, err
	}
	nn.Scope[B]("head", m.head)

	for _, p := range m.Parameters() {
		switch {
		case isWeight(p.Name()) && len(p.Shape()) >= 2:
			copy(p.Tensor().Data(), nn.TruncNormal(p.Shape(), 0.02, rng, backend).Data())
		case isBias(p.Name()):
			clear(p.Tensor().Data())
		}
	}
	return m, nil
}

// Forward maps [N, C, ImageSize, ImageSize] images to [N, NumClasses] logits.
func (m *ViT[B]) Forward(pass nn.Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := m.patchEmbed.Forward(pass, input)
	shape := h.Shape()
	n, dim := shape[0], shape[1]
	if tokens := shape[2] * shape[3]; tokens != m.numTokens {
		panic(fmt.Sprintf("vit: expected %d patches, got %d from input %v", m.numTokens, tokens, input.Shape()))
	}

	x := h.Reshape(n, dim, m.numTokens).Transpose(0, 2, 1)
	x = m.posEmbed.Forward(pass, x)
	x = m.blocks.Forward(pass, x)
	x = m.norm.Forward(pass, x)
	return m.head.Forward(pass, x.MeanDim(1, false))
}

// Parameters returns every trainable parameter in forward order.
func (m *ViT[B]) Parameters() []*nn.Parameter[B] {
	params := m.patchEmbed.Parameters()
	params = append(params, m.posEmbed.Parameters()...)
	params = append(params, m.blocks.Parameters()...)
	params = append(params, m.norm.Parameters()...)
	return append(params, m.head.Parameters()...)
}

// Name returns "vit".
func (m *ViT[B]) Name() string {
	return config.ModelViT
}

// NumClasses returns the number of output logits.
func (m *ViT[B]) NumClasses() int {
	return m.cfg.NumClasses
}

// NumTokens returns the number of patches per image.
func (m *ViT[B]) NumTokens() int {
	return m.numTokens
}

// Config returns the model configuration.
func (m *ViT[B]) Config() config.ModelConfig {
	return m.cfg
}
