package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// BlockConfig holds the hyperparameters of a ConvNeXtBlock.
type BlockConfig struct {
	Channels       int     `yaml:"channels"`
	KernelSize     int     `yaml:"kernel_size"`
	WideningFactor int     `yaml:"widening_factor"`
	DropPath       float64 `yaml:"drop_path"`
	Eps            float64 `yaml:"eps"`
}

// DefaultBlockConfig returns the ConvNeXt defaults for the given width:
// 7×7 kernel, widening factor 4, no drop path, eps 1e-6.
func DefaultBlockConfig(channels int) BlockConfig {
	return BlockConfig{
		Channels:       channels,
		KernelSize:     7,
		WideningFactor: 4,
		DropPath:       0,
		Eps:            1e-6,
	}
}

// Validate reports the first invalid field as an ErrInvalidConfig.
func (c BlockConfig) Validate() error {
	switch {
	case c.Channels <= 0:
		return invalidf("convnext block: channels must be positive, got %d", c.Channels)
	case c.KernelSize <= 0 || c.KernelSize%2 == 0:
		return invalidf("convnext block: kernel size must be positive and odd, got %d", c.KernelSize)
	case c.WideningFactor <= 0:
		return invalidf("convnext block: widening factor must be positive, got %d", c.WideningFactor)
	case !(c.DropPath >= 0 && c.DropPath < 1):
		return invalidf("convnext block: drop path must be in [0, 1), got %g", c.DropPath)
	case !(c.Eps > 0):
		return invalidf("convnext block: eps must be positive, got %g", c.Eps)
	}
	return nil
}

// ConvNeXtBlock is the residual block of ConvNeXt
// (https://arxiv.org/abs/2201.03545):
//
//	x ─┬─ dwsep conv K×K ─ LayerNorm2D ─ 1×1 (C→wC) ─ GELU ─ 1×1 (wC→C) ─ DropPath ─┐
//	   └──────────────────────────────────────────────────────────────────────────(+)─ out
//
// Channels and spatial size are preserved.
type ConvNeXtBlock[B tensor.Backend] struct {
	cfg      BlockConfig
	dwconv   *DepthwiseSeparableConv[B]
	norm     *LayerNorm2D[B]
	pwconv1  *Conv2D[B]
	act      *GELU[B]
	pwconv2  *Conv2D[B]
	dropPath *DropPath[B] // nil when cfg.DropPath == 0
}

// NewConvNeXtBlock validates cfg and builds the block. Weights are drawn from
// rng; a nil rng uses a randomly seeded source.
func NewConvNeXtBlock[B tensor.Backend](cfg BlockConfig, backend B, rng *rand.Rand) (*ConvNeXtBlock[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng = RandOrDefault(rng)
	hidden := cfg.Channels * cfg.WideningFactor

	dwconv, err := NewDepthwiseSeparableConv(cfg.Channels, cfg.Channels, cfg.KernelSize, cfg.KernelSize/2, backend, rng)
	if err != nil {
		return nil, err
	}
	norm, err := NewLayerNorm2D(cfg.Channels, cfg.Eps, backend)
	if err != nil {
		return nil, err
	}
	pwconv1, err := NewConv2D(Conv2DConfig{InChannels: cfg.Channels, OutChannels: hidden, KernelSize: 1}, backend, rng)
	if err != nil {
		return nil, err
	}
	pwconv2, err := NewConv2D(Conv2DConfig{InChannels: hidden, OutChannels: cfg.Channels, KernelSize: 1}, backend, rng)
	if err != nil {
		return nil, err
	}
	block := &ConvNeXtBlock[B]{
		cfg:     cfg,
		dwconv:  dwconv,
		norm:    norm,
		pwconv1: pwconv1,
		act:     NewGELU(backend),
		pwconv2: pwconv2,
	}
	if cfg.DropPath > 0 {
		if block.dropPath, err = NewDropPath(cfg.DropPath, backend); err != nil {
			return nil, err
		}
	}

	Scope[B]("dwconv", dwconv)
	Scope[B]("norm", norm)
	Scope[B]("pwconv1", pwconv1)
	Scope[B]("pwconv2", pwconv2)
	return block, nil
}

// Forward computes x + DropPath(branch(x)).
func (b *ConvNeXtBlock[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	residual := input

	h := b.dwconv.Forward(pass, input)
	h = b.norm.Forward(pass, h)
	h = b.pwconv1.Forward(pass, h) // inverted bottleneck
	h = b.act.Forward(pass, h)
	h = b.pwconv2.Forward(pass, h)
	if b.dropPath != nil {
		h = b.dropPath.Forward(pass, h)
	}

	return residual.Add(h)
}

// Parameters returns all trainable parameters in registration order:
// dwconv, norm, pwconv1, pwconv2.
func (b *ConvNeXtBlock[B]) Parameters() []*Parameter[B] {
	params := b.dwconv.Parameters()
	params = append(params, b.norm.Parameters()...)
	params = append(params, b.pwconv1.Parameters()...)
	params = append(params, b.pwconv2.Parameters()...)
	return params
}

// NamedParameters indexes the parameters by qualified name.
func (b *ConvNeXtBlock[B]) NamedParameters() map[string]*Parameter[B] {
	return NamedParameters[B](b)
}

// Config returns the configuration the block was built with.
func (b *ConvNeXtBlock[B]) Config() BlockConfig {
	return b.cfg
}

// DWConv returns the depthwise-separable convolution.
func (b *ConvNeXtBlock[B]) DWConv() *DepthwiseSeparableConv[B] {
	return b.dwconv
}

// Norm returns the channel layer normalization.
func (b *ConvNeXtBlock[B]) Norm() *LayerNorm2D[B] {
	return b.norm
}

// Expand returns the first 1×1 convolution (C → C·widening).
func (b *ConvNeXtBlock[B]) Expand() *Conv2D[B] {
	return b.pwconv1
}

// Reduce returns the second 1×1 convolution (C·widening → C).
func (b *ConvNeXtBlock[B]) Reduce() *Conv2D[B] {
	return b.pwconv2
}

// DropPath returns the stochastic depth layer, or nil when disabled.
func (b *ConvNeXtBlock[B]) DropPath() *DropPath[B] {
	return b.dropPath
}

// String returns a string representation of the block.
func (b *ConvNeXtBlock[B]) String() string {
	return fmt.Sprintf("ConvNeXtBlock(channels=%d, kernel_size=%d, widening_factor=%d, drop_path=%g, eps=%g)",
		b.cfg.Channels, b.cfg.KernelSize, b.cfg.WideningFactor, b.cfg.DropPath, b.cfg.Eps)
}
