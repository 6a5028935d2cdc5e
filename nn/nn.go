// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Buffered is implemented by modules holding non-trainable state.
type Buffered[B tensor.Backend] = nn.Buffered[B]

// Parameter represents a named parameter of a module.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Mode selects training or evaluation behaviour.
type Mode = nn.Mode

// Pass carries the mode and random source of a forward pass.
type Pass = nn.Pass

// Modes.
const (
	Eval  = nn.Eval
	Train = nn.Train
)

// EvalPass returns a Pass for inference.
func EvalPass() Pass { return nn.EvalPass() }

// TrainPass returns a training Pass drawing randomness from rng.
func TrainPass(rng *rand.Rand) Pass { return nn.TrainPass(rng) }

// Errors.
var (
	ErrInvalidConfig = nn.ErrInvalidConfig
	ErrMissingState  = nn.ErrMissingState
	ErrShapeMismatch = nn.ErrShapeMismatch
)

// ConvNeXt

// BlockConfig holds the hyperparameters of a ConvNeXtBlock.
type BlockConfig = nn.BlockConfig

// DefaultBlockConfig returns kernel 7, widening 4, drop path 0, eps 1e-6.
func DefaultBlockConfig(channels int) BlockConfig {
	return nn.DefaultBlockConfig(channels)
}

// ConvNeXtBlock is the residual ConvNeXt block.
type ConvNeXtBlock[B tensor.Backend] = nn.ConvNeXtBlock[B]

// NewConvNeXtBlock validates cfg and builds the block.
func NewConvNeXtBlock[B tensor.Backend](cfg BlockConfig, backend B, rng *rand.Rand) (*ConvNeXtBlock[B], error) {
	return nn.NewConvNeXtBlock(cfg, backend, rng)
}

// DepthwiseSeparableConv is a depthwise K×K convolution followed by a
// pointwise 1×1 convolution.
type DepthwiseSeparableConv[B tensor.Backend] = nn.DepthwiseSeparableConv[B]

// NewDepthwiseSeparableConv creates a depthwise-separable convolution.
func NewDepthwiseSeparableConv[B tensor.Backend](inChannels, outChannels, kernelSize, padding int, backend B, rng *rand.Rand) (*DepthwiseSeparableConv[B], error) {
	return nn.NewDepthwiseSeparableConv(inChannels, outChannels, kernelSize, padding, backend, rng)
}

// LayerNorm2D normalizes feature maps over the channel axis.
type LayerNorm2D[B tensor.Backend] = nn.LayerNorm2D[B]

// NewLayerNorm2D creates a channel-wise layer normalization.
func NewLayerNorm2D[B tensor.Backend](channels int, eps float64, backend B) (*LayerNorm2D[B], error) {
	return nn.NewLayerNorm2D(channels, eps, backend)
}

// DropPath implements per-sample stochastic depth.
type DropPath[B tensor.Backend] = nn.DropPath[B]

// NewDropPath creates a DropPath with drop probability p in [0, 1).
func NewDropPath[B tensor.Backend](p float64, backend B) (*DropPath[B], error) {
	return nn.NewDropPath(p, backend)
}

// Layers

// Conv2DConfig describes a 2D convolution.
type Conv2DConfig = nn.Conv2DConfig

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a 2D convolutional layer.
//
// Example:
//
//	conv, err := nn.NewConv2D(nn.Conv2DConfig{InChannels: 3, OutChannels: 16, KernelSize: 3, Padding: 1}, backend, rng)
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, backend B, rng *rand.Rand) (*Conv2D[B], error) {
	return nn.NewConv2D(cfg, backend, rng)
}

// Linear represents a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a fully connected layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, rng *rand.Rand) (*Linear[B], error) {
	return nn.NewLinear(inFeatures, outFeatures, backend, rng)
}

// BatchNorm2D normalizes each channel of a batch.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch normalization layer.
func NewBatchNorm2D[B tensor.Backend](channels int, eps float64, backend B) (*BatchNorm2D[B], error) {
	return nn.NewBatchNorm2D(channels, eps, backend)
}

// GELU applies the exact Gaussian Error Linear Unit.
type GELU[B tensor.Backend] = nn.GELU[B]

// NewGELU creates a GELU activation.
func NewGELU[B tensor.Backend](backend B) *GELU[B] { return nn.NewGELU(backend) }

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend](backend B) *ReLU[B] { return nn.NewReLU(backend) }

// GlobalAvgPool2D averages every channel over its spatial extent.
type GlobalAvgPool2D[B tensor.Backend] = nn.GlobalAvgPool2D[B]

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] { return nn.NewGlobalAvgPool2D[B]() }

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Parameter utilities

// CountParameters returns the number of trainable scalars of m.
func CountParameters[B tensor.Backend](m Module[B]) int { return nn.CountParameters(m) }

// NamedParameters indexes the trainable parameters of m by name.
func NamedParameters[B tensor.Backend](m Module[B]) map[string]*Parameter[B] {
	return nn.NamedParameters(m)
}

// StateDict returns the parameters and buffers of m keyed by name.
func StateDict[B tensor.Backend](m Module[B]) map[string]*tensor.RawTensor { return nn.StateDict(m) }

// LoadStateDict copies sd into the parameters and buffers of m.
func LoadStateDict[B tensor.Backend](m Module[B], sd map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(m, sd)
}

// Transformer layers

// LayerNorm normalizes over the last dimension.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a last-dimension layer normalization.
func NewLayerNorm[B tensor.Backend](features int, eps float64, backend B) (*LayerNorm[B], error) {
	return nn.NewLayerNorm(features, eps, backend)
}

// MultiHeadAttention is multi-head self-attention over token sequences.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates self-attention with embedDim split across numHeads.
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, backend B, rng *rand.Rand) (*MultiHeadAttention[B], error) {
	return nn.NewMultiHeadAttention(embedDim, numHeads, backend, rng)
}

// ScaledDotProductAttention computes softmax(Q·Kᵀ·scale)·V over
// [batch, heads, seq, head_dim] tensors.
func ScaledDotProductAttention[B tensor.Backend](query, key, value *tensor.Tensor[float32, B], scale float64) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return nn.ScaledDotProductAttention(query, key, value, scale)
}

// FFN is the feed-forward network of a transformer block.
type FFN[B tensor.Backend] = nn.FFN[B]

// NewFFN creates a feed-forward network dim → hidden → dim.
func NewFFN[B tensor.Backend](dim, hidden int, backend B, rng *rand.Rand) (*FFN[B], error) {
	return nn.NewFFN(dim, hidden, backend, rng)
}

// PositionalEmbedding adds a learned table to token sequences.
type PositionalEmbedding[B tensor.Backend] = nn.PositionalEmbedding[B]

// NewPositionalEmbedding creates a learned positional table.
func NewPositionalEmbedding[B tensor.Backend](seqLen, dim int, backend B, rng *rand.Rand) (*PositionalEmbedding[B], error) {
	return nn.NewPositionalEmbedding(seqLen, dim, backend, rng)
}

// TransformerConfig holds the hyperparameters of a TransformerBlock.
type TransformerConfig = nn.TransformerConfig

// TransformerBlock is a pre-norm transformer encoder block.
type TransformerBlock[B tensor.Backend] = nn.TransformerBlock[B]

// NewTransformerBlock validates cfg and builds the block.
func NewTransformerBlock[B tensor.Backend](cfg TransformerConfig, backend B, rng *rand.Rand) (*TransformerBlock[B], error) {
	return nn.NewTransformerBlock(cfg, backend, rng)
}
