package nn

import (
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// DepthwiseSeparableConv factorizes a convolution into a depthwise K×K
// convolution (one filter per input channel) followed by a pointwise 1×1
// convolution mixing channels. There is no normalization or nonlinearity
// between the two stages.
//
// Parameters: in·K² + in (depthwise) and in·out + out (pointwise).
type DepthwiseSeparableConv[B tensor.Backend] struct {
	depthwise *Conv2D[B]
	pointwise *Conv2D[B]
}

// NewDepthwiseSeparableConv creates a depthwise-separable convolution.
//
// With an odd kernelSize and padding = kernelSize/2 the spatial size is
// preserved.
func NewDepthwiseSeparableConv[B tensor.Backend](
	inChannels, outChannels, kernelSize, padding int, backend B, rng *rand.Rand,
) (*DepthwiseSeparableConv[B], error) {
	rng = RandOrDefault(rng)
	depthwise, err := NewConv2D(Conv2DConfig{
		InChannels:  inChannels,
		OutChannels: inChannels,
		KernelSize:  kernelSize,
		Padding:     padding,
		Groups:      inChannels,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	pointwise, err := NewConv2D(Conv2DConfig{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  1,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	Scope[B]("depthwise", depthwise)
	Scope[B]("pointwise", pointwise)
	return &DepthwiseSeparableConv[B]{depthwise: depthwise, pointwise: pointwise}, nil
}

// Forward applies the depthwise then the pointwise convolution.
func (c *DepthwiseSeparableConv[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.pointwise.Forward(pass, c.depthwise.Forward(pass, input))
}

// Parameters returns the depthwise then the pointwise parameters.
func (c *DepthwiseSeparableConv[B]) Parameters() []*Parameter[B] {
	return append(c.depthwise.Parameters(), c.pointwise.Parameters()...)
}

// Depthwise returns the K×K per-channel convolution.
func (c *DepthwiseSeparableConv[B]) Depthwise() *Conv2D[B] {
	return c.depthwise
}

// Pointwise returns the 1×1 channel-mixing convolution.
func (c *DepthwiseSeparableConv[B]) Pointwise() *Conv2D[B] {
	return c.pointwise
}
