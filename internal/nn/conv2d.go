package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// Conv2DConfig describes a 2D convolution with a square kernel.
type Conv2DConfig struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int // 0 means 1.
	Padding     int
	Groups      int // 0 means 1; InChannels gives a depthwise convolution.
	NoBias      bool
}

func (c Conv2DConfig) withDefaults() Conv2DConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
	return c
}

// Validate checks the configuration.
func (c Conv2DConfig) Validate() error {
	c = c.withDefaults()
	switch {
	case c.InChannels <= 0 || c.OutChannels <= 0:
		return invalidf("conv2d: channels must be positive, got in=%d out=%d", c.InChannels, c.OutChannels)
	case c.KernelSize <= 0:
		return invalidf("conv2d: kernel size must be positive, got %d", c.KernelSize)
	case c.Stride < 0:
		return invalidf("conv2d: stride must be positive, got %d", c.Stride)
	case c.Padding < 0:
		return invalidf("conv2d: padding must be non-negative, got %d", c.Padding)
	case c.Groups < 0 || c.InChannels%c.Groups != 0 || c.OutChannels%c.Groups != 0:
		return invalidf("conv2d: groups=%d must divide in=%d and out=%d", c.Groups, c.InChannels, c.OutChannels)
	}
	return nil
}

// Conv2D is a 2D convolutional layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
//	out_h = (height + 2*padding - kernel) / stride + 1
type Conv2D[B tensor.Backend] struct {
	cfg    Conv2DConfig
	weight *Parameter[B]
	bias   *Parameter[B] // nil when cfg.NoBias

	backend B
}

// NewConv2D creates a convolution initialized with KaimingUniform weights and
// a uniform bias in ±1/√fanIn, where fanIn = in_channels/groups·kernel².
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, backend B, rng *rand.Rand) (*Conv2D[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	rng = RandOrDefault(rng)

	inPerGroup := cfg.InChannels / cfg.Groups
	fanIn := inPerGroup * cfg.KernelSize * cfg.KernelSize
	weightShape := tensor.Shape{cfg.OutChannels, inPerGroup, cfg.KernelSize, cfg.KernelSize}
	c := &Conv2D[B]{
		cfg:     cfg,
		weight:  NewParameter("weight", KaimingUniform(fanIn, weightShape, rng, backend)),
		backend: backend,
	}
	if !cfg.NoBias {
		c.bias = NewParameter("bias", KaimingUniform(fanIn, tensor.Shape{cfg.OutChannels}, rng, backend))
	}
	return c, nil
}

// Forward convolves input and adds the bias.
func (c *Conv2D[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.cfg.InChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.cfg.InChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.cfg.Stride, c.cfg.Padding, c.cfg.Groups)
	output := tensor.New[float32, B](outputRaw, c.backend)
	if c.bias != nil {
		output = output.Add(c.bias.Tensor().Reshape(1, c.cfg.OutChannels, 1, 1))
	}
	return output
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// Config returns the layer configuration.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// OutputSize computes output spatial dimensions for an input of inputH×inputW.
func (c *Conv2D[B]) OutputSize(inputH, inputW int) (int, int) {
	outH := (inputH+2*c.cfg.Padding-c.cfg.KernelSize)/c.cfg.Stride + 1
	outW := (inputW+2*c.cfg.Padding-c.cfg.KernelSize)/c.cfg.Stride + 1
	return outH, outW
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, groups=%d, bias=%v)",
		c.cfg.InChannels, c.cfg.OutChannels, c.cfg.KernelSize, c.cfg.Stride, c.cfg.Padding, c.cfg.Groups, c.bias != nil)
}
