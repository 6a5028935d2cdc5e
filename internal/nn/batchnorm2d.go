package nn

import (
	"fmt"

	"github.com/born-ml/vision/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] batch.
//
// Evaluation passes use the running statistics; training passes use the
// statistics of the current batch. Running statistics are buffers: they are
// saved and loaded with the state dict but never updated by Forward.
type BatchNorm2D[B tensor.Backend] struct {
	channels    int
	eps         float64
	weight      *Parameter[B] // [C], init 1
	bias        *Parameter[B] // [C], init 0
	runningMean *Parameter[B] // [C], init 0
	runningVar  *Parameter[B] // [C], init 1
}

// NewBatchNorm2D creates a batch normalization layer.
func NewBatchNorm2D[B tensor.Backend](channels int, eps float64, backend B) (*BatchNorm2D[B], error) {
	if channels <= 0 {
		return nil, invalidf("batchnorm2d: channels must be positive, got %d", channels)
	}
	if !(eps > 0) {
		return nil, invalidf("batchnorm2d: eps must be positive, got %g", eps)
	}
	shape := tensor.Shape{channels}
	return &BatchNorm2D[B]{
		channels:    channels,
		eps:         eps,
		weight:      NewParameter("weight", tensor.Ones[float32](shape, backend)),
		bias:        NewParameter("bias", tensor.Zeros[float32](shape, backend)),
		runningMean: NewParameter("running_mean", tensor.Zeros[float32](shape, backend)),
		runningVar:  NewParameter("running_var", tensor.Ones[float32](shape, backend)),
	}, nil
}

// Forward normalizes the batch.
func (bn *BatchNorm2D[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.channels))
	}

	var mean, variance *tensor.Tensor[float32, B]
	if pass.Training() {
		mean = channelMean(input)
		centered := input.Sub(mean)
		variance = channelMean(centered.Mul(centered))
	} else {
		mean = bn.runningMean.Tensor().Reshape(1, bn.channels, 1, 1)
		variance = bn.runningVar.Tensor().Reshape(1, bn.channels, 1, 1)
	}

	normalized := input.Sub(mean).Mul(variance.AddScalar(bn.eps).Rsqrt())
	weight := bn.weight.Tensor().Reshape(1, bn.channels, 1, 1)
	bias := bn.bias.Tensor().Reshape(1, bn.channels, 1, 1)
	return normalized.Mul(weight).Add(bias)
}

// channelMean reduces [N, C, H, W] to [1, C, 1, 1].
func channelMean[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
}

// Parameters returns [weight, bias].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// Buffers returns [running_mean, running_var].
func (bn *BatchNorm2D[B]) Buffers() []*Parameter[B] {
	return []*Parameter[B]{bn.runningMean, bn.runningVar}
}
