package models

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/config"
	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

// BasicBlock is the two-convolution residual block of ResNet:
//
//	out = ReLU(BN(conv3x3(ReLU(BN(conv3x3(x))))) + shortcut(x))
//
// The shortcut is a strided 1×1 convolution with batch norm when the block
// changes resolution or width, and the identity otherwise.
type BasicBlock[B tensor.Backend] struct {
	conv1    *nn.Conv2D[B]
	bn1      *nn.BatchNorm2D[B]
	conv2    *nn.Conv2D[B]
	bn2      *nn.BatchNorm2D[B]
	relu     *nn.ReLU[B]
	shortcut *nn.Sequential[B] // nil for the identity
}

// NewBasicBlock creates a residual block mapping in → out channels.
func NewBasicBlock[B tensor.Backend](in, out, stride int, eps float64, backend B, rng *rand.Rand) (*BasicBlock[B], error) {
	conv1, err := nn.NewConv2D(nn.Conv2DConfig{
		InChannels: in, OutChannels: out, KernelSize: 3, Stride: stride, Padding: 1, NoBias: true,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	bn1, err := nn.NewBatchNorm2D(out, eps, backend)
	if err != nil {
		return nil, err
	}
	conv2, err := nn.NewConv2D(nn.Conv2DConfig{
		InChannels: out, OutChannels: out, KernelSize: 3, Padding: 1, NoBias: true,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	bn2, err := nn.NewBatchNorm2D(out, eps, backend)
	if err != nil {
		return nil, err
	}
	b := &BasicBlock[B]{conv1: conv1, bn1: bn1, conv2: conv2, bn2: bn2, relu: nn.NewReLU(backend)}

	if stride != 1 || in != out {
		proj, err := nn.NewConv2D(nn.Conv2DConfig{
			InChannels: in, OutChannels: out, KernelSize: 1, Stride: stride, NoBias: true,
		}, backend, rng)
		if err != nil {
			return nil, err
		}
		bn, err := nn.NewBatchNorm2D(out, eps, backend)
		if err != nil {
			return nil, err
		}
		b.shortcut = nn.NewSequential[B](proj, bn)
		nn.Scope[B]("shortcut", b.shortcut)
	}
	nn.Scope[B]("conv1", conv1)
	nn.Scope[B]("bn1", bn1)
	nn.Scope[B]("conv2", conv2)
	nn.Scope[B]("bn2", bn2)
	return b, nil
}

// Forward applies the block.
func (b *BasicBlock[B]) Forward(pass nn.Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := b.relu.Forward(pass, b.bn1.Forward(pass, b.conv1.Forward(pass, input)))
	h = b.bn2.Forward(pass, b.conv2.Forward(pass, h))
	identity := input
	if b.shortcut != nil {
		identity = b.shortcut.Forward(pass, input)
	}
	return b.relu.Forward(pass, h.Add(identity))
}

// Parameters returns the trainable parameters.
func (b *BasicBlock[B]) Parameters() []*nn.Parameter[B] {
	params := append(b.conv1.Parameters(), b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	if b.shortcut != nil {
		params = append(params, b.shortcut.Parameters()...)
	}
	return params
}

// Buffers returns the batch norm running statistics.
func (b *BasicBlock[B]) Buffers() []*nn.Parameter[B] {
	buffers := append(b.bn1.Buffers(), b.bn2.Buffers()...)
	if b.shortcut != nil {
		buffers = append(buffers, b.shortcut.Buffers()...)
	}
	return buffers
}

// ResNet is the CIFAR variant of the residual network (ResNet-20 with depths
// 3/3/3 and widths 16/32/64): a 3×3 stem, one stage per Depths entry with
// stride 2 at the start of every stage but the first, global average pooling
// and a linear head.
type ResNet[B tensor.Backend] struct {
	cfg    config.ModelConfig
	conv1  *nn.Conv2D[B]
	bn1    *nn.BatchNorm2D[B]
	relu   *nn.ReLU[B]
	layers []*nn.Sequential[B]
	pool   *nn.GlobalAvgPool2D[B]
	fc     *nn.Linear[B]
}

// NewResNet builds the classifier.
func NewResNet[B tensor.Backend](cfg config.ModelConfig, backend B, rng *rand.Rand) (*ResNet[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng = nn.RandOrDefault(rng)

	conv1, err := nn.NewConv2D(nn.Conv2DConfig{
		InChannels: cfg.InChannels, OutChannels: cfg.Dims[0], KernelSize: 3, Padding: 1, NoBias: true,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	bn1, err := nn.NewBatchNorm2D(cfg.Dims[0], cfg.Eps, backend)
	if err != nil {
		return nil, err
	}
	nn.Scope[B]("conv1", conv1)
	nn.Scope[B]("bn1", bn1)
	m := &ResNet[B]{
		cfg:   cfg,
		conv1: conv1,
		bn1:   bn1,
		relu:  nn.NewReLU(backend),
		pool:  nn.NewGlobalAvgPool2D[B](),
	}

	in := cfg.Dims[0]
	for i, depth := range cfg.Depths {
		layer := nn.NewSequential[B]()
		for j := 0; j < depth; j++ {
			stride := 1
			if i > 0 && j == 0 {
				stride = 2
			}
			block, err := NewBasicBlock(in, cfg.Dims[i], stride, cfg.Eps, backend, rng)
			if err != nil {
				return nil, err
			}
			layer.Add(block)
			in = cfg.Dims[i]
		}
		nn.Scope[B](fmt.Sprintf("layer%d", i+1), layer)
		m.layers = append(m.layers, layer)
	}

	if m.fc, err = nn.NewLinear(in, cfg.NumClasses, backend, rng); err != nil {
		return nil, err
	}
	nn.Scope[B]("fc", m.fc)
	return m, nil
}

// Forward maps [N, C, H, W] images to [N, NumClasses] logits.
func (m *ResNet[B]) Forward(pass nn.Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := m.relu.Forward(pass, m.bn1.Forward(pass, m.conv1.Forward(pass, input)))
	for _, layer := range m.layers {
		h = layer.Forward(pass, h)
	}
	return m.fc.Forward(pass, m.pool.Forward(pass, h))
}

// Parameters returns every trainable parameter in forward order.
func (m *ResNet[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.conv1.Parameters(), m.bn1.Parameters()...)
	for _, layer := range m.layers {
		params = append(params, layer.Parameters()...)
	}
	return append(params, m.fc.Parameters()...)
}

// Buffers returns all batch norm running statistics.
func (m *ResNet[B]) Buffers() []*nn.Parameter[B] {
	buffers := m.bn1.Buffers()
	for _, layer := range m.layers {
		buffers = append(buffers, layer.Buffers()...)
	}
	return buffers
}

// Name returns "resnet".
func (m *ResNet[B]) Name() string {
	return config.ModelResNet
}

// NumClasses returns the number of output logits.
func (m *ResNet[B]) NumClasses() int {
	return m.cfg.NumClasses
}
