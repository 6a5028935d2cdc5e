package models

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/config"
	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

// ConvNeXt is a ConvNeXt image classifier sized for small inputs such as
// CIFAR-10:
//
//	stem:       Conv k2 s2 → LayerNorm2D
//	stage i:    Depths[i] × ConvNeXtBlock(Dims[i])
//	downsample: LayerNorm2D → Conv k2 s2 (between stages)
//	head:       global average pool → LayerNorm → Linear
//
// Drop path rates increase linearly from 0 to DropPathRate over all blocks.
type ConvNeXt[B tensor.Backend] struct {
	cfg         config.ModelConfig
	stem        *nn.Sequential[B]
	downsample  []*nn.Sequential[B] // len(stages) - 1
	stages      []*nn.Sequential[B]
	pool        *nn.GlobalAvgPool2D[B]
	norm        *nn.LayerNorm2D[B]
	head        *nn.Linear[B]
	numClasses  int
	blockConfig []nn.BlockConfig
}

// NewConvNeXt builds the classifier. Convolution and linear weights are
// drawn from a truncated normal with std 0.02 and biases start at zero.
func NewConvNeXt[B tensor.Backend](cfg config.ModelConfig, backend B, rng *rand.Rand) (*ConvNeXt[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng = nn.RandOrDefault(rng)
	m := &ConvNeXt[B]{
		cfg:        cfg,
		pool:       nn.NewGlobalAvgPool2D[B](),
		numClasses: cfg.NumClasses,
	}

	stemConv, err := nn.NewConv2D(nn.Conv2DConfig{
		InChannels: cfg.InChannels, OutChannels: cfg.Dims[0], KernelSize: 2, Stride: 2,
	}, backend, rng)
	if err != nil {
		return nil, err
	}
	stemNorm, err := nn.NewLayerNorm2D(cfg.Dims[0], cfg.Eps, backend)
	if err != nil {
		return nil, err
	}
	m.stem = nn.NewSequential[B](stemConv, stemNorm)
	nn.Scope[B]("stem", m.stem)

	rates := dropPathRates(cfg.Depths, cfg.DropPathRate)
	blockIndex := 0
	for i, depth := range cfg.Depths {
		if i > 0 {
			down, err := newDownsample(cfg.Dims[i-1], cfg.Dims[i], cfg.Eps, backend, rng)
			if err != nil {
				return nil, err
			}
			nn.Scope[B](fmt.Sprintf("downsample.%d", i-1), down)
			m.downsample = append(m.downsample, down)
		}

		stage := nn.NewSequential[B]()
		for j := 0; j < depth; j++ {
			blockCfg := nn.BlockConfig{
				Channels:       cfg.Dims[i],
				KernelSize:     cfg.KernelSize,
				WideningFactor: cfg.WideningFactor,
				DropPath:       rates[blockIndex],
				Eps:            cfg.Eps,
			}
			block, err := nn.NewConvNeXtBlock(blockCfg, backend, rng)
			if err != nil {
				return nil, err
			}
			stage.Add(block)
			m.blockConfig = append(m.blockConfig, blockCfg)
			blockIndex++
		}
		nn.Scope[B](fmt.Sprintf("stages.%d", i), stage)
		m.stages = append(m.stages, stage)
	}

	last := cfg.Dims[len(cfg.Dims)-1]
	if m.norm, err = nn.NewLayerNorm2D(last, cfg.Eps, backend); err != nil {
		return nil, err
	}
	nn.Scope[B]("norm", m.norm)
	if m.head, err = nn.NewLinear(last, cfg.NumClasses, backend, rng); err != nil {
		return nil, err
	}
	nn.Scope[B]("head", m.head)

	m.initWeights(backend, rng)
	return m, nil
}

func newDownsample[B tensor.Backend](in, out int, eps float64, backend B, rng *rand.Rand) (*nn.Sequential[B], error) {
	norm, err := nn.NewLayerNorm2D(in, eps, backend)
	if err != nil {
		return nil, err
	}
	conv, err := nn.NewConv2D(nn.Conv2DConfig{InChannels: in, OutChannels: out, KernelSize: 2, Stride: 2}, backend, rng)
	if err != nil {
		return nil, err
	}
	return nn.NewSequential[B](norm, conv), nil
}

// dropPathRates spaces total block rates evenly over [0, maxRate].
func dropPathRates(depths []int, maxRate float64) []float64 {
	total := 0
	for _, d := range depths {
		total += d
	}
	rates := make([]float64, total)
	if total == 1 {
		return rates
	}
	for i := range rates {
		rates[i] = maxRate * float64(i) / float64(total-1)
	}
	return rates
}

// initWeights reinitializes convolution and linear weights.
func (m *ConvNeXt[B]) initWeights(backend B, rng *rand.Rand) {
	for _, p := range m.Parameters() {
		switch {
		case isWeight(p.Name()) && len(p.Shape()) >= 2:
			copy(p.Tensor().Data(), nn.TruncNormal(p.Shape(), 0.02, rng, backend).Data())
		case isBias(p.Name()):
			clear(p.Tensor().Data())
		}
	}
}

// Forward maps [N, C, H, W] images to [N, NumClasses] logits.
func (m *ConvNeXt[B]) Forward(pass nn.Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := m.stem.Forward(pass, input)
	for i, stage := range m.stages {
		if i > 0 {
			h = m.downsample[i-1].Forward(pass, h)
		}
		h = stage.Forward(pass, h)
	}
	h = m.pool.Forward(pass, h)
	shape := h.Shape()
	h = m.norm.Forward(pass, h.Reshape(shape[0], shape[1], 1, 1)).Reshape(shape[0], shape[1])
	return m.head.Forward(pass, h)
}

// Parameters returns every trainable parameter in forward order.
func (m *ConvNeXt[B]) Parameters() []*nn.Parameter[B] {
	params := m.stem.Parameters()
	for i, stage := range m.stages {
		if i > 0 {
			params = append(params, m.downsample[i-1].Parameters()...)
		}
		params = append(params, stage.Parameters()...)
	}
	params = append(params, m.norm.Parameters()...)
	return append(params, m.head.Parameters()...)
}

// Name returns "convnext".
func (m *ConvNeXt[B]) Name() string {
	return config.ModelConvNeXt
}

// NumClasses returns the number of output logits.
func (m *ConvNeXt[B]) NumClasses() int {
	return m.numClasses
}

// Config returns the model configuration.
func (m *ConvNeXt[B]) Config() config.ModelConfig {
	return m.cfg
}

// BlockConfigs returns the configuration of every block in forward order.
func (m *ConvNeXt[B]) BlockConfigs() []nn.BlockConfig {
	return m.blockConfig
}
