package nn

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/backend/cpu"
	"github.com/born-ml/vision/internal/tensor"
)

func TestConvNeXtBlock_PreservesShape(t *testing.T) {
	backend := cpu.New()
	block, err := NewConvNeXtBlock(DefaultBlockConfig(16), backend, newRand(1))
	require.NoError(t, err)

	x := randn(tensor.Shape{8, 16, 32, 32}, 2, backend)
	out := block.Forward(EvalPass(), x)
	assert.Equal(t, tensor.Shape{8, 16, 32, 32}, out.Shape())
}

func TestConvNeXtBlock_ShapeAcrossConfigs(t *testing.T) {
	backend := cpu.New()
	for _, cfg := range []BlockConfig{
		{Channels: 4, KernelSize: 3, WideningFactor: 2, Eps: 1e-6},
		{Channels: 3, KernelSize: 5, WideningFactor: 1, DropPath: 0.3, Eps: 1e-5},
		{Channels: 8, KernelSize: 1, WideningFactor: 4, Eps: 1e-6},
	} {
		block, err := NewConvNeXtBlock(cfg, backend, newRand(1))
		require.NoError(t, err)
		x := randn(tensor.Shape{2, cfg.Channels, 7, 5}, 2, backend)
		assert.Equal(t, x.Shape(), block.Forward(EvalPass(), x).Shape(), "%+v", cfg)
		assert.Equal(t, x.Shape(), block.Forward(TrainPass(newRand(3)), x).Shape(), "%+v", cfg)
	}
}

func TestConvNeXtBlock_ZeroReductionIsIdentity(t *testing.T) {
	backend := cpu.New()
	block, err := NewConvNeXtBlock(DefaultBlockConfig(8), backend, newRand(1))
	require.NoError(t, err)
	zero(block.Reduce().Weight())
	zero(block.Reduce().Bias())

	x := randn(tensor.Shape{2, 8, 6, 6}, 2, backend)
	assert.Equal(t, x.Data(), block.Forward(EvalPass(), x).Data())
	assert.Equal(t, x.Data(), block.Forward(TrainPass(newRand(4)), x).Data())
}

func TestConvNeXtBlock_EvalIsDeterministic(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultBlockConfig(4)
	cfg.DropPath = 0.5
	block, err := NewConvNeXtBlock(cfg, backend, newRand(1))
	require.NoError(t, err)

	x := randn(tensor.Shape{4, 4, 5, 5}, 2, backend)
	a := block.Forward(EvalPass(), x)
	b := block.Forward(EvalPass(), x)
	assert.Equal(t, a.Data(), b.Data())
}

func TestConvNeXtBlock_DropPathDropsWholeBranch(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultBlockConfig(4)
	cfg.DropPath = 0.5
	block, err := NewConvNeXtBlock(cfg, backend, newRand(1))
	require.NoError(t, err)
	require.NotNil(t, block.DropPath())

	const batch, per = 16, 4 * 3 * 3
	x := randn(tensor.Shape{batch, 4, 3, 3}, 2, backend)
	eval := block.Forward(EvalPass(), x).Data()
	train := block.Forward(TrainPass(newRand(7)), x).Data()
	in := x.Data()

	dropped, kept := 0, 0
	for b := 0; b < batch; b++ {
		lo, hi := b*per, (b+1)*per
		if cmp.Equal(train[lo:hi], in[lo:hi]) {
			dropped++
			continue
		}
		kept++
		// Kept samples carry the branch scaled by 1/(1-p).
		for i := lo; i < hi; i++ {
			want := float64(in[i]) + 2*(float64(eval[i])-float64(in[i]))
			assert.InDelta(t, want, float64(train[i]), 1e-4)
		}
	}
	assert.Positive(t, dropped)
	assert.Positive(t, kept)
}

func TestConvNeXtBlock_NamedParameters(t *testing.T) {
	backend := cpu.New()
	block, err := NewConvNeXtBlock(DefaultBlockConfig(16), backend, newRand(1))
	require.NoError(t, err)

	want := map[string]tensor.Shape{
		"dwconv.depthwise.weight": {16, 1, 7, 7},
		"dwconv.depthwise.bias":   {16},
		"dwconv.pointwise.weight": {16, 16, 1, 1},
		"dwconv.pointwise.bias":   {16},
		"norm.scale":              {16},
		"norm.shift":              {16},
		"pwconv1.weight":          {64, 16, 1, 1},
		"pwconv1.bias":            {64},
		"pwconv2.weight":          {16, 64, 1, 1},
		"pwconv2.bias":            {16},
	}
	got := make(map[string]tensor.Shape)
	for name, p := range block.NamedParameters() {
		got[name] = p.Shape()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("named parameters mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, block.Parameters(), len(want))
}

func TestConvNeXtBlock_ParameterCountScaling(t *testing.T) {
	backend := cpu.New()
	const c, k = 16, 7

	counts := func(widening int) (pointwise, dwsep, norm int) {
		cfg := DefaultBlockConfig(c)
		cfg.WideningFactor = widening
		block, err := NewConvNeXtBlock(cfg, backend, newRand(1))
		require.NoError(t, err)
		return CountParameters[testBackend](block.Expand()) + CountParameters[testBackend](block.Reduce()),
			CountParameters[testBackend](block.DWConv()),
			CountParameters[testBackend](block.Norm())
	}

	pw4, dw4, norm4 := counts(4)
	pw8, dw8, norm8 := counts(8)

	assert.Equal(t, 2*c*c*4+c*4+c, pw4)
	assert.Equal(t, 2*c*c*8+c*8+c, pw8)
	assert.InDelta(t, 2.0, float64(pw8)/float64(pw4), 0.01)
	assert.Equal(t, dw4, dw8)
	assert.Equal(t, c*k*k+c+c*c+c, dw4)
	assert.Equal(t, norm4, norm8)
	assert.Equal(t, 2*c, norm4)

	block, err := NewConvNeXtBlock(DefaultBlockConfig(c), backend, newRand(1))
	require.NoError(t, err)
	assert.Equal(t, pw4+dw4+norm4, CountParameters[testBackend](block))
}

func TestConvNeXtBlock_DefaultConfig(t *testing.T) {
	want := BlockConfig{Channels: 32, KernelSize: 7, WideningFactor: 4, DropPath: 0, Eps: 1e-6}
	assert.Equal(t, want, DefaultBlockConfig(32))

	backend := cpu.New()
	block, err := NewConvNeXtBlock(want, backend, nil)
	require.NoError(t, err)
	assert.Equal(t, want, block.Config())
	assert.Nil(t, block.DropPath())
}

func TestConvNeXtBlock_InvalidConfig(t *testing.T) {
	backend := cpu.New()
	base := DefaultBlockConfig(8)
	tests := []struct {
		name   string
		mutate func(*BlockConfig)
	}{
		{"zero channels", func(c *BlockConfig) { c.Channels = 0 }},
		{"even kernel", func(c *BlockConfig) { c.KernelSize = 4 }},
		{"zero kernel", func(c *BlockConfig) { c.KernelSize = 0 }},
		{"zero widening", func(c *BlockConfig) { c.WideningFactor = 0 }},
		{"drop path one", func(c *BlockConfig) { c.DropPath = 1 }},
		{"negative drop path", func(c *BlockConfig) { c.DropPath = -0.1 }},
		{"nan drop path", func(c *BlockConfig) { c.DropPath = math.NaN() }},
		{"zero eps", func(c *BlockConfig) { c.Eps = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			block, err := NewConvNeXtBlock(cfg, backend, nil)
			assert.Nil(t, block)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestConvNeXtBlock_ConcurrentEval(t *testing.T) {
	backend := cpu.New()
	block, err := NewConvNeXtBlock(DefaultBlockConfig(4), backend, newRand(1))
	require.NoError(t, err)
	x := randn(tensor.Shape{2, 4, 6, 6}, 2, backend)
	want := block.Forward(EvalPass(), x).Data()

	results := make(chan []float32, 4)
	for i := 0; i < 4; i++ {
		go func() { results <- block.Forward(EvalPass(), x).Data() }()
	}
	for i := 0; i < 4; i++ {
		assert.Equal(t, want, <-results)
	}
}
