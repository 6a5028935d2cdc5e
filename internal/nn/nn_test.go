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

func TestMode(t *testing.T) {
	assert.Equal(t, "eval", Eval.String())
	assert.Equal(t, "train", Train.String())
	assert.False(t, EvalPass().Training())
	assert.True(t, TrainPass(newRand(1)).Training())
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer, err := NewLinear(3, 2, backend, newRand(1))
	require.NoError(t, err)
	require.NoError(t, layer.Weight().Assign(fromSlice(t, []float32{1, 0, -1, 2, 1, 0}, tensor.Shape{2, 3}, backend)))
	require.NoError(t, layer.Bias().Assign(fromSlice(t, []float32{0.5, -1}, tensor.Shape{2}, backend)))

	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	out := layer.Forward(EvalPass(), x)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{-1.5, 3, -1.5, 12}, out.Data())
}

func TestLinear_Invalid(t *testing.T) {
	backend := cpu.New()
	_, err := NewLinear(0, 2, backend, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	layer, err := NewLinear(3, 2, backend, nil)
	require.NoError(t, err)
	assert.PanicsWithValue(t, "linear: expected input with 3 features, got 4", func() {
		layer.Forward(EvalPass(), randn(tensor.Shape{1, 4}, 1, backend))
	})
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, []float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{5}, backend)

	relu := NewReLU(backend).Forward(EvalPass(), x)
	assert.Equal(t, []float32{0, 0, 0, 0.5, 2}, relu.Data())

	gelu := NewGELU(backend).Forward(EvalPass(), x)
	want := make([]float64, 5)
	for i, v := range []float64{-2, -0.5, 0, 0.5, 2} {
		want[i] = 0.5 * v * (1 + math.Erf(v/math.Sqrt2))
	}
	assert.InDeltaSlice(t, want, toFloat64(gelu.Data()), 1e-6)
}

func TestGlobalAvgPool2D(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, []float32{
		1, 2, 3, 4, // n0 c0
		10, 10, 10, 10, // n0 c1
		0, 0, 0, 8, // n1 c0
		-1, 1, -1, 1, // n1 c1
	}, tensor.Shape{2, 2, 2, 2}, backend)
	out := NewGlobalAvgPool2D[testBackend]().Forward(EvalPass(), x)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{2.5, 10, 2, 0}, out.Data())
}

func TestBatchNorm2D(t *testing.T) {
	backend := cpu.New()
	bn, err := NewBatchNorm2D(2, 1e-5, backend)
	require.NoError(t, err)

	x := fromSlice(t, []float32{
		1, 3, // n0 c0
		2, 2, // n0 c1
		5, 7, // n1 c0
		6, 6, // n1 c1
	}, tensor.Shape{2, 2, 1, 2}, backend)

	// Eval with initial running stats (mean 0, var 1) is x/sqrt(1+eps).
	eval := bn.Forward(EvalPass(), x)
	scale := 1 / math.Sqrt(1+1e-5)
	for i, v := range x.Data() {
		assert.InDelta(t, float64(v)*scale, float64(eval.Data()[i]), 1e-5)
	}

	// Train uses the batch statistics: channel 0 mean 4 var 5, channel 1 mean 4 var 4.
	train := bn.Forward(TrainPass(nil), x)
	inv0, inv1 := 1/math.Sqrt(5+1e-5), 1/math.Sqrt(4+1e-5)
	want := []float64{-3 * inv0, -1 * inv0, -2 * inv1, -2 * inv1, 1 * inv0, 3 * inv0, 2 * inv1, 2 * inv1}
	assert.InDeltaSlice(t, want, toFloat64(train.Data()), 1e-5)

	// Forward never updates the running statistics.
	assert.Equal(t, []float32{0, 0}, bn.Buffers()[0].Tensor().Data())
	assert.Equal(t, []float32{1, 1}, bn.Buffers()[1].Tensor().Data())
}

func TestSequential_NamesAndForward(t *testing.T) {
	backend := cpu.New()
	conv, err := NewConv2D(Conv2DConfig{InChannels: 3, OutChannels: 4, KernelSize: 3, Padding: 1}, backend, newRand(1))
	require.NoError(t, err)
	bn, err := NewBatchNorm2D(4, 1e-5, backend)
	require.NoError(t, err)
	seq := NewSequential[testBackend](conv, bn, NewReLU(backend), NewGlobalAvgPool2D[testBackend]())

	assert.Equal(t, 4, seq.Len())
	out := seq.Forward(EvalPass(), randn(tensor.Shape{2, 3, 5, 5}, 2, backend))
	assert.Equal(t, tensor.Shape{2, 4}, out.Shape())

	var names []string
	for _, p := range State[testBackend](seq) {
		names = append(names, p.Name())
	}
	want := []string{"0.bias", "0.weight", "1.bias", "1.running_mean", "1.running_var", "1.weight"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("state names mismatch (-want +got):\n%s", diff)
	}
	assert.Panics(t, func() { seq.Module(4) })
}

func TestStateDict_RoundTrip(t *testing.T) {
	backend := cpu.New()
	src, err := NewConvNeXtBlock(DefaultBlockConfig(4), backend, newRand(1))
	require.NoError(t, err)
	dst, err := NewConvNeXtBlock(DefaultBlockConfig(4), backend, newRand(2))
	require.NoError(t, err)

	x := randn(tensor.Shape{1, 4, 5, 5}, 3, backend)
	require.NotEqual(t, src.Forward(EvalPass(), x).Data(), dst.Forward(EvalPass(), x).Data())

	require.NoError(t, LoadStateDict[testBackend](dst, StateDict[testBackend](src)))
	assert.Equal(t, src.Forward(EvalPass(), x).Data(), dst.Forward(EvalPass(), x).Data())
}

func TestLoadStateDict_Errors(t *testing.T) {
	backend := cpu.New()
	block, err := NewConvNeXtBlock(DefaultBlockConfig(4), backend, newRand(1))
	require.NoError(t, err)

	sd := StateDict[testBackend](block)
	delete(sd, "norm.scale")
	err = LoadStateDict[testBackend](block, sd)
	assert.True(t, errors.Is(err, ErrMissingState), "got %v", err)
	assert.Contains(t, err.Error(), "norm.scale")

	sd = StateDict[testBackend](block)
	sd["norm.scale"] = tensor.MustNewRaw(tensor.Shape{5}, tensor.Float32, tensor.CPU)
	err = LoadStateDict[testBackend](block, sd)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}

func TestParameterAssign_ShapeMismatch(t *testing.T) {
	backend := cpu.New()
	p := NewParameter("w", tensor.Zeros[float32](tensor.Shape{2, 2}, backend))
	err := p.Assign(tensor.Zeros[float32](tensor.Shape{4}, backend))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter w")
}

func TestInit_TruncNormal(t *testing.T) {
	backend := cpu.New()
	w := TruncNormal(tensor.Shape{1000}, 0.02, newRand(1), backend)
	var sum float64
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(float64(v)), 0.04+1e-7)
		sum += float64(v)
	}
	assert.InDelta(t, 0, sum/1000, 0.005)
}
