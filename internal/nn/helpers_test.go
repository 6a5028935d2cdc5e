package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/backend/cpu"
	"github.com/born-ml/vision/internal/tensor"
)

type testBackend = *cpu.CPUBackend

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func randn(shape tensor.Shape, seed int64, backend testBackend) *tensor.Tensor[float32, testBackend] {
	return tensor.Randn[float32](shape, newRand(seed), backend)
}

func fromSlice(t *testing.T, data []float32, shape tensor.Shape, backend testBackend) *tensor.Tensor[float32, testBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

func zero(p *Parameter[testBackend]) {
	clear(p.Tensor().Data())
}
