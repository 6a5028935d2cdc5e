package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	for _, cfg := range []Config{Sequential(), DefaultConfig(), {Workers: 3, MinChunkSize: 7}} {
		const n = 1000
		visits := make([]int32, n)
		For(n, func(i int) {
			atomic.AddInt32(&visits[i], 1)
		}, cfg)
		for i, v := range visits {
			assert.Equalf(t, int32(1), v, "index %d visited %d times with %+v", i, v, cfg)
		}
	}
}

func TestForBatch(t *testing.T) {
	var sum int64
	ForBatch(4, 8, func(b, c int) {
		atomic.AddInt64(&sum, int64(b*8+c))
	}, Config{Workers: 4, MinChunkSize: 2})
	assert.Equal(t, int64(31*32/2), sum)
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}
