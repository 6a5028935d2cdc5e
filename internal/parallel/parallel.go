// Package parallel splits index ranges across a bounded set of goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers      int // Maximum number of goroutines; <= 1 runs sequentially.
	MinChunkSize int // Minimum items per goroutine.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		MinChunkSize: 1,
	}
}

// Sequential returns a Config that never spawns goroutines.
func Sequential() Config {
	return Config{Workers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n). Each index is visited exactly once, and
// f must only write state owned by index i.
func For(n int, f func(i int), cfg Config) {
	minChunk := max(cfg.MinChunkSize, 1)
	if cfg.Workers <= 1 || n <= minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunkSize := max((n+cfg.Workers-1)/cfg.Workers, minChunk)
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				f(i)
			}
			return nil
		})
	}
	_ = g.Wait() // Workers never return errors.
}

// ForBatch iterates over the batch×channels grid, the common pattern of
// per-sample, per-channel convolution and normalization kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
