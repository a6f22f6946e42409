// Package parallel fans kernel loops out over worker goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls how loops are split.
type Config struct {
	Enabled      bool // run in parallel at all
	NumWorkers   int  // worker goroutines
	MinChunkSize int  // minimum iterations per goroutine
}

// DefaultConfig sizes the pool from the physical core count when the CPU
// reports it, falling back to runtime.NumCPU.
func DefaultConfig() Config {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 || n > runtime.NumCPU() {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// PlaneConfig is DefaultConfig for loops whose iterations are whole
// feature-map planes, where even a single iteration is worth a goroutine.
func PlaneConfig() Config {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1
	return cfg
}

// For runs f(i) for i in [0, n). Small or disabled loops run inline.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch iterates the batch×channels grid common to NCHW kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
