// Package parallel provides the worker fan-out used by the CPU reference kernels.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	return WithWorkers(runtime.NumCPU())
}

// WithWorkers returns a config using n workers; n <= 0 means runtime.NumCPU().
// Convolution tasks are coarse (one output plane each), so chunks stay small.
func WithWorkers(n int) Config {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 2,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
// All calls have returned when For returns.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers < 2 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				f(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ForBatch iterates the batch*channels grid, the unit of work of every conv kernel.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
