// Package parallel splits CPU kernel loops across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how kernel loops are split.
type Config struct {
	Workers  int // Maximum goroutines per loop; 1 or less runs inline.
	MinGrain int // Minimum output elements handed to one goroutine.
}

// DefaultConfig uses every schedulable CPU with a grain that keeps small
// feature maps (7x7 and below) on the calling goroutine.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.GOMAXPROCS(0),
		MinGrain: 4096,
	}
}

// WithWorkers returns DefaultConfig with the worker count replaced.
// Non-positive values keep the default.
func WithWorkers(n int) Config {
	cfg := DefaultConfig()
	if n > 0 {
		cfg.Workers = n
	}
	return cfg
}

// workersFor returns how many goroutines a loop of units items,
// each producing grain output elements, should use.
func (c Config) workersFor(units, grain int) int {
	if c.Workers <= 1 || units <= 1 {
		return 1
	}
	perWorker := 1
	if grain > 0 && c.MinGrain > grain {
		perWorker = (c.MinGrain + grain - 1) / grain
	}
	return max(1, min(c.Workers, units/perWorker))
}

// For calls f(i) for every i in [0, n). Each index produces grain output
// elements, which decides whether the loop is worth splitting.
func For(n, grain int, f func(i int), cfg Config) {
	workers := cfg.workersFor(n, grain)
	if workers == 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	step := (n + workers - 1) / workers
	for start := 0; start < n; start += step {
		end := min(start+step, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Planes calls f(n, c) for every output plane of an NCHW tensor.
// planeSize is H*W of the output.
func Planes(batch, channels, planeSize int, f func(n, c int), cfg Config) {
	For(batch*channels, planeSize, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
