// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wavelet computes windowed continuous wavelet transform magnitudes
// (scalograms) over channel snapshots.
package wavelet

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// State is the engine lifecycle state.
type State int32

const (
	Idle State = iota
	Computing
)

func (s State) String() string {
	if s == Computing {
		return "computing"
	}
	return "idle"
}

// Options configures an Engine.
type Options struct {
	Kernel  Kernel
	Scales  ScaleSet
	Width   int // window capacity W
	MinFill int // snapshots shorter than this produce an all-zero surface
	Method  Method
	Logger  *zap.Logger
}

// Engine evaluates the CWT of whole windows. Each call is a full
// recomputation; there is no incremental state between calls.
type Engine struct {
	kernel  Kernel
	scales  ScaleSet
	width   int
	minFill int
	method  Method
	log     *zap.Logger

	filters [][]complex128 // per scale, for full windows

	mu    sync.Mutex // serializes Compute
	state atomic.Int32
	last  atomic.Int64 // duration of the last compute, ns
}

// NewEngine validates opts and precomputes the full-window filters.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Kernel == nil {
		opts.Kernel = Ricker{}
	}
	if err := opts.Scales.Validate(); err != nil {
		return nil, err
	}
	if opts.Width < 1 {
		return nil, fmt.Errorf("wavelet: window width must be positive, got %d", opts.Width)
	}
	if opts.MinFill < 1 {
		opts.MinFill = 1
	}
	if opts.MinFill > opts.Width {
		return nil, fmt.Errorf("wavelet: minimum fill %d exceeds window width %d", opts.MinFill, opts.Width)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Engine{
		kernel:  opts.Kernel,
		scales:  append(ScaleSet(nil), opts.Scales...),
		width:   opts.Width,
		minFill: opts.MinFill,
		method:  opts.Method,
		log:     opts.Logger,
	}
	e.filters = e.buildFilters(opts.Width)
	return e, nil
}

func (e *Engine) buildFilters(n int) [][]complex128 {
	filters := make([][]complex128, len(e.scales))
	for i, a := range e.scales {
		filters[i] = correlator(e.kernel.Taps(kernelLength(a, n), a))
	}
	return filters
}

// Compute returns one magnitude surface of shape (len(scales), W) per
// channel snapshot, in the same order. Snapshots below the minimum fill
// yield the all-zero surface. Shorter snapshots are transformed over their
// own length and right-aligned so the newest sample sits in the last column.
func (e *Engine) Compute(ctx context.Context, channels [][]float64) ([]*mat.Dense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Store(int32(Computing))
	defer e.state.Store(int32(Idle))
	start := time.Now()

	surfaces := make([]*mat.Dense, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, snap := range channels {
		i, snap := i, snap
		surfaces[i] = mat.NewDense(len(e.scales), e.width, nil)
		if len(snap) < e.minFill {
			continue
		}
		g.Go(func() error {
			return e.transform(gctx, surfaces[i], snap)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.last.Store(int64(time.Since(start)))
	e.log.Debug("scalogram computed",
		zap.Int("channels", len(channels)),
		zap.Duration("took", time.Since(start)))
	return surfaces, nil
}

func (e *Engine) transform(ctx context.Context, dst *mat.Dense, x []float64) error {
	if len(x) > e.width {
		x = x[len(x)-e.width:]
	}
	n := len(x)
	filters := e.filters
	if n != e.width {
		filters = e.buildFilters(n)
	}

	raw := dst.RawMatrix()
	offset := e.width - n
	for s, h := range filters {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := raw.Data[s*raw.Stride+offset : s*raw.Stride+e.width]
		magnitudeInto(row, x, h, e.method)
	}
	return nil
}

// Shape returns (len(scales), W).
func (e *Engine) Shape() (int, int) { return len(e.scales), e.width }

func (e *Engine) Scales() ScaleSet { return append(ScaleSet(nil), e.scales...) }
func (e *Engine) Kernel() Kernel   { return e.kernel }
func (e *Engine) MinFill() int     { return e.minFill }

func (e *Engine) State() State { return State(e.state.Load()) }

// LastDuration reports how long the most recent Compute took.
func (e *Engine) LastDuration() time.Duration { return time.Duration(e.last.Load()) }
