// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs the acquisition loop: pull a sample, route it,
// publish the signal and, when the trigger fires, compute, composite and
// publish the scalogram.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/render"
	"github.com/relabs-tech/imu_scalogram/internal/router"
	"github.com/relabs-tech/imu_scalogram/internal/sink"
	"github.com/relabs-tech/imu_scalogram/internal/source"
	"github.com/relabs-tech/imu_scalogram/internal/wavelet"
)

var errStopped = errors.New("session stopped by sink")

// Options configures a Controller.
type Options struct {
	ID           string        // session id; a random UUID when empty
	Channels     []string      // session channel names, in router order
	Selection    []int         // channels composited into the scalogram, 1 to 3
	Deadline     time.Duration // soft limit for one compute pass, 0 disables
	PollInterval time.Duration // wait after imu.ErrUnavailable
	Render       *render.Options
	Logger       *zap.Logger
}

// Stats counts what a session has processed so far.
type Stats struct {
	Accepted    uint64
	Rejected    uint64
	Triggers    uint64
	Overruns    uint64 // compute passes slower than the deadline
	SinkErrors  uint64
	LastCompute time.Duration
}

// Controller owns one session's pipeline.
type Controller struct {
	src    source.Source
	sink   sink.Sink
	router *router.Router
	engine *wavelet.Engine
	comp   *composite.Compositor
	opts   Options
	log    *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// New wires a controller. The source and sink are owned by the controller
// from here on and closed when Run returns.
func New(src source.Source, snk sink.Sink, r *router.Router, e *wavelet.Engine, c *composite.Compositor, opts Options) (*Controller, error) {
	if len(opts.Channels) != r.Channels() {
		return nil, fmt.Errorf("session: %d channel names for %d router channels", len(opts.Channels), r.Channels())
	}
	if len(opts.Selection) == 0 || len(opts.Selection) > composite.MaxPlanes {
		return nil, fmt.Errorf("session: selection must list 1 to %d channels, got %d", composite.MaxPlanes, len(opts.Selection))
	}
	for _, idx := range opts.Selection {
		if idx < 0 || idx >= r.Channels() {
			return nil, fmt.Errorf("session: selected channel %d out of range", idx)
		}
	}
	if _, w := e.Shape(); w != r.Capacity() {
		return nil, fmt.Errorf("session: engine width %d does not match window capacity %d", w, r.Capacity())
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Controller{
		src:    src,
		sink:   snk,
		router: r,
		engine: e,
		comp:   c,
		opts:   opts,
		log:    opts.Logger.Named("session").With(zap.String("session", opts.ID)),
	}, nil
}

// ID returns the session id stamped on every frame.
func (c *Controller) ID() string { return c.opts.ID }

// Stats returns a copy of the counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run processes samples until ctx is done, the source ends, or a sink asks
// to stop. Cancellation, end of input and a closed display return nil; a
// device failure returns the wrapped *imu.DeviceError. Source and sink are
// closed on every path.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := c.src.Close(); cerr != nil {
			c.log.Warn("source close error", zap.Error(cerr))
		}
		if cerr := c.sink.Close(); cerr != nil {
			c.log.Warn("sink close error", zap.Error(cerr))
		}
		st := c.Stats()
		c.log.Info("session ended",
			zap.Uint64("accepted", st.Accepted),
			zap.Uint64("rejected", st.Rejected),
			zap.Uint64("triggers", st.Triggers),
			zap.Error(err))
	}()

	c.log.Info("session started",
		zap.Strings("channels", c.opts.Channels),
		zap.Int("window", c.router.Capacity()),
		zap.String("kernel", c.engine.Kernel().Name()))

	for {
		if ctx.Err() != nil {
			return nil
		}

		s, err := c.src.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, imu.ErrUnavailable):
			if !sleep(ctx, c.opts.PollInterval) {
				return nil
			}
			continue
		case imu.IsSchemaError(err):
			c.reject(err)
			continue
		case errors.Is(err, io.EOF):
			c.log.Info("source exhausted")
			return nil
		default:
			return fmt.Errorf("session: source: %w", err)
		}

		if err := c.Process(ctx, s); err != nil {
			if errors.Is(err, errStopped) {
				c.log.Info("display closed, stopping session")
				return nil
			}
			return err
		}
	}
}

// Process handles one sample: a rejected sample is counted and dropped.
func (c *Controller) Process(ctx context.Context, s imu.Sample) error {
	fired, err := c.router.Ingest(s)
	if err != nil {
		c.reject(err)
		return nil
	}
	c.mu.Lock()
	c.stats.Accepted++
	c.mu.Unlock()

	snap := c.router.Snapshot()
	sig := frame.Signal{
		Session:  c.opts.ID,
		Seq:      snap.Count,
		Channels: c.opts.Channels,
		Latest:   s,
		Times:    snap.Times,
		Values:   snap.Channels,
	}
	if err := c.sinkResult("signal", c.sink.PublishSignal(ctx, sig)); err != nil {
		return err
	}

	if !fired {
		return nil
	}
	return c.scalogram(ctx)
}

func (c *Controller) scalogram(ctx context.Context) error {
	start := time.Now()
	snap := c.router.Select(c.opts.Selection)

	surfaces, err := c.engine.Compute(ctx, snap.Channels)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("session: compute: %w", err)
	}
	f, err := c.comp.Composite(surfaces...)
	if err != nil {
		return fmt.Errorf("session: composite: %w", err)
	}
	for i, d := range f.Degenerate {
		if d {
			c.log.Debug("degenerate surface, plane zeroed", zap.String("channel", c.opts.Channels[c.opts.Selection[i]]))
		}
	}
	took := time.Since(start)

	c.mu.Lock()
	c.stats.Triggers++
	c.stats.LastCompute = took
	overrun := c.opts.Deadline > 0 && took > c.opts.Deadline
	if overrun {
		c.stats.Overruns++
	}
	c.mu.Unlock()
	if overrun {
		c.log.Warn("scalogram missed deadline", zap.Duration("took", took), zap.Duration("deadline", c.opts.Deadline))
	}

	names := make([]string, len(c.opts.Selection))
	for i, idx := range c.opts.Selection {
		names[i] = c.opts.Channels[idx]
	}
	sc := frame.Scalogram{
		Session:   c.opts.ID,
		Seq:       snap.Count,
		Kernel:    c.engine.Kernel().Name(),
		Scales:    c.engine.Scales(),
		Channels:  names,
		Surfaces:  surfaces,
		Composite: f,
		Took:      took,
	}
	if n := len(snap.Times); n > 0 {
		sc.Time = snap.Times[n-1]
	}
	if c.opts.Render != nil {
		img, err := render.PNG(f, *c.opts.Render)
		if err != nil {
			c.log.Warn("render failed", zap.Error(err))
		} else {
			sc.PNG = img
		}
	}
	return c.sinkResult("scalogram", c.sink.PublishScalogram(ctx, sc))
}

// sinkResult logs sink failures; only a closed display stops the session.
func (c *Controller) sinkResult(kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sink.ErrClosed) {
		return errStopped
	}
	c.mu.Lock()
	c.stats.SinkErrors++
	c.mu.Unlock()
	c.log.Warn("sink publish failed", zap.String("frame", kind), zap.Error(err))
	return nil
}

func (c *Controller) reject(err error) {
	c.mu.Lock()
	c.stats.Rejected++
	c.mu.Unlock()
	c.log.Warn("sample rejected", zap.Error(err))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
