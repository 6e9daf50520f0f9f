// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package router demultiplexes multi-channel samples into per-channel
// rolling buffers and a shared time buffer, and decides when the scalogram
// must be recomputed.
package router

import (
	"sync"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/window"
)

// Snapshot is an immutable copy of the router buffers taken at one instant.
type Snapshot struct {
	Count    uint64
	Times    []float64
	Channels [][]float64
}

// Len returns the number of aligned samples in the snapshot.
func (s Snapshot) Len() int { return len(s.Times) }

// Router owns the channel buffers and the time buffer of a session.
// Ingest and Snapshot may be called from different goroutines; the lock is
// held only for the append or the copy.
type Router struct {
	mu       sync.Mutex
	channels []*window.Ring
	times    *window.Ring
	count    uint64
	cadence  cadence
}

// New creates a router for channelCount channels with windowCapacity samples each.
func New(channelCount, windowCapacity int, trigger Trigger) (*Router, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	if channelCount < 1 {
		return nil, &imu.SchemaError{Want: channelCount, Reason: "router needs at least one channel"}
	}
	r := &Router{
		channels: make([]*window.Ring, channelCount),
		times:    window.NewRing(windowCapacity),
		cadence:  cadence{policy: trigger},
	}
	for i := range r.channels {
		r.channels[i] = window.NewRing(windowCapacity)
	}
	return r, nil
}

// Ingest routes one sample into the buffers. A sample whose arity differs
// from the configured channel count fails with *imu.SchemaError and leaves
// every buffer untouched. The returned flag reports whether the trigger
// policy fired for this sample.
func (r *Router) Ingest(s imu.Sample) (bool, error) {
	if len(s.Values) != len(r.channels) {
		return false, &imu.SchemaError{Want: len(r.channels), Got: len(s.Values)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, v := range s.Values {
		r.channels[i].Push(v)
	}
	r.times.Push(s.Time)
	r.count++
	return r.cadence.due(r.count, s.Time), nil
}

// Snapshot copies the current contents of all buffers.
func (r *Router) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Count:    r.count,
		Times:    r.times.Snapshot(),
		Channels: make([][]float64, len(r.channels)),
	}
	for i, ch := range r.channels {
		snap.Channels[i] = ch.Snapshot()
	}
	return snap
}

// Select copies the time buffer and only the listed channels.
func (r *Router) Select(indices []int) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Count:    r.count,
		Times:    r.times.Snapshot(),
		Channels: make([][]float64, len(indices)),
	}
	for i, idx := range indices {
		snap.Channels[i] = r.channels[idx].Snapshot()
	}
	return snap
}

// Lengths returns the time buffer length and every channel buffer length.
func (r *Router) Lengths() (int, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lens := make([]int, len(r.channels))
	for i, ch := range r.channels {
		lens[i] = ch.Len()
	}
	return r.times.Len(), lens
}

// Count returns the number of accepted samples.
func (r *Router) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Router) Channels() int { return len(r.channels) }
func (r *Router) Capacity() int { return r.times.Cap() }
