// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window holds the fixed-capacity rolling buffers that back each
// channel (and the shared timestamp track) of a session.
package window

// Ring is a fixed-capacity FIFO of float64 values. Pushing into a full ring
// evicts the oldest value. A Ring is not safe for concurrent use; the owner
// serializes access.
type Ring struct {
	data  []float64
	start int // index of the oldest value
	n     int
}

// NewRing returns an empty ring holding at most capacity values.
// A capacity below 1 is treated as 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring) Push(v float64) {
	c := len(r.data)
	if r.n < c {
		r.data[(r.start+r.n)%c] = v
		r.n++
		return
	}
	r.data[r.start] = v
	r.start = (r.start + 1) % c
}

// Snapshot returns a copy of the contents, oldest first.
func (r *Ring) Snapshot() []float64 {
	return r.AppendTo(make([]float64, 0, r.n))
}

// AppendTo appends the contents, oldest first, to dst and returns the result.
func (r *Ring) AppendTo(dst []float64) []float64 {
	c := len(r.data)
	end := r.start + r.n
	if end <= c {
		return append(dst, r.data[r.start:end]...)
	}
	dst = append(dst, r.data[r.start:]...)
	return append(dst, r.data[:end-c]...)
}

// Last returns the newest value, or false when empty.
func (r *Ring) Last() (float64, bool) {
	if r.n == 0 {
		return 0, false
	}
	return r.data[(r.start+r.n-1)%len(r.data)], true
}

func (r *Ring) Len() int { return r.n }
func (r *Ring) Cap() int { return len(r.data) }

// Full reports whether the ring holds Cap values.
func (r *Ring) Full() bool { return r.n == len(r.data) }

// Reset empties the ring without releasing storage.
func (r *Ring) Reset() {
	r.start = 0
	r.n = 0
}
