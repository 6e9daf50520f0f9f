// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package composite normalizes magnitude surfaces and stacks up to three of
// them into one multi-plane frame (one plane per colour component).
package composite

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// MaxPlanes is the number of surfaces a frame can hold (R, G, B).
const MaxPlanes = 3

// ErrDegenerate marks a plane whose dynamic range was zero or non-finite and
// was therefore replaced by zeros. It is informational and never returned
// from Composite.
var ErrDegenerate = errors.New("degenerate surface range")

// Mode selects the normalization policy.
type Mode int

const (
	// PerFrame maps each surface's own [min, max] onto [0, 1].
	PerFrame Mode = iota
	// Fixed maps a configured [Min, Max] onto [0, 1] and clamps.
	Fixed
)

func (m Mode) String() string {
	if m == Fixed {
		return "fixed"
	}
	return "per_frame"
}

// ParseMode resolves a configured normalization name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per_frame", "perframe", "minmax":
		return PerFrame, nil
	case "fixed":
		return Fixed, nil
	default:
		return PerFrame, fmt.Errorf("composite: unknown normalization %q", s)
	}
}

// Normalization configures how surfaces are mapped onto [0, 1].
type Normalization struct {
	Mode Mode
	Min  float64 // Fixed only
	Max  float64 // Fixed only
}

// Validate checks the fixed bounds.
func (n Normalization) Validate() error {
	if n.Mode == Fixed && !(n.Max > n.Min) {
		return fmt.Errorf("composite: fixed normalization needs max > min, got [%v, %v]", n.Min, n.Max)
	}
	return nil
}

// Frame is a (rows, cols, planes) stack of normalized surfaces.
type Frame struct {
	Planes     []*mat.Dense
	Degenerate []bool // per plane, true when the zero fallback was applied
}

// Shape returns (rows, cols, planes).
func (f *Frame) Shape() (int, int, int) {
	if len(f.Planes) == 0 {
		return 0, 0, 0
	}
	r, c := f.Planes[0].Dims()
	return r, c, len(f.Planes)
}

// At returns the value of plane k at (r, c).
func (f *Frame) At(r, c, k int) float64 { return f.Planes[k].At(r, c) }

// Compositor builds frames from magnitude surfaces.
type Compositor struct {
	norm Normalization
}

// New returns a compositor using the given normalization.
func New(norm Normalization) (*Compositor, error) {
	if err := norm.Validate(); err != nil {
		return nil, err
	}
	return &Compositor{norm: norm}, nil
}

// Normalization returns the active policy.
func (c *Compositor) Normalization() Normalization { return c.norm }

// Composite normalizes each surface independently and stacks them in the
// given order. It accepts 1 to 3 surfaces of identical shape. Every output
// value lies in [0, 1] regardless of input degeneracy.
func (c *Compositor) Composite(surfaces ...*mat.Dense) (*Frame, error) {
	if len(surfaces) == 0 || len(surfaces) > MaxPlanes {
		return nil, fmt.Errorf("composite: need 1..%d surfaces, got %d", MaxPlanes, len(surfaces))
	}
	rows, cols := surfaces[0].Dims()
	f := &Frame{
		Planes:     make([]*mat.Dense, len(surfaces)),
		Degenerate: make([]bool, len(surfaces)),
	}
	for i, s := range surfaces {
		if r, cc := s.Dims(); r != rows || cc != cols {
			return nil, fmt.Errorf("composite: surface %d has shape (%d,%d), want (%d,%d)", i, r, cc, rows, cols)
		}
		plane, err := c.Normalize(s)
		if errors.Is(err, ErrDegenerate) {
			f.Degenerate[i] = true
		}
		f.Planes[i] = plane
	}
	return f, nil
}

// Normalize maps one surface onto [0, 1] into a new matrix. When the range is
// degenerate the result is all zeros and ErrDegenerate is returned alongside it.
func (c *Compositor) Normalize(s *mat.Dense) (*mat.Dense, error) {
	rows, cols := s.Dims()
	out := mat.NewDense(rows, cols, nil)

	lo, hi := c.norm.Min, c.norm.Max
	if c.norm.Mode == PerFrame {
		lo, hi = finiteRange(s)
	}
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return out, ErrDegenerate
	}

	out.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return clamp01((v - lo) / span)
	}, s)
	return out, nil
}

// finiteRange returns min and max over finite entries; (0, 0) when there are none.
func finiteRange(s *mat.Dense) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	raw := s.RawMatrix()
	for r := 0; r < raw.Rows; r++ {
		for _, v := range raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
