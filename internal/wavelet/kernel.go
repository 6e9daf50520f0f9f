// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wavelet

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// Kernel is a mother wavelet sampled on demand.
type Kernel interface {
	Name() string
	// Taps samples the wavelet at n points centred on zero for scale a.
	Taps(n int, a float64) []complex128
}

// Ricker is the Mexican hat wavelet (negative normalized second derivative
// of a Gaussian). It is real valued.
type Ricker struct{}

func (Ricker) Name() string { return "ricker" }

func (Ricker) Taps(n int, a float64) []complex128 {
	amp := 2 / (math.Sqrt(3*a) * math.Pow(math.Pi, 0.25))
	wsq := a * a
	out := make([]complex128, n)
	for i := range out {
		x := float64(i) - float64(n-1)/2
		xsq := x * x
		out[i] = complex(amp*(1-xsq/wsq)*math.Exp(-xsq/(2*wsq)), 0)
	}
	return out
}

// Morlet is the complex Morlet wavelet with centre frequency W0
// (the `morlet2` form: energy-normalized per scale).
type Morlet struct {
	W0 float64
}

func (m Morlet) Name() string { return fmt.Sprintf("morlet(w0=%g)", m.w0()) }

func (m Morlet) w0() float64 {
	if m.W0 <= 0 {
		return 5
	}
	return m.W0
}

func (m Morlet) Taps(n int, a float64) []complex128 {
	w0 := m.w0()
	norm := math.Pow(math.Pi, -0.25) * math.Sqrt(1/a)
	out := make([]complex128, n)
	for i := range out {
		x := (float64(i) - float64(n-1)/2) / a
		out[i] = cmplx.Exp(complex(0, w0*x)) * complex(norm*math.Exp(-0.5*x*x), 0)
	}
	return out
}

// ParseKernel resolves a configured kernel name.
func ParseKernel(name string, w0 float64) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ricker", "mexh", "mexican_hat":
		return Ricker{}, nil
	case "morlet", "morl", "morlet2", "cmor":
		return Morlet{W0: w0}, nil
	default:
		return nil, fmt.Errorf("wavelet: unknown kernel %q (want ricker or morlet)", name)
	}
}

// kernelLength mirrors the usual CWT support rule: ten widths, capped by the signal length.
func kernelLength(a float64, n int) int {
	m := int(math.Ceil(10 * a))
	if m > n {
		m = n
	}
	if m < 1 {
		m = 1
	}
	return m
}
