// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wavelet

import (
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/mjibson/go-dsp/fft"
)

// Method selects how the kernel correlation is evaluated. Every method
// yields the same coefficients up to floating point rounding.
type Method int

const (
	MethodAuto Method = iota
	MethodDirect
	MethodFFT
)

// fftThreshold is the n*m work size above which MethodAuto switches to FFT.
const fftThreshold = 1 << 15

func (m Method) String() string {
	switch m {
	case MethodDirect:
		return "direct"
	case MethodFFT:
		return "fft"
	default:
		return "auto"
	}
}

// ParseMethod resolves a configured method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return MethodAuto, nil
	case "direct", "dense":
		return MethodDirect, nil
	case "fft":
		return MethodFFT, nil
	default:
		return MethodAuto, fmt.Errorf("wavelet: unknown method %q (want auto, direct or fft)", s)
	}
}

// correlator turns wavelet taps into the convolution filter h = conj(reverse(taps)).
func correlator(taps []complex128) []complex128 {
	m := len(taps)
	h := make([]complex128, m)
	for j := range h {
		h[j] = cmplx.Conj(taps[m-1-j])
	}
	return h
}

// magnitudeInto writes |x * h| ("same" mode, centred on (m-1)/2) into dst,
// which must have len(x) elements.
func magnitudeInto(dst, x []float64, h []complex128, method Method) {
	n, m := len(x), len(h)
	if method == MethodAuto {
		method = MethodDirect
		if n*m > fftThreshold {
			method = MethodFFT
		}
	}
	if method == MethodFFT {
		fftMagnitude(dst, x, h)
		return
	}
	directMagnitude(dst, x, h)
}

func directMagnitude(dst, x []float64, h []complex128) {
	n, m := len(x), len(h)
	off := (m - 1) / 2
	for i := 0; i < n; i++ {
		k := i + off
		lo := k - n + 1
		if lo < 0 {
			lo = 0
		}
		hi := k
		if hi > m-1 {
			hi = m - 1
		}
		var acc complex128
		for j := lo; j <= hi; j++ {
			acc += complex(x[k-j], 0) * h[j]
		}
		dst[i] = cmplx.Abs(acc)
	}
}

func fftMagnitude(dst, x []float64, h []complex128) {
	n, m := len(x), len(h)
	size := 1
	for size < n+m-1 {
		size <<= 1
	}
	xs := make([]complex128, size)
	for i, v := range x {
		xs[i] = complex(v, 0)
	}
	hs := make([]complex128, size)
	copy(hs, h)

	xf := fft.FFT(xs)
	hf := fft.FFT(hs)
	for i := range xf {
		xf[i] *= hf[i]
	}
	full := fft.IFFT(xf)

	off := (m - 1) / 2
	for i := 0; i < n; i++ {
		dst[i] = cmplx.Abs(full[i+off])
	}
}
