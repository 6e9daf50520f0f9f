// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render turns composite frames into images.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
)

// Options controls image output.
type Options struct {
	Width  int      // output width in pixels; 0 keeps one pixel per sample
	Height int      // output height in pixels; 0 keeps one pixel per scale
	Smooth bool     // bilinear instead of nearest-neighbour scaling
	Labels []string // drawn top-left, one per line
	Ramp   Ramp     // used for single-plane frames; Inferno when nil
}

// Image maps a frame onto pixels: row r (scale index) becomes image row r,
// column c (sample) image column c. Planes 0, 1, 2 become red, green and blue;
// a single-plane frame is coloured through the ramp.
func Image(f *composite.Frame, ramp Ramp) *image.RGBA {
	rows, cols, planes := f.Shape()
	if planes == 1 {
		if ramp == nil {
			ramp = Inferno
		}
		return Surface(f.Planes[0], ramp)
	}
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			px := color.RGBA{A: 255}
			px.R = level(f.At(r, c, 0))
			px.G = level(f.At(r, c, 1))
			if planes > 2 {
				px.B = level(f.At(r, c, 2))
			}
			img.SetRGBA(c, r, px)
		}
	}
	return img
}

// Surface draws one normalized plane through a colour ramp.
func Surface(plane *mat.Dense, ramp Ramp) *image.RGBA {
	rows, cols := plane.Dims()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.SetRGBA(c, r, ramp.At(plane.At(r, c)))
		}
	}
	return img
}

// Scale resizes src to w x h.
func Scale(src image.Image, w, h int, smooth bool) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var s draw.Scaler = draw.NearestNeighbor
	if smooth {
		s = draw.ApproxBiLinear
	}
	s.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Annotate writes lines of text in the top-left corner.
func Annotate(img draw.Image, lines ...string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		d.Dot = fixed.P(2, 13*(i+1))
		d.DrawString(line)
	}
}

// Render produces the final image for a frame.
func Render(f *composite.Frame, opts Options) (*image.RGBA, error) {
	rows, cols, planes := f.Shape()
	if planes == 0 || rows == 0 || cols == 0 {
		return nil, fmt.Errorf("render: empty frame")
	}
	img := Image(f, opts.Ramp)
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = cols
	}
	if h <= 0 {
		h = rows
	}
	if w != cols || h != rows {
		img = Scale(img, w, h, opts.Smooth)
	}
	if len(opts.Labels) > 0 {
		Annotate(img, opts.Labels...)
	}
	return img, nil
}

// PNG renders a frame and encodes it.
func PNG(f *composite.Frame, opts Options) ([]byte, error) {
	img, err := Render(f, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
