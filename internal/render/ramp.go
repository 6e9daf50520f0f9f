package render

import (
	"image/color"
	"math"
)

// Ramp maps a value in [0, 1] to a colour by linear interpolation between stops.
type Ramp []color.RGBA

var (
	Reds    = Ramp{{255, 245, 240, 255}, {252, 146, 114, 255}, {203, 24, 29, 255}, {103, 0, 13, 255}}
	Greens  = Ramp{{247, 252, 245, 255}, {161, 217, 155, 255}, {35, 139, 69, 255}, {0, 68, 27, 255}}
	Blues   = Ramp{{247, 251, 255, 255}, {158, 202, 225, 255}, {33, 113, 181, 255}, {8, 48, 107, 255}}
	Inferno = Ramp{
		{0, 0, 4, 255}, {40, 11, 84, 255}, {101, 21, 110, 255}, {159, 42, 99, 255},
		{212, 72, 66, 255}, {245, 125, 21, 255}, {250, 193, 39, 255}, {252, 255, 164, 255},
	}
)

// PlaneRamps are the per-plane ramps used when planes are drawn separately.
var PlaneRamps = []Ramp{Reds, Greens, Blues}

// At returns the colour for v; values outside [0, 1] are clamped.
func (r Ramp) At(v float64) color.RGBA {
	if len(r) == 0 {
		g := level(v)
		return color.RGBA{g, g, g, 255}
	}
	if math.IsNaN(v) || v <= 0 {
		return r[0]
	}
	if v >= 1 {
		return r[len(r)-1]
	}
	pos := v * float64(len(r)-1)
	i := int(pos)
	t := pos - float64(i)
	a, b := r[i], r[i+1]
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t)) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

// level converts a [0, 1] intensity to an 8-bit channel value.
func level(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(v * 255))
}
