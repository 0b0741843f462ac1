package model

import (
	"image/color"
	"math"
)

const (
	RED_OFFSET   uint8 = 0x10
	GREEN_OFFSET uint8 = 0x08
	BLUE_OFFSET  uint8 = 0x0
)

const (
	MAX_HUE        = 359
	MAX_SATURATION = 100
	MAX_VALUE      = 100
)

// RGB is a 24-bit color, one byte per channel.
type RGB struct {
	R, G, B uint8
}

var (
	Black = RGB{}
	White = RGB{R: 255, G: 255, B: 255}
)

// HSV holds hue in degrees [0,359] and saturation/value in percent [0,100].
type HSV struct {
	H uint16
	S uint8
	V uint8
}

// HSVf is the unrounded form used when a transform must round-trip.
// H is in [0,360), S and V in [0,1].
type HSVf struct {
	H, S, V float64
}

// Packed returns the color as 0x00RRGGBB.
func (c RGB) Packed() uint32 {
	var v uint32
	v = setcolor(v, c.R, RED_OFFSET)
	v = setcolor(v, c.G, GREEN_OFFSET)
	v = setcolor(v, c.B, BLUE_OFFSET)
	return v
}

// FromPacked decodes 0x00RRGGBB; the top byte is ignored.
func FromPacked(v uint32) RGB {
	return RGB{
		R: getcolor(v, RED_OFFSET),
		G: getcolor(v, GREEN_OFFSET),
		B: getcolor(v, BLUE_OFFSET),
	}
}

func setcolor(c uint32, n uint8, off uint8) uint32 {
	var val uint32 = uint32(n) << off
	var mask uint32 = 0xFF << off
	return (c & (^mask)) | val
}

func getcolor(c uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((c & (mask)) >> off)
}

func (c RGB) ToRGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// FromColor converts any color.Color, dropping alpha after un-premultiplying.
func FromColor(c color.Color) RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: n.R, G: n.G, B: n.B}
}

// Scale multiplies every channel by s and clamps to [0,255].
func (c RGB) Scale(s float64) RGB {
	return RGB{R: ClampByte(float64(c.R) * s), G: ClampByte(float64(c.G) * s), B: ClampByte(float64(c.B) * s)}
}

// HSVf converts to unrounded HSV with the 6-sector formula.
func (c RGB) HSVf() HSVf {
	r := float64(c.R) / 255.0
	g := float64(c.G) / 255.0
	b := float64(c.B) / 255.0

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	chroma := max - min

	out := HSVf{V: max}
	if max > 0 {
		out.S = chroma / max
	}
	if chroma == 0 {
		return out
	}

	var h float64
	switch max {
	case r:
		h = math.Mod((g-b)/chroma, 6)
	case g:
		h = (b-r)/chroma + 2
	default:
		h = (r-g)/chroma + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}
	out.H = h
	return out
}

// RGB converts back with the same sector logic. Inputs are clamped first.
func (h HSVf) RGB() RGB {
	hue := math.Mod(h.H, 360)
	if hue < 0 || math.IsNaN(hue) {
		hue = 0
	}
	s := clamp01(h.S)
	v := clamp01(h.V)

	c := v * s
	x := c * (1 - math.Abs(math.Mod(hue/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case hue < 60:
		r, g, b = c, x, 0
	case hue < 120:
		r, g, b = x, c, 0
	case hue < 180:
		r, g, b = 0, c, x
	case hue < 240:
		r, g, b = 0, x, c
	case hue < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return RGB{
		R: ClampByte((r + m) * 255),
		G: ClampByte((g + m) * 255),
		B: ClampByte((b + m) * 255),
	}
}

// HSV converts to the rounded integer representation.
func (c RGB) HSV() HSV {
	f := c.HSVf()
	hue := math.Round(f.H)
	if hue >= 360 {
		hue = 0
	}
	return HSV{
		H: uint16(hue),
		S: uint8(math.Round(f.S * 100)),
		V: uint8(math.Round(f.V * 100)),
	}
}

// RGB converts back to RGB. Out of range fields are clamped.
func (h HSV) RGB() RGB {
	hue := h.H
	if hue > MAX_HUE {
		hue = MAX_HUE
	}
	s := h.S
	if s > MAX_SATURATION {
		s = MAX_SATURATION
	}
	v := h.V
	if v > MAX_VALUE {
		v = MAX_VALUE
	}
	return HSVf{H: float64(hue), S: float64(s) / 100, V: float64(v) / 100}.RGB()
}

// Wheel maps a position in [0,1) onto a fully saturated hue.
func Wheel(pos float64) RGB {
	pos = pos - math.Floor(pos)
	return HSVf{H: pos * 360, S: 1, V: 1}.RGB()
}

// ClampByte rounds x and clamps it into a channel value. NaN maps to 0.
func ClampByte(x float64) uint8 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= 255 {
		return 255
	}
	return uint8(math.Round(x))
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
