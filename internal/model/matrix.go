// Package model holds the value types shared by the matrix packages:
// colors, pixels and whole frames.
package model

const (
	Width      = 32
	Height     = 32
	PixelCount = Width * Height
)

// Pixel addresses one LED on the matrix.
type Pixel struct {
	X, Y  int
	Color RGB
}

// Frame is one complete image, indexed y*Width+x.
// It is a value type: assigning a Frame copies all 1024 pixels.
type Frame [PixelCount]RGB

// InBounds reports whether (x,y) lies on the matrix.
func InBounds(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}

// Index maps (x,y) to the frame offset. Callers check InBounds first.
func Index(x, y int) int {
	return y*Width + x
}

func (f *Frame) At(x, y int) RGB {
	return f[Index(x, y)]
}

func (f *Frame) Set(x, y int, c RGB) {
	f[Index(x, y)] = c
}

// Fill paints every pixel with c.
func (f *Frame) Fill(c RGB) {
	for i := range f {
		f[i] = c
	}
}

// Bytes serializes the frame as packed R,G,B triples in raster order.
func (f *Frame) Bytes() []byte {
	out := make([]byte, 0, PixelCount*3)
	for _, c := range f {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}
