package driver

import (
	"strings"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
	"github.com/coreman2200/arcaluminis-matrix/internal/model"
)

// Layout maps frame coordinates onto the physical strip.
type Layout struct {
	// Serpentine strips run right-to-left on every odd row.
	Serpentine bool
	// Order names the channel sent in each byte slot, e.g. "GRB".
	Order [3]byte
}

var ORDER_RGB = [3]byte{'R', 'G', 'B'}

// ParseOrder accepts any permutation of "RGB", case-insensitive.
func ParseOrder(s string) ([3]byte, error) {
	s = strings.ToUpper(s)
	if len(s) != 3 || !strings.ContainsRune(s, 'R') || !strings.ContainsRune(s, 'G') || !strings.ContainsRune(s, 'B') {
		return [3]byte{}, errs.E(errs.InvalidArgument, "driver.ParseOrder", "color order %q", s)
	}
	return [3]byte{s[0], s[1], s[2]}, nil
}

// Index maps x,y -> strip position (0..PixelCount-1).
func (l Layout) Index(x, y int) int {
	xx := x
	if l.Serpentine && y%2 == 1 {
		xx = model.Width - 1 - x
	}
	return y*model.Width + xx
}

// Encode writes f in strip order into dst, growing it if needed.
func (l Layout) Encode(f *model.Frame, dst []byte) []byte {
	if cap(dst) < model.PixelCount*3 {
		dst = make([]byte, model.PixelCount*3)
	}
	dst = dst[:model.PixelCount*3]
	order := l.Order
	if order == [3]byte{} {
		order = ORDER_RGB
	}
	for y := 0; y < model.Height; y++ {
		for x := 0; x < model.Width; x++ {
			c := f.At(x, y)
			o := l.Index(x, y) * 3
			for k, ch := range order {
				dst[o+k] = channel(c, ch)
			}
		}
	}
	return dst
}

func channel(c model.RGB, ch byte) byte {
	switch ch {
	case 'R':
		return c.R
	case 'G':
		return c.G
	default:
		return c.B
	}
}
